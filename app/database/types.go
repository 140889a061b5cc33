package database

import (
	"time"
)

// DayKey formats the cache partition for t in its own location.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// UsedItem is a story that already went into a draft.
type UsedItem struct {
	URL    string // canonical URL
	Title  string
	UsedAt time.Time
}
