package database

import (
	"time"

	"github.com/lysyi3m/insightpress/app/news"
)

// ItemCacheRepository stores the collected items of a day so reruns on the
// same day skip the network.
type ItemCacheRepository interface {
	SaveDay(day string, items []news.Item) error
	LoadDay(day string) ([]news.Item, error)
	PruneBefore(day string) (int64, error)
}

// UsedItemRepository remembers drafted stories for a retention window.
type UsedItemRepository interface {
	MarkUsed(items []UsedItem) error
	UsedSince(since time.Time) (map[string]bool, error)
	PruneBefore(before time.Time) (int64, error)
}
