package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/insightpress/app/news"
)

const (
	recentThreshold     = 7.0
	trustedThreshold    = 8.0
	engagementThreshold = 100
)

// Reasons explains in plain words why a scored item ranked where it did.
func Reasons(item news.Item, now time.Time) []string {
	var reasons []string

	if item.PublishedAt != nil && item.Breakdown.Recency > recentThreshold {
		reasons = append(reasons, fmt.Sprintf("Recent (%s)", FormatAge(*item.PublishedAt, now)))
	}

	if item.Breakdown.Source > trustedThreshold {
		reasons = append(reasons, fmt.Sprintf("Trusted source (%s)", item.SourceName))
	}

	if item.Engagement != nil && *item.Engagement > engagementThreshold {
		reasons = append(reasons, fmt.Sprintf("High engagement (%d points)", *item.Engagement))
	}

	if len(item.TopicsMatched) > 0 {
		reasons = append(reasons, "Relevant topics: "+strings.Join(item.TopicsMatched, ", "))
	}

	return reasons
}

// FormatAge renders how long ago t was, relative to now.
func FormatAge(t, now time.Time) string {
	hours := now.Sub(t).Hours()

	switch {
	case hours < 1:
		return "< 1h ago"
	case hours < 24:
		return fmt.Sprintf("%dh ago", int(hours))
	default:
		return fmt.Sprintf("%dd ago", int(hours/24))
	}
}
