package feed

import (
	"cmp"

	"github.com/lysyi3m/insightpress/app/news"
)

// ToNews converts filtered entries into ranking items and reports the rest
// as skipped. At most the feed's max_items entries are kept.
func ToNews(feedConfig *Config, items []Item, defaultWeight float64, extractor *SummaryExtractor) ([]news.Item, []Skipped) {
	weight := feedConfig.EffectiveWeight(defaultWeight)

	var out []news.Item
	var skipped []Skipped
	for _, item := range items {
		if item.IsFiltered {
			skipped = append(skipped, Skipped{
				Feed:   feedConfig.Name,
				Title:  item.Title,
				Link:   item.Link,
				Reason: item.FilterReason,
			})
			continue
		}

		if feedConfig.Settings.MaxItems > 0 && len(out) >= feedConfig.Settings.MaxItems {
			break
		}

		out = append(out, news.Item{
			Title:        item.Title,
			URL:          item.Link,
			SourceName:   feedConfig.Name,
			SourceWeight: weight,
			PublishedAt:  item.PublishedAt,
			Summary:      extractor.FromFragment(cmp.Or(item.Description, item.Content)),
		})
	}

	return out, skipped
}
