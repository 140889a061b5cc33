package feed

import (
	"fmt"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks entries rejected by the feed's include/exclude rules and
// entries without a link.
func (f *Filterer) Run(items []Item, feedConfig *Config) []Item {
	marked := make([]Item, 0, len(items))
	for _, item := range items {
		switch {
		case item.Link == "":
			item.IsFiltered, item.FilterReason = true, "missing link"
		case item.Title == "":
			item.IsFiltered, item.FilterReason = true, "missing title"
		default:
			item.IsFiltered, item.FilterReason = f.applyFilters(item, feedConfig.Filters)
		}
		marked = append(marked, item)
	}
	return marked
}

func (f *Filterer) applyFilters(item Item, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 && !f.matchesAny(value, filter.Includes) {
			return true, fmt.Sprintf("excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
		}
	}

	return false, ""
}

func (f *Filterer) matchesAny(value string, patterns []string) bool {
	for _, pattern := range patterns {
		if f.matchesFilter(value, pattern) {
			return true
		}
	}
	return false
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "authors":
		return strings.Join(item.Authors, " ")
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}
