package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time // nil when the entry carries no usable date
	Authors     []string   // Multiple authors in format "email (name)" or "name"
	Categories  []string

	IsFiltered   bool
	FilterReason string
}

// Skipped describes an entry that never reached ranking.
type Skipped struct {
	Feed   string
	Title  string
	Link   string
	Reason string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Weight   *float64       `yaml:"weight"` // falls back to the global RSS weight
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled        bool `yaml:"enabled"`
	MaxItems       int  `yaml:"max_items"`
	Timeout        int  `yaml:"timeout"`         // seconds
	ExtractSummary bool `yaml:"extract_summary"` // fetch the article page when the entry has no description
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (c *Config) EffectiveWeight(defaultWeight float64) float64 {
	if c.Weight != nil {
		return *c.Weight
	}
	return defaultWeight
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}
