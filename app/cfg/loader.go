package cfg

import (
	"cmp"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

var llmProviders = map[string]bool{
	"none":      true,
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
}

var hnStoryTypes = map[string]bool{
	"topstories":  true,
	"beststories": true,
	"newstories":  true,
}

type rawCfg struct {
	// Locations
	FeedsDir     string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	HashtagsFile string `long:"hashtags-file" env:"HASHTAGS_FILE" default:"./config/hashtags.yml" description:"Keyword to hashtag mapping file"`
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./cache/insightpress.db" description:"SQLite database used for the fetch cache and used items"`
	OutputDir    string `long:"output-dir" env:"OUTPUT_DIR" default:"./output" description:"Directory for generated reports"`

	// Collection
	HNStoryType    string  `long:"hn-story-type" env:"HN_STORY_TYPE" default:"beststories" description:"Hacker News list (topstories, beststories, newstories)"`
	HNMaxStories   int     `long:"hn-max-stories" env:"HN_MAX_STORIES" default:"50" description:"Maximum Hacker News stories to fetch"`
	WeightHN       float64 `long:"weight-hn" env:"WEIGHT_HN" default:"1.0" description:"Source weight for Hacker News items"`
	WeightRSS      float64 `long:"weight-rss-default" env:"WEIGHT_RSS_DEFAULT" default:"0.8" description:"Source weight for feeds without an explicit weight"`
	WorkerCount    int     `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent collection workers"`
	RequestTimeout int     `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"10" description:"HTTP request timeout in seconds"`
	UserAgent      string  `long:"user-agent" env:"USER_AGENT" default:"insightpress/1.0" description:"User agent string for HTTP requests"`
	Refresh        bool    `long:"refresh" env:"REFRESH" description:"Ignore today's fetch cache and collect again"`

	// Ranking
	MaxItems          int     `long:"max-items" env:"MAX_ITEMS" default:"30" description:"Maximum number of ranked candidates"`
	Topics            string  `long:"topics" env:"TOPICS" default:"ai,llm,kubernetes,devops,security,mlops,rust,python,aws,observability" description:"Comma separated topic keywords"`
	RecencyHours      int     `long:"recency-hours" env:"RECENCY_HOURS" default:"72" description:"Age in hours at which the recency score reaches its floor"`
	FuzzyThreshold    float64 `long:"fuzzy-threshold" env:"FUZZY_THRESHOLD" default:"0.85" description:"Title similarity at which two items are the same story"`
	WeightRecency     float64 `long:"weight-recency" env:"WEIGHT_RECENCY" default:"3" description:"Weight of the recency score"`
	WeightTopic       float64 `long:"weight-topic" env:"WEIGHT_TOPIC" default:"4" description:"Weight of the topic score"`
	WeightSource      float64 `long:"weight-source" env:"WEIGHT_SOURCE" default:"2" description:"Weight of the source score"`
	WeightEngagement  float64 `long:"weight-engagement" env:"WEIGHT_ENGAGEMENT" default:"2" description:"Weight of the engagement score"`
	UsedRetentionDays int     `long:"used-retention-days" env:"USED_RETENTION_DAYS" default:"7" description:"Days a drafted item is excluded from new drafts"`

	// Drafting
	DraftsCount int `long:"drafts" env:"DRAFTS_COUNT" default:"4" description:"Number of post drafts to generate"`
	HashtagsMax int `long:"hashtags-max" env:"HASHTAGS_MAX" default:"3" description:"Maximum hashtags per draft"`
	CharLimit   int `long:"char-limit" env:"CHAR_LIMIT" default:"260" description:"Maximum characters per draft"`

	// LLM drafting
	LLMProvider    string  `long:"llm-provider" env:"LLM_PROVIDER" default:"none" description:"Draft writer (none, gemini, openai, anthropic)"`
	LLMModel       string  `long:"llm-model" env:"LLM_MODEL" description:"Provider model name (provider default when empty)"`
	LLMAPIKey      string  `long:"llm-api-key" env:"LLM_API_KEY" description:"API key for the LLM provider"`
	LLMTemperature float64 `long:"llm-temperature" env:"LLM_TEMPERATURE" default:"0.2" description:"Sampling temperature"`
	LLMTimeout     int     `long:"llm-timeout" env:"LLM_TIMEOUT" default:"20" description:"LLM request timeout in seconds"`
	LLMMaxRetries  int     `long:"llm-max-retries" env:"LLM_MAX_RETRIES" default:"2" description:"Correction attempts after an invalid LLM response"`
	NoLLM          bool    `long:"no-llm" env:"NO_LLM" description:"Force template drafting"`

	// Serve mode
	Serve        bool   `long:"serve" env:"SERVE" description:"Run scheduled digests and serve the HTTP API"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	Schedule     string `long:"schedule" env:"SCHEDULE" default:"0 7 * * *" description:"Cron expression for scheduled runs"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps and schedules (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedsDir:          raw.FeedsDir,
		HashtagsFile:      raw.HashtagsFile,
		DBPath:            raw.DBPath,
		OutputDir:         raw.OutputDir,
		HNStoryType:       strings.ToLower(strings.TrimSpace(raw.HNStoryType)),
		HNMaxStories:      raw.HNMaxStories,
		WeightHN:          raw.WeightHN,
		WeightRSS:         raw.WeightRSS,
		WorkerCount:       raw.WorkerCount,
		RequestTimeout:    raw.RequestTimeout,
		UserAgent:         raw.UserAgent,
		Refresh:           raw.Refresh,
		MaxItems:          raw.MaxItems,
		Topics:            splitList(raw.Topics),
		RecencyHours:      raw.RecencyHours,
		FuzzyThreshold:    raw.FuzzyThreshold,
		WeightRecency:     raw.WeightRecency,
		WeightTopic:       raw.WeightTopic,
		WeightSource:      raw.WeightSource,
		WeightEngagement:  raw.WeightEngagement,
		UsedRetentionDays: raw.UsedRetentionDays,
		DraftsCount:       raw.DraftsCount,
		HashtagsMax:       raw.HashtagsMax,
		CharLimit:         raw.CharLimit,
		LLMProvider:       strings.ToLower(strings.TrimSpace(raw.LLMProvider)),
		LLMModel:          strings.TrimSpace(raw.LLMModel),
		LLMAPIKey:         raw.LLMAPIKey,
		LLMTemperature:    raw.LLMTemperature,
		LLMTimeout:        raw.LLMTimeout,
		LLMMaxRetries:     raw.LLMMaxRetries,
		Serve:             raw.Serve,
		Port:              raw.Port,
		Schedule:          raw.Schedule,
		APIAccessKey:      raw.APIAccessKey,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if raw.NoLLM || cfg.LLMProvider == "" {
		cfg.LLMProvider = "none"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks option ranges that the flag parser cannot express.
func (c *Cfg) Validate() error {
	if c.MaxItems <= 0 {
		return fmt.Errorf("max items must be positive, got %d", c.MaxItems)
	}
	if c.DraftsCount <= 0 {
		return fmt.Errorf("drafts count must be positive, got %d", c.DraftsCount)
	}
	if c.HNMaxStories <= 0 {
		return fmt.Errorf("hn max stories must be positive, got %d", c.HNMaxStories)
	}
	if !hnStoryTypes[c.HNStoryType] {
		return fmt.Errorf("unsupported hn story type: %s", c.HNStoryType)
	}
	if c.RecencyHours <= 0 {
		return fmt.Errorf("recency hours must be positive, got %d", c.RecencyHours)
	}
	for name, v := range map[string]float64{
		"fuzzy threshold":   c.FuzzyThreshold,
		"weight recency":    c.WeightRecency,
		"weight topic":      c.WeightTopic,
		"weight source":     c.WeightSource,
		"weight engagement": c.WeightEngagement,
		"weight hn":         c.WeightHN,
		"weight rss":        c.WeightRSS,
		"llm temperature":   c.LLMTemperature,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", name, v)
		}
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be in (0, 1], got %v", c.FuzzyThreshold)
	}
	if c.WeightRecency < 0 || c.WeightTopic < 0 || c.WeightSource < 0 || c.WeightEngagement < 0 {
		return fmt.Errorf("score weights must not be negative")
	}
	if c.WeightRecency+c.WeightTopic+c.WeightSource+c.WeightEngagement == 0 {
		return fmt.Errorf("at least one score weight must be positive")
	}
	if c.WeightHN < 0 || c.WeightHN > 1 || c.WeightRSS < 0 || c.WeightRSS > 1 {
		return fmt.Errorf("source weights must be between 0 and 1")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.CharLimit <= 0 {
		return fmt.Errorf("char limit must be positive, got %d", c.CharLimit)
	}
	if !llmProviders[c.LLMProvider] {
		return fmt.Errorf("unsupported llm provider: %s", c.LLMProvider)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("llm temperature must be in [0, 2], got %v", c.LLMTemperature)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %d", c.LLMTimeout)
	}
	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("llm max retries must not be negative, got %d", c.LLMMaxRetries)
	}
	return nil
}

func (c *Cfg) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Cfg) LLMRequestTimeout() time.Duration {
	return time.Duration(c.LLMTimeout) * time.Second
}

func (c *Cfg) RecencyWindow() time.Duration {
	return time.Duration(c.RecencyHours) * time.Hour
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
