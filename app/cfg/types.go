package cfg

type Cfg struct {
	// Locations
	FeedsDir     string
	HashtagsFile string
	DBPath       string
	OutputDir    string

	// Collection
	HNStoryType    string
	HNMaxStories   int
	WeightHN       float64
	WeightRSS      float64
	WorkerCount    int
	RequestTimeout int
	UserAgent      string
	Refresh        bool

	// Ranking
	MaxItems          int
	Topics            []string
	RecencyHours      int
	FuzzyThreshold    float64
	WeightRecency     float64
	WeightTopic       float64
	WeightSource      float64
	WeightEngagement  float64
	UsedRetentionDays int

	// Drafting
	DraftsCount int
	HashtagsMax int
	CharLimit   int

	// LLM drafting
	LLMProvider    string
	LLMModel       string
	LLMAPIKey      string
	LLMTemperature float64
	LLMTimeout     int
	LLMMaxRetries  int

	// Serve mode
	Serve        bool
	Port         string
	Schedule     string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
