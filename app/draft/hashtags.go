package draft

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lysyi3m/insightpress/app/news"
	"gopkg.in/yaml.v3"
)

// Mapping ties a keyword phrase to the hashtag it earns.
type Mapping struct {
	Keyword string
	Hashtag string
}

var defaultMappings = []Mapping{
	{"ai", "AI"},
	{"artificial intelligence", "AI"},
	{"machine learning", "MachineLearning"},
	{"ml", "MachineLearning"},
	{"deep learning", "DeepLearning"},
	{"llm", "LLM"},
	{"large language model", "LLM"},
	{"kubernetes", "Kubernetes"},
	{"k8s", "Kubernetes"},
	{"docker", "Docker"},
	{"devops", "DevOps"},
	{"security", "Security"},
	{"cybersecurity", "CyberSecurity"},
	{"infosec", "InfoSec"},
	{"mlops", "MLOps"},
	{"rust", "RustLang"},
	{"python", "Python"},
	{"golang", "Golang"},
	{"go", "Golang"},
	{"aws", "AWS"},
	{"azure", "Azure"},
	{"gcp", "GCP"},
	{"cloud", "CloudComputing"},
	{"observability", "Observability"},
	{"monitoring", "Monitoring"},
	{"terraform", "Terraform"},
	{"openai", "OpenAI"},
	{"anthropic", "Anthropic"},
	{"api", "API"},
	{"open source", "OpenSource"},
	{"opensource", "OpenSource"},
}

type Hashtags struct {
	mappings []Mapping
}

func NewHashtags(mappings []Mapping) *Hashtags {
	return &Hashtags{mappings: mappings}
}

// DefaultHashtags returns the built-in whitelist.
func DefaultHashtags() *Hashtags {
	return NewHashtags(defaultMappings)
}

type hashtagsFile struct {
	Mappings yaml.Node `yaml:"mappings"`
}

// LoadHashtags reads a YAML `mappings:` block. File order decides which tags
// win when more match than allowed. A missing file falls back to defaults.
func LoadHashtags(path string) (*Hashtags, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("Hashtags config not found, using defaults", "path", path)
		return DefaultHashtags(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hashtags file: %w", err)
	}

	var raw hashtagsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse hashtags YAML: %w", err)
	}

	if raw.Mappings.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("hashtags file %s has no mappings section", path)
	}

	content := raw.Mappings.Content
	mappings := make([]Mapping, 0, len(content)/2)
	for i := 0; i+1 < len(content); i += 2 {
		keyword := strings.TrimSpace(content[i].Value)
		hashtag := strings.TrimSpace(content[i+1].Value)
		if keyword == "" || hashtag == "" {
			continue
		}
		mappings = append(mappings, Mapping{Keyword: keyword, Hashtag: hashtag})
	}

	slog.Debug("Hashtag mappings loaded", "path", path, "count", len(mappings))
	return NewHashtags(mappings), nil
}

// Run returns up to max lower-case hashtags (without '#') whose keywords appear
// as whole words in the title or summary.
func (h *Hashtags) Run(item news.Item, max int) []string {
	if max <= 0 {
		return nil
	}

	text := wordText(item)

	var tags []string
	seen := make(map[string]bool)
	for _, m := range h.mappings {
		if !containsPhrase(text, m.Keyword) {
			continue
		}
		tag := strings.ToLower(m.Hashtag)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == max {
			break
		}
	}
	return tags
}

// wordText normalizes title and summary into space-padded tokens so phrases
// can be matched on word boundaries.
func wordText(item news.Item) string {
	return " " + news.TitleFingerprint(item.Title+" "+item.Summary) + " "
}

func containsPhrase(text, phrase string) bool {
	normalized := news.TitleFingerprint(phrase)
	if normalized == "" {
		return false
	}
	return strings.Contains(text, " "+normalized+" ")
}
