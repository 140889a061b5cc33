package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/insightpress/app/news"
)

const (
	ModeTemplate = "template"

	minImplicationLength = 10
)

var ErrInvalidResponse = errors.New("invalid draft response")

// Request is everything a writer gets to know about one candidate.
type Request struct {
	Item            news.Item
	AllowedHashtags []string
	CharLimit       int
	HashtagsMax     int
}

// Response is the structured draft a language model returns.
type Response struct {
	Hook        string   `json:"hook"`
	Implication string   `json:"implication"`
	Action      *string  `json:"action"`
	Hashtags    []string `json:"hashtags"`
	FinalPost   string   `json:"final_post"`
}

// Validate checks a response against the drafting rules for req.
func (r *Response) Validate(req Request) error {
	if strings.TrimSpace(r.FinalPost) == "" {
		return fmt.Errorf("%w: empty final post", ErrInvalidResponse)
	}
	if n := utf8.RuneCountInString(r.FinalPost); n > req.CharLimit {
		return fmt.Errorf("%w: %d characters exceed the %d limit", ErrInvalidResponse, n, req.CharLimit)
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Implication)) < minImplicationLength {
		return fmt.Errorf("%w: missing or too short implication", ErrInvalidResponse)
	}
	if !strings.Contains(r.FinalPost, req.Item.URL) {
		return fmt.Errorf("%w: final post does not contain %s", ErrInvalidResponse, req.Item.URL)
	}
	if len(r.Hashtags) > req.HashtagsMax {
		return fmt.Errorf("%w: %d hashtags, at most %d allowed", ErrInvalidResponse, len(r.Hashtags), req.HashtagsMax)
	}

	allowed := make(map[string]bool, len(req.AllowedHashtags))
	for _, tag := range req.AllowedHashtags {
		allowed[tag] = true
	}
	for _, tag := range r.Hashtags {
		if tag != strings.ToLower(tag) {
			return fmt.Errorf("%w: hashtag %q is not lowercase", ErrInvalidResponse, tag)
		}
		if !allowed[tag] {
			return fmt.Errorf("%w: hashtag %q is not whitelisted", ErrInvalidResponse, tag)
		}
	}

	return nil
}

// ParseResponse decodes a model reply, tolerating a fenced code block around
// the JSON object. Leading '#' characters are stripped from hashtags.
func ParseResponse(text string) (*Response, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	for i, tag := range resp.Hashtags {
		resp.Hashtags[i] = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	}

	return &resp, nil
}

// Writer produces a draft response for one candidate.
type Writer interface {
	Name() string
	Write(ctx context.Context, req Request) (*Response, error)
}

// Model is a text-in, text-out language model.
type Model interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// LLMWriter asks a model for a draft and retries with the validation error
// appended to the prompt until the reply passes or retries run out.
type LLMWriter struct {
	name       string
	model      Model
	maxRetries int
}

func NewLLMWriter(name string, model Model, maxRetries int) *LLMWriter {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &LLMWriter{name: name, model: model, maxRetries: maxRetries}
}

func (w *LLMWriter) Name() string {
	return "llm:" + w.name
}

func (w *LLMWriter) Write(ctx context.Context, req Request) (*Response, error) {
	system := systemPrompt(req)
	base := userPrompt(req)
	prompt := base

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := w.model.Generate(ctx, system, prompt)
		if err != nil {
			lastErr = fmt.Errorf("failed to generate draft: %w", err)
			continue
		}

		resp, err := ParseResponse(text)
		if err == nil {
			err = resp.Validate(req)
		}
		if err == nil {
			return resp, nil
		}

		slog.Debug("Draft response rejected", "writer", w.Name(), "attempt", attempt+1, "error", err)
		lastErr = err
		prompt = base + "\n\n" + correctionPrompt(err, req)
	}

	return nil, lastErr
}

func systemPrompt(req Request) string {
	return fmt.Sprintf(`You draft short technical posts for a DevOps and AI practitioner.

Rules:
1. The final post must be at most %d characters.
2. It must state one concrete implication: a risk, a cost, a workflow change, a security posture change or an operational trade-off.
3. Structure: a one-sentence hook on what changed, one implication sentence, an optional short action, then the URL on its own line, then hashtags on their own line.
4. Calm practitioner voice. No emojis, no hype, nothing beyond the source facts, never the headline verbatim.
5. At most %d hashtags, lowercase, only from the allowed list, none when nothing fits.

Reply with JSON only:
{"hook": "...", "implication": "...", "action": "... or null", "hashtags": ["..."], "final_post": "..."}`,
		req.CharLimit, req.HashtagsMax)
}

func userPrompt(req Request) string {
	item := req.Item

	published := "unknown"
	if item.PublishedAt != nil {
		published = item.PublishedAt.UTC().Format(time.RFC3339)
	}
	summary := item.Summary
	if summary == "" {
		summary = "none"
	}
	topics := "none"
	if len(item.TopicsMatched) > 0 {
		topics = strings.Join(item.TopicsMatched, ", ")
	}
	hashtags := "none"
	if len(req.AllowedHashtags) > 0 {
		hashtags = strings.Join(req.AllowedHashtags, ", ")
	}

	return fmt.Sprintf(`Draft a post for this item.

Title: %s
Source: %s
Published: %s
URL: %s
Summary: %s
Matched topics: %s
Allowed hashtags: %s

The final post must contain the exact URL %s.`,
		item.Title, item.SourceName, published, item.URL, summary, topics, hashtags, item.URL)
}

func correctionPrompt(err error, req Request) string {
	return fmt.Sprintf("Your previous reply was rejected: %v. Fix it and reply with JSON only. Keep final_post within %d characters and include %s.",
		err, req.CharLimit, req.Item.URL)
}

// WriterConfig selects and tunes the optional language model writer.
type WriterConfig struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	BaseURL     string
}

// NewWriter builds the configured writer. It returns nil when drafting should
// stay template based: provider "none", a missing key or an unsupported
// provider.
func NewWriter(ctx context.Context, wc WriterConfig) (Writer, error) {
	provider := strings.ToLower(strings.TrimSpace(wc.Provider))

	switch {
	case provider == "" || provider == "none":
		slog.Info("LLM drafting disabled, using templates")
		return nil, nil
	case wc.APIKey == "":
		slog.Warn("LLM provider selected without API key, using templates", "provider", provider)
		return nil, nil
	}

	switch provider {
	case "gemini":
		model, err := NewGeminiModel(ctx, GeminiConfig{
			APIKey:      wc.APIKey,
			Model:       wc.Model,
			Temperature: wc.Temperature,
			Timeout:     wc.Timeout,
			BaseURL:     wc.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("LLM drafting enabled", "provider", provider, "model", model.Model())
		return NewLLMWriter(provider, model, wc.MaxRetries), nil
	default:
		slog.Warn("LLM provider not supported, using templates", "provider", provider)
		return nil, nil
	}
}
