package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-2.0-flash"

	defaultGeminiTimeout = 20 * time.Second
)

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	BaseURL     string // overrides the API endpoint
}

// GeminiModel generates text through the Gemini API.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

func NewGeminiModel(ctx context.Context, gc GeminiConfig) (*GeminiModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  gc.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if gc.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: gc.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if gc.Model == "" {
		gc.Model = DefaultGeminiModel
	}
	if gc.Timeout <= 0 {
		gc.Timeout = defaultGeminiTimeout
	}

	return &GeminiModel{
		client:      client,
		model:       gc.Model,
		temperature: float32(gc.Temperature),
		timeout:     gc.Timeout,
	}, nil
}

func (g *GeminiModel) Model() string {
	return g.model
}

func (g *GeminiModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	}

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, config)
	if err != nil {
		return "", fmt.Errorf("Gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty Gemini response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty Gemini response")
	}

	return b.String(), nil
}
