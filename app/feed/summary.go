package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const DefaultSummaryLength = 280

// SummaryExtractor turns HTML into a short plain-text excerpt.
type SummaryExtractor struct {
	maxLength int
}

func NewSummaryExtractor(maxLength int) *SummaryExtractor {
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}
	return &SummaryExtractor{maxLength: maxLength}
}

// Run extracts the main article text of a full HTML page.
func (e *SummaryExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := collapseSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Summary extracted",
		"title", article.Title,
		"content_length", len(text))

	return truncate(text, e.maxLength), nil
}

// FromFragment strips markup from an entry description.
func (e *SummaryExtractor) FromFragment(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	text := fragment
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err == nil {
		doc.Find("script, style").Remove()
		text = doc.Text()
	}

	return truncate(collapseSpace(text), e.maxLength)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes on a word boundary and appends "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	cut := string(runes[:n-3])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
