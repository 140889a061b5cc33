package feed

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSummaryExtractor_Run(t *testing.T) {
	extractor := NewSummaryExtractor(0)

	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head><title>Test Article</title></head>
	<body>
		<header><nav>Navigation</nav></header>
		<main>
			<article>
				<h1>Main Article Title</h1>
				<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
				<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
				<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
			</article>
		</main>
		<footer><p>Copyright 2024</p></footer>
	</body>
	</html>
	`

	result, err := extractor.Run([]byte(htmlContent))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "main content of the article") {
		t.Errorf("Expected summary to contain main article text, got: %s", result)
	}
	if strings.Contains(result, "<p>") {
		t.Error("Expected plain text summary")
	}
	if utf8.RuneCountInString(result) > DefaultSummaryLength {
		t.Errorf("Expected summary of at most %d runes, got %d", DefaultSummaryLength, utf8.RuneCountInString(result))
	}
}

func TestSummaryExtractor_RunEmpty(t *testing.T) {
	if _, err := NewSummaryExtractor(0).Run(nil); err == nil {
		t.Error("Expected error for empty HTML")
	}
}

func TestSummaryExtractor_FromFragment(t *testing.T) {
	extractor := NewSummaryExtractor(40)

	got := extractor.FromFragment(`<p>Hello <b>world</b></p><script>alert(1)</script>`)
	if got != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", got)
	}

	long := extractor.FromFragment("<p>" + strings.Repeat("word ", 30) + "</p>")
	if !strings.HasSuffix(long, "...") {
		t.Errorf("Expected truncated summary, got %q", long)
	}
	if utf8.RuneCountInString(long) > 40 {
		t.Errorf("Expected at most 40 runes, got %d", utf8.RuneCountInString(long))
	}

	if extractor.FromFragment("   ") != "" {
		t.Error("Expected empty summary for blank input")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected 'short', got %q", got)
	}
	if got := truncate("alpha beta gamma delta", 15); got != "alpha beta..." {
		t.Errorf("Expected 'alpha beta...', got %q", got)
	}
}
