package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/lysyi3m/insightpress/app/draft"
	"github.com/lysyi3m/insightpress/app/news"
)

// Skip is an item left out of the candidates, with the reason.
type Skip struct {
	Title  string
	Reason string
}

type Report struct {
	GeneratedAt time.Time
	CharLimit   int
	Drafts      []draft.Draft
	Candidates  []news.Item
	Skipped     []Skip
	Stats       news.Stats
	Sources     int
}

// Date is the report's calendar day in its own location.
func (r *Report) Date() string {
	return r.GeneratedAt.Format("2006-01-02")
}

func (r *Report) Filename() string {
	return fmt.Sprintf("drafts_%s.md", r.Date())
}

func (r *Report) Markdown() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Drafts for %s\n\n", r.Date())
	fmt.Fprintf(&buf, "_Generated %s_\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	buf.WriteString("## Top drafts\n\n")
	if len(r.Drafts) == 0 {
		buf.WriteString("No drafts fit the character limit today.\n\n")
	}
	for i, d := range r.Drafts {
		fmt.Fprintf(&buf, "### %d. %s\n\n", i+1, escape(d.Item.Title))
		fmt.Fprintf(&buf, "```text\n%s\n```\n\n", d.Content)
		fmt.Fprintf(&buf, "- Characters: %d/%d\n", d.CharCount(), r.CharLimit)
		fmt.Fprintf(&buf, "- Source: %s\n", escape(d.Item.SourceName))
		fmt.Fprintf(&buf, "- Score: %.2f\n", d.Item.Score)
		if len(d.Hashtags) > 0 {
			fmt.Fprintf(&buf, "- Hashtags: #%s\n", strings.Join(d.Hashtags, " #"))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Other candidates\n\n")
	if len(r.Candidates) == 0 {
		buf.WriteString("None.\n\n")
	}
	for i, item := range r.Candidates {
		fmt.Fprintf(&buf, "%d. [%s](%s) (%s, score %.2f)\n", i+1, escape(item.Title), item.URL, escape(item.SourceName), item.Score)
		for _, reason := range Reasons(item, r.GeneratedAt) {
			fmt.Fprintf(&buf, "   - %s\n", escape(reason))
		}
	}
	if len(r.Candidates) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("## Skipped items\n\n")
	if len(r.Skipped) == 0 {
		buf.WriteString("None.\n\n")
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&buf, "- %s: %s\n", escape(s.Title), escape(s.Reason))
	}
	if len(r.Skipped) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("## Statistics\n\n")
	fmt.Fprintf(&buf, "- Sources: %d\n", r.Sources)
	fmt.Fprintf(&buf, "- Items fetched: %d\n", r.Stats.RawIn)
	fmt.Fprintf(&buf, "- Rejected: %d\n", r.Stats.Rejected)
	fmt.Fprintf(&buf, "- Duplicates removed: %d\n", r.Stats.DuplicatesRemoved)
	fmt.Fprintf(&buf, "- Scored: %d\n", r.Stats.Scored)
	fmt.Fprintf(&buf, "- Candidates: %d\n", r.Stats.Final)
	if r.Stats.FuzzySkipped > 0 {
		fmt.Fprintf(&buf, "- Skipped by fuzzy limit: %d\n", r.Stats.FuzzySkipped)
	}
	fmt.Fprintf(&buf, "- Drafts: %d\n", len(r.Drafts))

	return buf.String()
}

// HTML renders the Markdown report as a standalone page.
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(r.Markdown()))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
		Title: "Drafts for " + r.Date(),
	})

	return markdown.Render(doc, renderer)
}

// Write stores the Markdown report in dir and returns its path.
func (r *Report) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, r.Filename())
	if err := os.WriteFile(path, []byte(r.Markdown()), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("Report written", "path", path, "drafts", len(r.Drafts), "candidates", len(r.Candidates))
	return path, nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"[", `\[`,
	"]", `\]`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
