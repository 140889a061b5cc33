package news

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"msclkid": {},
	"dclid":   {},
	"yclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_hsenc":  {},
	"_hsmi":   {},
	"mkt_tok": {},
	"ref":     {},
	"ref_src": {},
	"igshid":  {},
}

func isTrackingParam(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	_, ok := trackingParams[lower]
	return ok
}

// CanonicalURL returns the comparison key for a URL. http and https copies of
// a page share a key. Inputs that do not parse as absolute URLs are returned
// trimmed and unchanged.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}

	if parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	// A root path keeps its slash
	if parsed.Path != "/" {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		if parsed.RawPath != "" {
			parsed.RawPath = strings.TrimRight(parsed.RawPath, "/")
		}
	}

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for key := range q {
			if isTrackingParam(key) {
				q.Del(key)
			}
		}
		// Encode sorts by key
		parsed.RawQuery = q.Encode()
	}
	parsed.ForceQuery = false

	return parsed.String()
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// isWordBreak reports punctuation that joins words, such as the hyphen in
// "AI-powered" or the slash in "Kubernetes/Docker".
func isWordBreak(r rune) bool {
	return r == '/' || unicode.Is(unicode.Pd, r) || unicode.Is(unicode.Pc, r)
}

// TitleFingerprint folds a title into a lower-case, accent-free string with
// single spaces between words. Dashes, underscores and slashes separate words;
// other punctuation is dropped, so "1.30" becomes "130".
func TitleFingerprint(raw string) string {
	folded, _, err := transform.String(foldMarks, raw)
	if err != nil {
		folded = raw
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), isWordBreak(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Canonicalizer prepares raw collector output for deduplication.
type Canonicalizer struct{}

func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{}
}

// Run trims title and URL, rejects items missing either, clamps the source
// weight to [0,1], drops negative engagement and clears derived fields.
func (c *Canonicalizer) Run(items []Item) ([]Item, []Rejection) {
	kept := make([]Item, 0, len(items))
	var rejected []Rejection

	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		item.URL = strings.TrimSpace(item.URL)

		if item.Title == "" {
			rejected = append(rejected, Rejection{Item: item, Reason: "empty title"})
			continue
		}
		if item.URL == "" {
			rejected = append(rejected, Rejection{Item: item, Reason: "empty url"})
			continue
		}

		item.SourceWeight = clamp(item.SourceWeight, 0, 1)
		if item.Engagement != nil && *item.Engagement < 0 {
			item.Engagement = nil
		}

		item.TopicsMatched = nil
		item.Score = 0
		item.Breakdown = Breakdown{}
		item.scored = false

		kept = append(kept, item)
	}

	return kept, rejected
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
