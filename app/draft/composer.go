package draft

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/insightpress/app/news"
)

const (
	DefaultCharLimit   = 260
	DefaultHashtagsMax = 3
	MaxHookLength      = 50
)

type template struct {
	implications []string
	actions      []string
}

var templates = []template{
	{
		implications: []string{
			"This changes how teams will need to handle {domain}.",
			"Worth understanding the operational cost before adopting.",
			"This is the kind of guardrail teams need to stop {risk}.",
			"Could shift security posture for {domain} workflows.",
			"Likely to impact how we think about {domain} trade-offs.",
			"Matters for anyone running {domain} in production.",
			"This addresses a real gap in {domain} tooling.",
		},
	},
	{
		implications: []string{
			"Implications for {domain} teams are non-trivial.",
			"This could reduce operational overhead in {domain}.",
			"Security implications worth reviewing.",
			"Performance trade-offs here matter at scale.",
			"Changes the risk calculus for {domain} deployments.",
		},
		actions: []string{
			"Test in non-prod first.",
			"Review the trade-offs before adopting.",
			"Worth a look at the architecture.",
			"Check compatibility with existing workflows.",
		},
	},
	{
		implications: []string{
			"This affects anyone responsible for {domain} reliability.",
			"Cost implications need review before rollout.",
			"Could help reduce toil in {domain} operations.",
			"Worth watching if you manage {domain} at scale.",
			"Security model here is different than most assume.",
		},
	},
}

type keywordLabel struct {
	keyword string
	label   string
}

var domains = []keywordLabel{
	{"kubernetes", "container orchestration"},
	{"docker", "containerization"},
	{"ai", "AI systems"},
	{"llm", "LLM deployments"},
	{"ml", "ML pipelines"},
	{"security", "production security"},
	{"devops", "DevOps"},
	{"cloud", "cloud infrastructure"},
	{"observability", "observability"},
	{"rust", "systems programming"},
	{"python", "Python development"},
}

var risks = []keywordLabel{
	{"ai", "AI tooling creeping into prod"},
	{"llm", "unvetted LLM usage"},
	{"security", "unpatched vulnerabilities"},
	{"kubernetes", "cluster misconfigurations"},
	{"cloud", "runaway cloud costs"},
}

const (
	defaultDomain = "production systems"
	defaultRisk   = "operational issues"
)

var hookPrefixes = []string{
	"Show HN: ",
	"Ask HN: ",
	"Tell HN: ",
	"Launch HN: ",
	"Announcing ",
	"Introducing ",
}

var danglingWords = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "of": true,
	"to": true, "for": true, "at": true, "by": true, "on": true,
}

// Draft is a ready-to-post text built from one candidate.
type Draft struct {
	Item        news.Item
	Hook        string
	Implication string
	Action      string
	Hashtags    []string
	Content     string
	Mode        string
}

func (d Draft) CharCount() int {
	return utf8.RuneCountInString(d.Content)
}

type Config struct {
	Count       int
	CharLimit   int
	HashtagsMax int
}

type Composer struct {
	cfg      Config
	hashtags *Hashtags
	writer   Writer
}

type Option func(*Composer)

// WithWriter tries w before the templates for every candidate. Drafts the
// writer fails to produce, or that break the drafting rules, fall back to
// templates.
func WithWriter(w Writer) Option {
	return func(c *Composer) {
		c.writer = w
	}
}

func NewComposer(cfg Config, hashtags *Hashtags, opts ...Option) *Composer {
	if cfg.CharLimit <= 0 {
		cfg.CharLimit = DefaultCharLimit
	}
	if cfg.HashtagsMax < 0 {
		cfg.HashtagsMax = 0
	}
	if hashtags == nil {
		hashtags = DefaultHashtags()
	}
	c := &Composer{cfg: cfg, hashtags: hashtags}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drafts up to Count posts from ranked candidates, in rank order. Without
// a writer the same candidates always produce the same drafts.
func (c *Composer) Run(ctx context.Context, candidates []news.Item) []Draft {
	var drafts []Draft
	usedTitles := make(map[string]bool)

	for _, item := range candidates {
		if len(drafts) >= c.cfg.Count {
			break
		}

		title := news.TitleFingerprint(item.Title)
		if usedTitles[title] {
			slog.Debug("Skipping repeated title", "title", item.Title)
			continue
		}

		d, ok := c.write(ctx, item)
		if !ok {
			d, ok = c.compose(item)
		}
		if !ok {
			slog.Debug("Skipping over-limit draft", "title", item.Title, "limit", c.cfg.CharLimit)
			continue
		}

		usedTitles[title] = true
		drafts = append(drafts, d)
	}

	slog.Info("Drafts composed", "count", len(drafts), "limit", c.cfg.CharLimit, "mode", c.mode())
	return drafts
}

func (c *Composer) mode() string {
	if c.writer == nil {
		return ModeTemplate
	}
	return c.writer.Name()
}

func (c *Composer) write(ctx context.Context, item news.Item) (Draft, bool) {
	if c.writer == nil || ctx.Err() != nil {
		return Draft{}, false
	}

	req := Request{
		Item:            item,
		AllowedHashtags: c.hashtags.Run(item, c.cfg.HashtagsMax),
		CharLimit:       c.cfg.CharLimit,
		HashtagsMax:     c.cfg.HashtagsMax,
	}

	resp, err := c.writer.Write(ctx, req)
	if err == nil {
		err = resp.Validate(req)
	}
	if err != nil {
		slog.Warn("Draft writer failed, falling back to templates", "writer", c.writer.Name(), "title", item.Title, "error", err)
		return Draft{}, false
	}

	var action string
	if resp.Action != nil {
		action = strings.TrimSpace(*resp.Action)
	}

	return Draft{
		Item:        item,
		Hook:        strings.TrimSpace(resp.Hook),
		Implication: strings.TrimSpace(resp.Implication),
		Action:      action,
		Hashtags:    resp.Hashtags,
		Content:     resp.FinalPost,
		Mode:        c.writer.Name(),
	}, true
}

func (c *Composer) compose(item news.Item) (Draft, bool) {
	h := hashKey(news.CanonicalURL(item.URL))

	tpl := templates[h%uint64(len(templates))]
	h /= uint64(len(templates))

	implication := tpl.implications[h%uint64(len(tpl.implications))]
	h /= uint64(len(tpl.implications))

	domain, risk := implicationContext(item)
	implication = strings.NewReplacer("{domain}", domain, "{risk}", risk).Replace(implication)

	var action string
	if len(tpl.actions) > 0 && h%2 == 1 {
		h /= 2
		action = tpl.actions[h%uint64(len(tpl.actions))]
	}

	d := Draft{
		Item:        item,
		Hook:        Hook(item.Title),
		Implication: implication,
		Action:      action,
		Hashtags:    c.hashtags.Run(item, c.cfg.HashtagsMax),
		Mode:        ModeTemplate,
	}
	d.Content = render(d)

	return c.fit(d)
}

// fit trims a draft until it respects the character limit: hashtags go first,
// then the action, then hook words from the end.
func (c *Composer) fit(d Draft) (Draft, bool) {
	for d.CharCount() > c.cfg.CharLimit && len(d.Hashtags) > 0 {
		d.Hashtags = d.Hashtags[:len(d.Hashtags)-1]
		d.Content = render(d)
	}

	if d.CharCount() > c.cfg.CharLimit && d.Action != "" {
		d.Action = ""
		d.Content = render(d)
	}

	for d.CharCount() > c.cfg.CharLimit {
		words := strings.Fields(d.Hook)
		if len(words) <= 1 {
			return d, false
		}
		d.Hook = strings.Join(words[:len(words)-1], " ")
		d.Content = render(d)
	}

	return d, true
}

func render(d Draft) string {
	var b strings.Builder

	b.WriteString(d.Hook)
	b.WriteString(" ")
	b.WriteString(d.Implication)
	if d.Action != "" {
		b.WriteString(" ")
		b.WriteString(d.Action)
	}

	b.WriteString("\n")
	b.WriteString(d.Item.URL)

	if len(d.Hashtags) > 0 {
		b.WriteString("\n")
		for i, tag := range d.Hashtags {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString("#")
			b.WriteString(tag)
		}
	}

	return b.String()
}

// Hook shortens a headline into the opening of a post: promotional prefixes
// are dropped and long titles are cut at a sentence or word boundary.
func Hook(title string) string {
	title = strings.TrimSpace(title)
	for _, prefix := range hookPrefixes {
		title = strings.TrimPrefix(title, prefix)
	}

	if utf8.RuneCountInString(title) <= MaxHookLength {
		return title
	}

	head := truncateRunes(title, MaxHookLength)

	if i := strings.Index(head, ". "); i >= 0 {
		return head[:i+1]
	}

	i := strings.LastIndex(head, " ")
	if i < 0 {
		return strings.TrimRight(head, ",;:")
	}

	words := strings.Fields(head[:i])
	if len(words) > 1 && danglingWords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}

	return strings.TrimRight(strings.Join(words, " "), ",;:")
}

func implicationContext(item news.Item) (string, string) {
	text := wordText(item)

	domain := defaultDomain
	for _, d := range domains {
		if containsPhrase(text, d.keyword) {
			domain = d.label
			break
		}
	}

	risk := defaultRisk
	for _, r := range risks {
		if containsPhrase(text, r.keyword) {
			risk = r.label
			break
		}
	}

	return domain, risk
}

func hashKey(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
