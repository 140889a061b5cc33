package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/insightpress/app/cfg"
	"github.com/lysyi3m/insightpress/app/digest"
	"github.com/lysyi3m/insightpress/app/draft"
	"github.com/lysyi3m/insightpress/app/news"
	"github.com/lysyi3m/insightpress/app/report"
)

func setupTestConfig() {
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	cfg.Load()
}

type fakeService struct {
	last    *digest.Digest
	running bool
	runs    chan bool
}

func (f *fakeService) Run(ctx context.Context, refresh bool) (*digest.Digest, error) {
	f.runs <- refresh
	return f.last, nil
}

func (f *fakeService) Last() *digest.Digest {
	return f.last
}

func (f *fakeService) Running() bool {
	return f.running
}

func testDigest() *digest.Digest {
	generated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	item := news.Item{
		Title:         "Kubernetes 1.30 <released>",
		URL:           "https://k8s.example.com/130",
		SourceName:    "HackerNews",
		PublishedAt:   news.TimePtr(generated.Add(-2 * time.Hour)),
		Engagement:    news.IntPtr(300),
		TopicsMatched: []string{"kubernetes"},
		Score:         8.1,
		Breakdown:     news.Breakdown{Recency: 9.7, Topic: 3.3, Source: 10, Engagement: 9.2},
	}

	return &digest.Digest{
		Report: &report.Report{
			GeneratedAt: generated,
			CharLimit:   260,
			Drafts:      []draft.Draft{{Item: item, Content: "Kubernetes 1.30\nhttps://k8s.example.com/130", Hashtags: []string{"kubernetes"}, Mode: "template"}},
			Candidates:  []news.Item{item},
		},
		Result: &news.Result{
			Candidates: []news.Item{item},
			Stats:      news.Stats{RawIn: 3, DuplicatesRemoved: 1, Scored: 2, Final: 1},
		},
	}
}

func perform(t *testing.T, service DigestService, apiKey, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	server := NewServer(NewHandler(context.Background(), service), apiKey)

	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := perform(t, &fakeService{last: testDigest()}, "", http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["last_run"] != "2024-05-01T12:00:00Z" {
		t.Errorf("Unexpected health body: %v", body)
	}
}

func TestEndpointsWithoutDigest(t *testing.T) {
	for _, path := range []string{"/candidates", "/feed.xml", "/report"} {
		w := perform(t, &fakeService{}, "", http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, w.Code)
		}
	}
}

func TestCandidates(t *testing.T) {
	w := perform(t, &fakeService{last: testDigest()}, "", http.MethodGet, "/candidates", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body candidatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	if body.Stats.RawIn != 3 || body.Stats.Final != 1 {
		t.Errorf("Unexpected stats: %+v", body.Stats)
	}
	if len(body.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(body.Candidates))
	}

	c := body.Candidates[0]
	if c.Rank != 1 || c.Source != "HackerNews" || c.Breakdown.Source != 10 {
		t.Errorf("Unexpected candidate: %+v", c)
	}
	if len(c.Reasons) != 4 {
		t.Errorf("Expected 4 reasons, got %v", c.Reasons)
	}
	if len(body.Drafts) != 1 || body.Drafts[0].Chars != 43 || body.Drafts[0].Mode != "template" {
		t.Errorf("Unexpected drafts: %+v", body.Drafts)
	}
}

func TestFeedXML(t *testing.T) {
	setupTestConfig()

	w := perform(t, &fakeService{last: testDigest()}, "", http.MethodGet, "/feed.xml", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/xml") {
		t.Errorf("Unexpected content type: %s", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected X-Feed-Items 1, got %s", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "<title>Kubernetes 1.30 &lt;released&gt;</title>") {
		t.Errorf("Expected escaped item title, got %s", w.Body.String())
	}
}

func TestReportHTML(t *testing.T) {
	w := perform(t, &fakeService{last: testDigest()}, "", http.MethodGet, "/report", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Unexpected content type: %s", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "Drafts for 2024-05-01") {
		t.Error("Expected report heading")
	}
}

func TestAPIRunDisabledWithoutKey(t *testing.T) {
	w := perform(t, &fakeService{}, "", http.MethodPost, "/api/run", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", w.Code)
	}
}

func TestAPIRunAuth(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "secret"}, http.StatusAccepted},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{runs: make(chan bool, 1)}
			w := perform(t, service, "secret", http.MethodPost, "/api/run", tt.headers)
			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAPIRunStartsDigest(t *testing.T) {
	service := &fakeService{runs: make(chan bool, 1)}

	w := perform(t, service, "secret", http.MethodPost, "/api/run?refresh=true", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}

	select {
	case refresh := <-service.runs:
		if !refresh {
			t.Error("Expected refresh to be forwarded")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected digest run to start")
	}
}

func TestAPIRunConflict(t *testing.T) {
	service := &fakeService{running: true, runs: make(chan bool, 1)}

	w := perform(t, service, "secret", http.MethodPost, "/api/run", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
}
