package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/insightpress/app/digest"
	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/report"
)

// NewHandler builds the HTTP handlers. Manual runs started through the API
// inherit ctx, so cancelling it stops them.
func NewHandler(ctx context.Context, service DigestService) *Handler {
	return &Handler{
		ctx:       ctx,
		service:   service,
		generator: feed.NewGenerator(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"running":   h.service.Running(),
	}

	if last := h.service.Last(); last != nil {
		health["last_run"] = last.Report.GeneratedAt.Format(time.RFC3339)
		health["candidates"] = len(last.Result.Candidates)
		health["drafts"] = len(last.Report.Drafts)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetCandidates(c *gin.Context) {
	last := h.service.Last()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No digest available yet"})
		return
	}

	now := last.Report.GeneratedAt

	response := candidatesResponse{
		GeneratedAt: now,
		FromCache:   last.FromCache,
		Stats:       last.Result.Stats,
		Drafts:      make([]draftResponse, 0, len(last.Report.Drafts)),
		Candidates:  make([]candidateResponse, 0, len(last.Result.Candidates)),
	}

	for _, d := range last.Report.Drafts {
		response.Drafts = append(response.Drafts, draftResponse{
			URL:      d.Item.URL,
			Content:  d.Content,
			Chars:    d.CharCount(),
			Hashtags: d.Hashtags,
			Mode:     d.Mode,
		})
	}

	for i, item := range last.Result.Candidates {
		response.Candidates = append(response.Candidates, candidateResponse{
			Rank:        i + 1,
			Title:       item.Title,
			URL:         item.URL,
			Source:      item.SourceName,
			Score:       item.Score,
			PublishedAt: item.PublishedAt,
			Engagement:  item.Engagement,
			Topics:      item.TopicsMatched,
			Breakdown: breakdownResponse{
				Recency:    item.Breakdown.Recency,
				Topic:      item.Breakdown.Topic,
				Source:     item.Breakdown.Source,
				Engagement: item.Breakdown.Engagement,
			},
			Reasons: report.Reasons(item, now),
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetFeed(c *gin.Context) {
	last := h.service.Last()
	if last == nil {
		c.Status(http.StatusNotFound)
		return
	}

	rss, err := h.generator.Run(last.Result.Candidates, last.Report.GeneratedAt)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(last.Result.Candidates)))
	c.Header("X-Last-Updated", last.Report.GeneratedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetReport(c *gin.Context) {
	last := h.service.Last()
	if last == nil {
		c.String(http.StatusNotFound, "No digest available yet")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", last.Report.HTML())
}

// APIRun starts a digest in the background. Pass refresh=true to ignore
// today's fetch cache.
func (h *Handler) APIRun(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	if h.service.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "Digest run already in progress"})
		return
	}

	go func() {
		if _, err := h.service.Run(h.ctx, refresh); err != nil {
			if errors.Is(err, digest.ErrRunInProgress) {
				slog.Warn("Manual digest skipped, another run is active")
				return
			}
			slog.Error("Manual digest failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Digest run started",
		"refresh": refresh,
	})
}
