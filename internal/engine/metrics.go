package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	InnertubeRequests atomic.Int64
	InnertubeRetries  atomic.Int64
	InnertubeEmpty    atomic.Int64
	PageFetches       atomic.Int64
	CommentPages      atomic.Int64
	CommentsFetched   atomic.Int64
	PlayerRequests    atomic.Int64
	CaptionDownloads  atomic.Int64
	CaptionErrors     atomic.Int64
	CrawlRuns         atomic.Int64
	CrawlFailures     atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"innertube_requests": metrics.InnertubeRequests.Load(),
		"innertube_retries":  metrics.InnertubeRetries.Load(),
		"innertube_empty":    metrics.InnertubeEmpty.Load(),
		"page_fetches":       metrics.PageFetches.Load(),
		"comment_pages":      metrics.CommentPages.Load(),
		"comments_fetched":   metrics.CommentsFetched.Load(),
		"player_requests":    metrics.PlayerRequests.Load(),
		"caption_downloads":  metrics.CaptionDownloads.Load(),
		"caption_errors":     metrics.CaptionErrors.Load(),
		"crawl_runs":         metrics.CrawlRuns.Load(),
		"crawl_failures":     metrics.CrawlFailures.Load(),
		"cache_hits":         hits,
		"cache_misses":       misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"innertube_requests", "innertube_retries", "innertube_empty",
		"page_fetches", "comment_pages", "comments_fetched",
		"player_requests", "caption_downloads", "caption_errors",
		"crawl_runs", "crawl_failures",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for youtube/ sub-package.
func IncrInnertubeRequests()        { metrics.InnertubeRequests.Add(1) }
func IncrInnertubeRetries()         { metrics.InnertubeRetries.Add(1) }
func IncrInnertubeEmpty()           { metrics.InnertubeEmpty.Add(1) }
func IncrPageFetches()              { metrics.PageFetches.Add(1) }
func IncrCommentPages()             { metrics.CommentPages.Add(1) }
func AddCommentsFetched(n int)      { metrics.CommentsFetched.Add(int64(n)) }
func IncrPlayerRequests()           { metrics.PlayerRequests.Add(1) }
func IncrCaptionDownloads()         { metrics.CaptionDownloads.Add(1) }
func IncrCaptionErrors()            { metrics.CaptionErrors.Add(1) }

// Incrementors for crawl/ sub-package.
func IncrCrawlRuns()     { metrics.CrawlRuns.Add(1) }
func IncrCrawlFailures() { metrics.CrawlFailures.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
