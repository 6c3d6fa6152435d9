// go_ytcrawl: YouTube comment, caption and video details crawler MCP server.
//
// Exposes tools for one-off lookups (youtube_comments, youtube_video,
// youtube_captions) and for background batch crawls persisted to SQLite or
// Postgres (crawl_start, crawl_status, crawl_stop, crawl_comments).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytcrawl/internal/crawlserver"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/crawl"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
	"github.com/anatolykoptev/go_ytcrawl/internal/store"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	initEngine()

	slog.Info("starting go_ytcrawl",
		slog.String("port", mcpPort),
	)

	yt := newClient()

	st, err := store.Open(context.Background(), engine.Cfg.DatabaseURL, engine.Cfg.StorePath)
	if err != nil {
		slog.Warn("store init failed, crawl results will not be persisted", slog.Any("error", err))
	} else {
		defer st.Close()
		slog.Info("store initialized", slog.Bool("postgres", engine.Cfg.DatabaseURL != ""))
	}

	var sink crawl.Sink
	if st != nil {
		sink = st
	}
	crawler := crawl.New(yt, sink)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := crawler.Close(ctx); err != nil {
			slog.Warn("crawler shutdown", slog.Any("error", err))
		}
	}()

	if urls := env.List("CRAWL_URLS", ""); len(urls) > 0 {
		runID, err := crawler.Start(urls, crawl.Options{
			CommentLimit: engine.Cfg.CommentLimit,
			Language:     engine.Cfg.Language,
			NewestFirst:  engine.Cfg.NewestFirst,
			PageDelay:    engine.Cfg.PageDelay,
		})
		if err != nil {
			slog.Warn("startup crawl not started", slog.Any("error", err))
		} else {
			slog.Info("startup crawl started", slog.String("run", runID), slog.Int("urls", len(urls)))
		}
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_ytcrawl",
		Version: version,
	}, nil)

	n := crawlserver.RegisterTools(server, crawlserver.Deps{Client: yt, Crawler: crawler, Store: st})
	slog.Info("tools registered", slog.Int("count", n))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_ytcrawl",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.Config{
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 90*time.Second),
		CommentLimit:         env.Int("CRAWL_COMMENT_LIMIT", 1000),
		PageDelay:            env.Duration("CRAWL_PAGE_DELAY", youtube.DefaultPageDelay),
		Language:             env.Str("CRAWL_LANGUAGE", ""),
		NewestFirst:          envBool("CRAWL_NEWEST_FIRST", false),
		RequestRetries:       env.Int("INNERTUBE_RETRIES", youtube.DefaultRequestRetries),
		RequestRetryDelay:    env.Duration("INNERTUBE_RETRY_DELAY", youtube.DefaultRequestRetryDelay),
		RequestTimeout:       env.Duration("INNERTUBE_TIMEOUT", youtube.DefaultRequestTimeout),
		RequestsPerSecond:    env.Float("INNERTUBE_RPS", 0),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		StorePath:            env.Str("STORE_PATH", "data/ytcrawl.db"),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
	}
	c.HTTPClient = &http.Client{
		Timeout: c.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

func newClient() *youtube.Client {
	c := engine.Cfg
	return youtube.NewClient(
		youtube.WithHTTPClient(c.HTTPClient),
		youtube.WithRetry(c.RequestRetries, c.RequestRetryDelay),
		youtube.WithRequestTimeout(c.RequestTimeout),
		youtube.WithRateLimit(c.RequestsPerSecond),
	)
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
