package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	HTTPClient   *http.Client
	FetchTimeout time.Duration

	// Comment crawl defaults; tool inputs override them per call.
	CommentLimit int
	PageDelay    time.Duration
	Language     string
	NewestFirst  bool

	// Innertube continuation requests.
	RequestRetries    int
	RequestRetryDelay time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64 // 0 = unlimited

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	StorePath   string // sqlite file; ignored when DatabaseURL is set
	DatabaseURL string
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (youtube, crawl).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
