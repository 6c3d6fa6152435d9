// Package crawl runs batch crawls: for every requested video it fetches details,
// caption tracks and comments, persists them, and keeps a progress table that can
// be polled while the run is going.
package crawl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
)

var (
	ErrBusy     = errors.New("a crawl is already running")
	ErrNoVideos = errors.New("no valid video urls")
)

// Source is what a crawl needs from YouTube. *youtube.Client implements it.
type Source interface {
	Comments(ctx context.Context, videoID string, opts youtube.CommentOptions, acc *youtube.Accumulator) (youtube.State, error)
	Player(ctx context.Context, videoID string) (*youtube.PlayerInfo, error)
	DownloadCaptions(ctx context.Context, tracks []youtube.CaptionTrack) []youtube.Caption
}

// Sink receives crawl output. A nil Sink discards it.
type Sink interface {
	SaveVideo(ctx context.Context, v youtube.VideoDetails) error
	SaveCaption(ctx context.Context, videoID string, c youtube.Caption) error
	SaveComments(ctx context.Context, videoID string, cs []youtube.Comment) error
}

// Options configures one run.
type Options struct {
	CommentLimit int
	Language     string
	NewestFirst  bool
	PageDelay    time.Duration
	SkipCaptions bool
	SkipComments bool
}

// Crawler runs one batch at a time.
type Crawler struct {
	src  Source
	sink Sink

	mu     sync.Mutex
	runID  string
	active bool
	stop   *atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
	videos map[string]*video
	order  []string
}

// New returns an idle crawler.
func New(src Source, sink Sink) *Crawler {
	done := make(chan struct{})
	close(done)
	return &Crawler{src: src, sink: sink, done: done, videos: map[string]*video{}}
}

// Start begins crawling urls in the background and returns the run id.
// Entries that are not YouTube video urls or ids are skipped; duplicates are crawled once.
// Progress from the previous run is discarded.
func (c *Crawler) Start(urls []string, opts Options) (string, error) {
	ids := videoIDs(urls)
	if len(ids) == 0 {
		return "", ErrNoVideos
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return "", ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.runID = uuid.NewString()
	c.active = true
	c.stop = &atomic.Bool{}
	c.cancel = cancel
	c.done = make(chan struct{})
	c.videos = make(map[string]*video, len(ids))
	c.order = ids
	for _, id := range ids {
		c.videos[id] = newVideo(id)
	}

	engine.IncrCrawlRuns()
	slog.Info("crawl: started", slog.String("run", c.runID), slog.Int("videos", len(ids)))
	go c.run(ctx, c.runID, c.stop, c.done, opts)
	return c.runID, nil
}

func (c *Crawler) run(ctx context.Context, runID string, stop *atomic.Bool, done chan struct{}, opts Options) {
	start := time.Now()
	defer close(done)

	c.mu.Lock()
	vids := make([]*video, 0, len(c.order))
	for _, id := range c.order {
		vids = append(vids, c.videos[id])
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, v := range vids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.crawlVideo(ctx, v, stop, opts)
		}()
	}
	wg.Wait()

	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	slog.Info("crawl: finished", slog.String("run", runID), slog.Duration("elapsed", time.Since(start)))
}

// Stop asks the running crawl to finish. Pagers notice the flag before their next
// page; requests already in flight complete. Returns false when nothing is running.
func (c *Crawler) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	c.stop.Store(true)
	slog.Info("crawl: stop requested", slog.String("run", c.runID))
	return true
}

// Wait blocks until the current run finishes or ctx is done.
func (c *Crawler) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the current run, aborting in-flight requests, and waits for it.
func (c *Crawler) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.stop.Store(true)
		c.cancel()
	}
	c.mu.Unlock()
	return c.Wait(ctx)
}

// Snapshot is the progress of the current or last run.
type Snapshot struct {
	RunID  string        `json:"run_id,omitempty"`
	Active bool          `json:"active"`
	Videos []VideoStatus `json:"videos"`
}

// Status reports progress. Comment counts of videos still crawling are live.
func (c *Crawler) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{RunID: c.runID, Active: c.active, Videos: make([]VideoStatus, 0, len(c.order))}
	for _, id := range c.order {
		snap.Videos = append(snap.Videos, c.videos[id].status())
	}
	return snap
}

func videoIDs(urls []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range urls {
		id := engine.ExtractVideoID(u)
		if id == "" {
			slog.Warn("crawl: skipping unrecognized url", slog.String("url", u))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
