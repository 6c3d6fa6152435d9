package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// CommentOptions configures a comment crawl.
type CommentOptions struct {
	Language    string        // interface language (hl), e.g. "en"; empty keeps the page default
	NewestFirst bool          // sort order: newest first instead of top comments
	Limit       int           // stop after this many comments; 0 for all
	PageDelay   time.Duration // pause between pages; 0 uses DefaultPageDelay, negative disables it
	Stop        *atomic.Bool  // cooperative stop flag; may be nil
}

// Comments crawls the comments of videoID into acc.
//
// Bootstrap problems (watch page, config blobs, sort menu) and server-reported
// errors are returned as errors with StateFailed. Cancellation, the limit and the
// end of data all return a nil error; acc holds whatever was collected.
func (c *Client) Comments(ctx context.Context, videoID string, opts CommentOptions, acc *Accumulator) (State, error) {
	if (opts.Stop != nil && opts.Stop.Load()) || ctx.Err() != nil {
		return StateCancelled, nil
	}

	start := time.Now()
	s, err := c.NewSession(ctx, videoID)
	if err != nil {
		if ctx.Err() != nil {
			return StateCancelled, nil
		}
		return StateFailed, err
	}
	s.SetLanguage(opts.Language)

	req := c.Requester(s)
	menu, err := ResolveSortMenu(ctx, s, req)
	if err != nil {
		if ctx.Err() != nil {
			return StateCancelled, nil
		}
		return StateFailed, fmt.Errorf("%s: %w", videoID, err)
	}
	initial, err := InitialContinuation(menu, opts.NewestFirst)
	if err != nil {
		return StateFailed, fmt.Errorf("%s: %w", videoID, err)
	}

	delay := opts.PageDelay
	switch {
	case delay == 0:
		delay = DefaultPageDelay
	case delay < 0:
		delay = 0
	}
	pager := NewPager(req, PagerOptions{
		VideoID:   videoID,
		Limit:     opts.Limit,
		PageDelay: delay,
		Stop:      opts.Stop,
	})
	state, err := pager.Run(ctx, initial, acc)

	slog.Info("youtube: comments crawled",
		slog.String("video", videoID),
		slog.String("state", state.String()),
		slog.Int("comments", acc.Len()),
		slog.Duration("elapsed", time.Since(start)))
	return state, err
}
