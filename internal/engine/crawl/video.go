package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
)

// Status of one video in a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
)

// DetailsSummary is the part of the video details shown in progress reports.
type DetailsSummary struct {
	VideoID       string `json:"videoId"`
	Title         string `json:"title"`
	LengthSeconds string `json:"lengthSeconds"`
	ChannelID     string `json:"channelId"`
	ViewCount     string `json:"viewCount"`
	Author        string `json:"author"`
}

// VideoStatus is the progress of one video.
type VideoStatus struct {
	VideoID       string          `json:"video_id"`
	Status        Status          `json:"status"`
	Details       *DetailsSummary `json:"details,omitempty"`
	CaptionTracks int             `json:"caption_tracks"`
	Captions      int             `json:"captions"`
	Comments      int             `json:"comments"`
	CommentState  string          `json:"comment_state,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

type video struct {
	id  string
	acc *youtube.Accumulator

	mu           sync.Mutex
	st           VideoStatus
	commentsDone bool
}

func newVideo(id string) *video {
	return &video{
		id:  id,
		acc: &youtube.Accumulator{},
		st:  VideoStatus{VideoID: id, Status: StatusRunning, StartedAt: time.Now()},
	}
}

func (v *video) status() VideoStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.st
	st.Errors = append([]string(nil), v.st.Errors...)
	if !v.commentsDone {
		st.Comments = v.acc.Len()
	}
	return st
}

func (v *video) update(fn func(st *VideoStatus)) {
	v.mu.Lock()
	fn(&v.st)
	v.mu.Unlock()
}

func (c *Crawler) crawlVideo(ctx context.Context, v *video, stop *atomic.Bool, opts Options) {
	var (
		wg           sync.WaitGroup
		detailsErr   error
		commentsErr  error
		commentState youtube.State
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		detailsErr = c.crawlDetails(ctx, v, opts)
	}()
	go func() {
		defer wg.Done()
		commentState, commentsErr = c.crawlComments(ctx, v, stop, opts)
	}()
	wg.Wait()

	err := errors.Join(detailsErr, commentsErr)
	status := StatusDone
	switch {
	case err != nil && ctx.Err() == nil:
		status = StatusFailed
		engine.IncrCrawlFailures()
		slog.Warn("crawl: video failed", slog.String("video", v.id), slog.Any("error", err))
	case commentState == youtube.StateCancelled || ctx.Err() != nil:
		status = StatusStopped
	}

	finished := time.Now()
	v.update(func(st *VideoStatus) {
		st.Status = status
		st.FinishedAt = &finished
		for _, e := range []error{detailsErr, commentsErr} {
			if e != nil {
				st.Errors = append(st.Errors, engine.TruncateRunes(e.Error(), 300, "..."))
			}
		}
	})
}

func (c *Crawler) crawlDetails(ctx context.Context, v *video, opts Options) error {
	info, err := c.src.Player(ctx, v.id)
	if err != nil {
		return fmt.Errorf("details: %w", err)
	}
	d := info.Details
	v.update(func(st *VideoStatus) {
		st.Details = &DetailsSummary{
			VideoID:       d.VideoID,
			Title:         d.Title,
			LengthSeconds: d.LengthSeconds,
			ChannelID:     d.ChannelID,
			ViewCount:     d.ViewCount,
			Author:        d.Author,
		}
		st.CaptionTracks = len(info.Captions)
	})

	var errs []error
	if c.sink != nil {
		if d.VideoID == "" {
			d.VideoID = v.id
		}
		if err := c.sink.SaveVideo(context.WithoutCancel(ctx), d); err != nil {
			errs = append(errs, err)
		}
	}
	if opts.SkipCaptions || len(info.Captions) == 0 {
		return errors.Join(errs...)
	}

	caps := c.src.DownloadCaptions(ctx, info.Captions)
	saved := 0
	for _, cp := range caps {
		if c.sink != nil {
			if err := c.sink.SaveCaption(context.WithoutCancel(ctx), v.id, cp); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		saved++
	}
	v.update(func(st *VideoStatus) { st.Captions = saved })
	return errors.Join(errs...)
}

func (c *Crawler) crawlComments(ctx context.Context, v *video, stop *atomic.Bool, opts Options) (youtube.State, error) {
	if opts.SkipComments {
		v.update(func(*VideoStatus) { v.commentsDone = true })
		return youtube.StateExhausted, nil
	}

	state, err := c.src.Comments(ctx, v.id, youtube.CommentOptions{
		Language:    opts.Language,
		NewestFirst: opts.NewestFirst,
		Limit:       opts.CommentLimit,
		PageDelay:   opts.PageDelay,
		Stop:        stop,
	}, v.acc)
	if err != nil {
		err = fmt.Errorf("comments: %w", err)
	}

	// Partial results are kept on failure and on stop.
	comments := v.acc.Snapshot()
	if c.sink != nil && len(comments) > 0 {
		if serr := c.sink.SaveComments(context.WithoutCancel(ctx), v.id, comments); serr != nil {
			err = errors.Join(err, serr)
		}
	}

	v.update(func(st *VideoStatus) {
		v.commentsDone = true
		st.Comments = len(comments)
		st.CommentState = state.String()
	})
	return state, err
}
