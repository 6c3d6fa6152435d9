package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/tree"
)

// State is where a pager run stands. Every state after StateRunning is terminal.
type State int

const (
	StateBootstrapping State = iota
	StateRunning
	StateLimitReached
	StateCancelled
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateRunning:
		return "running"
	case StateLimitReached:
		return "limit_reached"
	case StateCancelled:
		return "cancelled"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ServerError is an error message embedded by the server in a response body.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "error returned from server: " + e.Message
}

// Targets whose continuation items advance the top-level comment list.
var sectionTargets = map[string]bool{
	"comments-section":                         true,
	"engagement-panel-comments-section":        true,
	"shorts-engagement-panel-comments-section": true,
}

const repliesTargetPrefix = "comment-replies-item"

// PagerOptions bounds one pager run.
type PagerOptions struct {
	VideoID   string
	Limit     int           // 0 means no limit
	PageDelay time.Duration // pause between pages; 0 disables it
	Stop      *atomic.Bool  // cooperative stop flag, polled once per page; may be nil
}

// Pager walks a continuation chain one request at a time.
// Continuations discovered on a page are pushed onto a single LIFO queue, so reply
// threads are expanded before the next top-level page is requested.
type Pager struct {
	f     Fetcher
	opts  PagerOptions
	queue pendingQueue
	state State
}

// NewPager returns a pager dispatching through f.
func NewPager(f Fetcher, opts PagerOptions) *Pager {
	return &Pager{f: f, opts: opts, state: StateBootstrapping}
}

// State returns the current state.
func (p *Pager) State() State { return p.state }

func (p *Pager) stopped(ctx context.Context) bool {
	return (p.opts.Stop != nil && p.opts.Stop.Load()) || ctx.Err() != nil
}

func (p *Pager) limitMet(acc *Accumulator) bool {
	return p.opts.Limit > 0 && acc.Len() >= p.opts.Limit
}

// Run pages from initial until a terminal state and appends comments to acc.
// Only StateFailed comes with an error; comments already in acc are kept either way.
func (p *Pager) Run(ctx context.Context, initial Continuation, acc *Accumulator) (State, error) {
	if !initial.Valid() {
		p.state = StateFailed
		return p.state, ErrBadContinuation
	}
	p.queue.push(initial)
	p.state = StateRunning

	for {
		if p.stopped(ctx) {
			return p.finish(StateCancelled, acc), nil
		}
		if p.limitMet(acc) {
			return p.finish(StateLimitReached, acc), nil
		}
		cont, ok := p.queue.pop()
		if !ok {
			return p.finish(StateExhausted, acc), nil
		}

		res, err := p.f.Fetch(ctx, cont)
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(StateCancelled, acc), nil
			}
			p.state = StateFailed
			return p.state, fmt.Errorf("fetch continuation: %w", err)
		}
		if res.Empty() {
			return p.finish(StateExhausted, acc), nil
		}
		engine.IncrCommentPages()

		if msg, ok := serverError(res.Data); ok {
			p.state = StateFailed
			return p.state, &ServerError{Message: msg}
		}

		p.queue.push(discoverContinuations(res.Data)...)

		comments, err := ParseComments(p.opts.VideoID, res.Data)
		if err != nil {
			p.state = StateFailed
			return p.state, err
		}
		if p.collect(comments, acc) {
			return p.finish(StateLimitReached, acc), nil
		}

		if p.stopped(ctx) {
			return p.finish(StateCancelled, acc), nil
		}
		if p.opts.PageDelay > 0 {
			select {
			case <-time.After(p.opts.PageDelay):
			case <-ctx.Done():
				return p.finish(StateCancelled, acc), nil
			}
		}
	}
}

// collect moves a parsed page into acc and reports whether the limit is now met.
// Under a limit, comments are taken from the end of the batch.
func (p *Pager) collect(batch []Comment, acc *Accumulator) bool {
	if p.opts.Limit <= 0 {
		acc.Append(batch...)
		engine.AddCommentsFetched(len(batch))
		return false
	}
	n := 0
	for i := len(batch) - 1; i >= 0 && acc.Len() < p.opts.Limit; i-- {
		acc.Append(batch[i])
		n++
	}
	engine.AddCommentsFetched(n)
	return acc.Len() >= p.opts.Limit
}

func (p *Pager) finish(s State, acc *Accumulator) State {
	p.state = s
	slog.Debug("pager: finished",
		slog.String("video", p.opts.VideoID),
		slog.String("state", s.String()),
		slog.Int("comments", acc.Len()),
		slog.Int("pending", p.queue.len()))
	return s
}

func serverError(data map[string]any) (string, bool) {
	v, ok := tree.First(data, "externalErrorMessage")
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, x != ""
	case map[string]any:
		if len(x) == 0 {
			return "", false
		}
		if msg := tree.Str(x["simpleText"]); msg != "" {
			return msg, true
		}
		var parts []string
		for _, r := range tree.Slice(x["runs"]) {
			parts = append(parts, tree.Str(tree.Map(r)["text"]))
		}
		if len(parts) > 0 {
			return strings.Join(parts, ""), true
		}
		return "unrecognized error payload", true
	}
	return "", false
}

// discoverContinuations returns, in discovery order, the page-advance continuations
// of comment-section actions and the reply-expansion commands of placeholder items.
func discoverContinuations(data map[string]any) []Continuation {
	actions := tree.All(data, "reloadContinuationItemsCommand")
	actions = append(actions, tree.All(data, "appendContinuationItemsAction")...)

	var out []Continuation
	for _, a := range actions {
		action := tree.Map(a)
		if action == nil {
			continue
		}
		target := tree.Str(action["targetId"])
		for _, item := range tree.Slice(action["continuationItems"]) {
			if sectionTargets[target] {
				for ep := range tree.Search(item, "continuationEndpoint") {
					if c := Continuation(tree.Map(ep)); c.Valid() {
						out = append(out, c)
					}
				}
			}
			if strings.HasPrefix(target, repliesTargetPrefix) {
				if _, ok := tree.Map(item)["continuationItemRenderer"]; !ok {
					continue
				}
				btn := tree.FirstMap(item, "buttonRenderer")
				if c := Continuation(tree.Map(btn["command"])); c.Valid() {
					out = append(out, c)
				}
			}
		}
	}
	return out
}
