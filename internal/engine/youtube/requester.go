package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
)

// ErrBadContinuation is returned when a continuation lacks its API path or token.
var ErrBadContinuation = errors.New("continuation has no api path or token")

// Fetcher dispatches one continuation. Requester is the network implementation;
// tests substitute scripted ones.
type Fetcher interface {
	Fetch(ctx context.Context, cont Continuation) (Result, error)
}

// Requester posts continuations for one session.
type Requester struct {
	c *Client
	s *Session
}

// Requester binds the client to a session's API key and context.
func (c *Client) Requester(s *Session) *Requester {
	return &Requester{c: c, s: s}
}

type continuationBody struct {
	Context      map[string]any `json:"context"`
	Continuation string         `json:"continuation"`
}

// Fetch posts cont and returns the decoded response.
//
// Transport failures, undecodable bodies and unexpected statuses are retried with a
// fixed delay. 403 and 413 end the request at once with an empty result. When every
// attempt fails the result is empty as well; only context cancellation is an error.
func (r *Requester) Fetch(ctx context.Context, cont Continuation) (Result, error) {
	if !cont.Valid() {
		return Result{}, ErrBadContinuation
	}

	target := r.c.baseURL + cont.APIURL()
	if r.s.APIKey != "" {
		target += "?key=" + url.QueryEscape(r.s.APIKey)
	}
	payload, err := json.Marshal(continuationBody{Context: r.s.Context, Continuation: cont.Token()})
	if err != nil {
		return Result{}, fmt.Errorf("encode continuation: %w", err)
	}

	attempt := 0
	res, err := engine.RetryDo(ctx, r.c.retry, func() (Result, error) {
		attempt++
		if attempt > 1 {
			engine.IncrInnertubeRetries()
		}
		if err := r.c.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		return r.attempt(ctx, target, payload)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		engine.IncrInnertubeEmpty()
		slog.Warn("innertube: giving up on continuation",
			slog.String("video", r.s.VideoID),
			slog.Int("attempts", attempt),
			slog.Any("error", err))
		return Result{}, nil
	}
	return res, nil
}

func (r *Requester) attempt(ctx context.Context, target string, payload []byte) (Result, error) {
	engine.IncrInnertubeRequests()

	actx, cancel := context.WithTimeout(ctx, r.c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", engine.UserAgentChrome)

	resp, err := r.c.http.Do(req)
	if err != nil {
		return Result{}, engine.Retryable(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusRequestEntityTooLarge:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		engine.IncrInnertubeEmpty()
		slog.Warn("innertube: continuation rejected",
			slog.String("video", r.s.VideoID),
			slog.Int("status", resp.StatusCode))
		return Result{}, nil
	default:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return Result{}, &engine.HTTPStatusError{StatusCode: resp.StatusCode}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Result{}, engine.Retryable(fmt.Errorf("decode response: %w", err))
	}
	return Result{Kind: ResultData, Data: data}, nil
}
