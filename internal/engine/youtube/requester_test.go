package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingTransport fails every round trip and records when each attempt happened.
type failingTransport struct {
	mu    sync.Mutex
	times []time.Time
}

func (ft *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	ft.mu.Lock()
	ft.times = append(ft.times, time.Now())
	ft.mu.Unlock()
	return nil, errors.New("connection reset by peer")
}

func testSession() *Session {
	return &Session{
		VideoID: "vid",
		APIKey:  "AIzaTest",
		Context: map[string]any{"client": map[string]any{"clientName": "WEB", "hl": "en"}},
	}
}

func TestRequesterRetryExhaustion(t *testing.T) {
	ft := &failingTransport{}
	delay := 30 * time.Millisecond
	c := NewClient(
		WithBaseURL("http://innertube.invalid"),
		WithHTTPClient(&http.Client{Transport: ft}),
		WithRetry(DefaultRequestRetries, delay),
	)

	start := time.Now()
	res, err := c.Requester(testSession()).Fetch(context.Background(), cont(t, "tok"))
	require.NoError(t, err)
	assert.True(t, res.Empty())

	require.Len(t, ft.times, 5)
	for i := 1; i < len(ft.times); i++ {
		assert.GreaterOrEqual(t, ft.times[i].Sub(ft.times[i-1]), delay, "gap before attempt %d", i+1)
	}
	assert.GreaterOrEqual(t, time.Since(start), 4*delay)
}

func TestRequesterTerminalStatus(t *testing.T) {
	for _, code := range []int{http.StatusForbidden, http.StatusRequestEntityTooLarge} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(code)
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL), WithRetry(5, time.Hour))
			res, err := c.Requester(testSession()).Fetch(context.Background(), cont(t, "tok"))
			require.NoError(t, err)
			assert.True(t, res.Empty())
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRequesterRetriesOtherStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusNotFound)
		case 3:
			w.Write([]byte(`{"truncated":`)) //nolint:errcheck
		default:
			w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(5, time.Millisecond))
	res, err := c.Requester(testSession()).Fetch(context.Background(), cont(t, "tok"))
	require.NoError(t, err)
	assert.Equal(t, ResultData, res.Kind)
	assert.Equal(t, true, res.Data["ok"])
	assert.Equal(t, int32(4), calls.Load())
}

func TestRequesterRequestShape(t *testing.T) {
	var got struct {
		Context      map[string]any `json:"context"`
		Continuation string         `json:"continuation"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/youtubei/v1/next", r.URL.Path)
		assert.Equal(t, "AIzaTest", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"a":1}`)) //nolint:errcheck
	}))
	defer srv.Close()

	s := testSession()
	s.SetLanguage("de")
	c := NewClient(WithBaseURL(srv.URL))
	res, err := c.Requester(s).Fetch(context.Background(), cont(t, "tok-123"))
	require.NoError(t, err)
	assert.False(t, res.Empty())

	assert.Equal(t, "tok-123", got.Continuation)
	assert.Equal(t, "de", got.Context["client"].(map[string]any)["hl"])
}

func TestRequesterBadContinuation(t *testing.T) {
	c := NewClient()
	_, err := c.Requester(testSession()).Fetch(context.Background(), Continuation{"continuationCommand": map[string]any{"token": "x"}})
	assert.ErrorIs(t, err, ErrBadContinuation)
}

func TestRequesterContextCancelled(t *testing.T) {
	ft := &failingTransport{}
	c := NewClient(WithHTTPClient(&http.Client{Transport: ft}), WithRetry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Requester(testSession()).Fetch(ctx, cont(t, "tok"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, ft.times, 1)
}

func TestRequesterPerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`{"late":false}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(2, time.Millisecond), WithRequestTimeout(50*time.Millisecond))
	res, err := c.Requester(testSession()).Fetch(context.Background(), cont(t, "tok"))
	require.NoError(t, err)
	assert.Equal(t, ResultData, res.Kind)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitOption(t *testing.T) {
	c := NewClient(WithRateLimit(0))
	assert.NoError(t, c.limiter.Wait(context.Background()))

	c = NewClient(WithRateLimit(0.5))
	assert.Equal(t, 1, c.limiter.Burst())
}
