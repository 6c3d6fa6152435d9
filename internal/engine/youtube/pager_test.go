package youtube

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagerSingleHeartedComment(t *testing.T) {
	f := &scriptFetcher{pages: map[string]map[string]any{
		"start": pageData(t, nil, nil,
			entityJSON(entity{id: "c1", text: "hi", votes: "", stateKey: "s1"}),
			stateJSON("s1", "TOOLBAR_HEART_STATE_HEARTED"),
		),
	}}
	var acc Accumulator

	p := NewPager(f, PagerOptions{VideoID: "vid"})
	state, err := p.Run(context.Background(), cont(t, "start"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, state)
	assert.Equal(t, StateExhausted, p.State())

	got := acc.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].CID)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "0", got[0].Votes)
	assert.True(t, got[0].Heart)
	assert.False(t, got[0].Reply)
	assert.Equal(t, []string{"start"}, f.calls)
}

func TestPagerRepliesBeforeNextPage(t *testing.T) {
	f := &scriptFetcher{pages: map[string]map[string]any{
		"p1":      pageData(t, []string{"p2"}, []string{"replies"}, entityJSON(entity{id: "a"})),
		"replies": pageData(t, nil, nil, entityJSON(entity{id: "a.1"})),
		"p2":      pageData(t, nil, nil, entityJSON(entity{id: "b"})),
	}}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, state)
	assert.Equal(t, []string{"p1", "replies", "p2"}, f.calls)
	assert.Equal(t, []string{"a", "a.1", "b"}, cids(acc.Snapshot()))
}

func TestPagerLimitIsExact(t *testing.T) {
	for _, perPage := range []int{1, 3, 7, 10, 25} {
		t.Run(fmt.Sprintf("m=%d", perPage), func(t *testing.T) {
			n := 0
			f := fetchFunc(func(_ context.Context, c Continuation) (Result, error) {
				n++
				muts := make([]string, perPage)
				for i := range muts {
					muts[i] = entityJSON(entity{id: fmt.Sprintf("p%d-%d", n, i)})
				}
				return Result{Kind: ResultData, Data: pageData(t, []string{fmt.Sprintf("p%d", n+1)}, nil, muts...)}, nil
			})
			var acc Accumulator

			state, err := NewPager(f, PagerOptions{Limit: 10}).Run(context.Background(), cont(t, "p0"), &acc)
			require.NoError(t, err)
			assert.Equal(t, StateLimitReached, state)
			assert.Equal(t, 10, acc.Len())
		})
	}
}

func TestPagerLimitTakesFromBatchEnd(t *testing.T) {
	f := &scriptFetcher{pages: map[string]map[string]any{
		"p1": pageData(t, []string{"p2"}, nil,
			entityJSON(entity{id: "a"}),
			entityJSON(entity{id: "b"}),
			entityJSON(entity{id: "c"}),
		),
	}}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{Limit: 2}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateLimitReached, state)
	assert.Equal(t, []string{"c", "b"}, cids(acc.Snapshot()))
	assert.Equal(t, []string{"p1"}, f.calls, "p2 must not be requested once the limit is met")
}

func TestPagerLimitAlreadyMet(t *testing.T) {
	f := &scriptFetcher{}
	var acc Accumulator
	acc.Append(Comment{CID: "old"})

	state, err := NewPager(f, PagerOptions{Limit: 1}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateLimitReached, state)
	assert.Empty(t, f.calls)
}

func TestPagerStoppedBeforeStart(t *testing.T) {
	f := &scriptFetcher{}
	var stop atomic.Bool
	stop.Store(true)
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{Stop: &stop}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, state)
	assert.Zero(t, acc.Len())
	assert.Empty(t, f.calls)
}

func TestPagerStopDuringFetch(t *testing.T) {
	var stop atomic.Bool
	f := &scriptFetcher{
		pages: map[string]map[string]any{
			"p1": pageData(t, []string{"p2"}, nil, entityJSON(entity{id: "a"})),
			"p2": pageData(t, nil, nil, entityJSON(entity{id: "b"})),
		},
		onFetch: func(string) { stop.Store(true) },
	}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{Stop: &stop, PageDelay: time.Hour}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, state)
	// The in-flight page is kept; the next one is never requested.
	assert.Equal(t, []string{"a"}, cids(acc.Snapshot()))
	assert.Equal(t, []string{"p1"}, f.calls)
}

func TestPagerContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &scriptFetcher{
		pages: map[string]map[string]any{
			"p1": pageData(t, []string{"p2"}, nil, entityJSON(entity{id: "a"})),
		},
	}
	var acc Accumulator
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	state, err := NewPager(f, PagerOptions{PageDelay: time.Minute}).Run(ctx, cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, state)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 1, acc.Len())
}

func TestPagerEmptyResultExhausts(t *testing.T) {
	f := &scriptFetcher{pages: map[string]map[string]any{
		"p1": pageData(t, []string{"gone"}, nil, entityJSON(entity{id: "a"})),
	}}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, state)
	assert.Equal(t, []string{"p1", "gone"}, f.calls)
	assert.Equal(t, 1, acc.Len())
}

func TestPagerServerErrorFails(t *testing.T) {
	errPage := pageData(t, nil, nil)
	errPage["onResponseReceivedEndpoints"] = []any{map[string]any{
		"showErrorAction": map[string]any{"externalErrorMessage": "Invalid continuation"},
	}}
	f := &scriptFetcher{pages: map[string]map[string]any{
		"p1":  pageData(t, []string{"bad"}, nil, entityJSON(entity{id: "a"})),
		"bad": errPage,
	}}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{}).Run(context.Background(), cont(t, "p1"), &acc)
	assert.Equal(t, StateFailed, state)
	var se *ServerError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "Invalid continuation", se.Message)
	assert.Equal(t, 1, acc.Len(), "earlier pages are kept")
}

func TestPagerEmptyErrorMessageIgnored(t *testing.T) {
	page := pageData(t, nil, nil, entityJSON(entity{id: "a"}))
	page["alerts"] = []any{map[string]any{"externalErrorMessage": ""}}
	f := &scriptFetcher{pages: map[string]map[string]any{"p1": page}}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{}).Run(context.Background(), cont(t, "p1"), &acc)
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, state)
}

func TestPagerMalformedEntityFails(t *testing.T) {
	page := pageData(t, nil, nil, `{"payload":{"commentEntityPayload":{"properties":{"commentId":"x"}}}}`)
	f := &scriptFetcher{pages: map[string]map[string]any{"p1": page}}
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{}).Run(context.Background(), cont(t, "p1"), &acc)
	assert.Equal(t, StateFailed, state)
	var me *MalformedEntityError
	assert.True(t, errors.As(err, &me))
}

func TestPagerFetchErrorFails(t *testing.T) {
	boom := errors.New("boom")
	f := fetchFunc(func(context.Context, Continuation) (Result, error) { return Result{}, boom })
	var acc Accumulator

	state, err := NewPager(f, PagerOptions{}).Run(context.Background(), cont(t, "p1"), &acc)
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, boom)
}

func TestPagerInvalidInitial(t *testing.T) {
	var acc Accumulator
	state, err := NewPager(&scriptFetcher{}, PagerOptions{}).Run(context.Background(), Continuation{}, &acc)
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, ErrBadContinuation)
}

func TestDiscoverContinuationsSkipsInvalid(t *testing.T) {
	data := pageData(t, []string{"ok"}, nil)
	actions := data["onResponseReceivedEndpoints"].([]any)
	actions = append(actions, map[string]any{
		"appendContinuationItemsAction": map[string]any{
			"targetId": "engagement-panel-comments-section",
			"continuationItems": []any{map[string]any{
				"continuationItemRenderer": map[string]any{
					"continuationEndpoint": map[string]any{"continuationCommand": map[string]any{}},
				},
			}},
		},
	})
	data["onResponseReceivedEndpoints"] = actions

	got := discoverContinuations(data)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Token())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "limit_reached", StateLimitReached.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "State(42)", State(42).String())
}
