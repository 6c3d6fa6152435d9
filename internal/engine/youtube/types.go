package youtube

import (
	"sync"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/tree"
)

// Comment is one flattened comment or reply.
type Comment struct {
	CID     string `json:"cid"`
	VID     string `json:"vid"`
	Text    string `json:"text"`
	Time    string `json:"time"`
	Author  string `json:"author"`
	Channel string `json:"channel"`
	Votes   string `json:"votes"`
	Replies string `json:"replies"`
	Photo   string `json:"photo"`
	Heart   bool   `json:"heart"`
	Reply   bool   `json:"reply"`
}

// Continuation is an opaque server-issued endpoint object. Only the API path and
// the continuation token inside it are ever read.
type Continuation map[string]any

// APIURL returns the endpoint path the continuation must be posted to.
func (c Continuation) APIURL() string {
	if v := tree.Path(map[string]any(c), "commandMetadata", "webCommandMetadata", "apiUrl"); v != nil {
		return tree.Str(v)
	}
	// Reply buttons sometimes nest the endpoint one level deeper.
	v, _ := tree.First(map[string]any(c), "apiUrl")
	return tree.Str(v)
}

// Token returns the continuation string sent in the request body.
func (c Continuation) Token() string {
	cmd := tree.FirstMap(map[string]any(c), "continuationCommand")
	return tree.Str(cmd["token"])
}

// Valid reports whether both the API path and the token are present.
func (c Continuation) Valid() bool {
	return c.APIURL() != "" && c.Token() != ""
}

// ResultKind distinguishes a page of data from an empty response.
type ResultKind int

const (
	// ResultEmpty covers retry exhaustion and terminally rejected requests (403/413).
	ResultEmpty ResultKind = iota
	// ResultData carries a decoded response body.
	ResultData
)

// Result is the outcome of one continuation request.
type Result struct {
	Kind ResultKind
	Data map[string]any
}

// Empty reports whether the request produced no data.
func (r Result) Empty() bool { return r.Kind == ResultEmpty || len(r.Data) == 0 }

// Accumulator collects comments across pages. Appends come from a single pager;
// Len and Snapshot may be called from other goroutines for progress display.
type Accumulator struct {
	mu    sync.Mutex
	items []Comment
}

// Append adds comments in order.
func (a *Accumulator) Append(cs ...Comment) {
	a.mu.Lock()
	a.items = append(a.items, cs...)
	a.mu.Unlock()
}

// Len returns the number of comments collected so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Snapshot returns a copy of the collected comments.
func (a *Accumulator) Snapshot() []Comment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Comment, len(a.items))
	copy(out, a.items)
	return out
}

// pendingQueue is the LIFO stack of continuations waiting to be dispatched.
type pendingQueue struct {
	items []Continuation
}

func (q *pendingQueue) push(cs ...Continuation) {
	q.items = append(q.items, cs...)
}

func (q *pendingQueue) pop() (Continuation, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return c, true
}

func (q *pendingQueue) len() int { return len(q.items) }
