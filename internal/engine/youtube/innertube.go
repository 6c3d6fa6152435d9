// Package youtube talks to the Innertube JSON protocol used by the YouTube web client.
//
// The implementation is split by responsibility:
//
//	innertube.go  client, options, session
//	page.go       watch page fetch, consent handshake, ytcfg / ytInitialData extraction
//	requester.go  one continuation request with fixed-delay retry
//	entities.go   comment entity payloads → Comment records
//	pager.go      the continuation pagination state machine
//	sortmenu.go   initial continuation from the comment sort menu
//	comments.go   Client.Comments, the public crawl entry point
//	player.go     /player: video details and caption tracks
//	timedtext.go  caption track download
package youtube

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/tree"
)

const (
	ytBaseURL    = "https://www.youtube.com"
	ytConsentURL = "https://consent.youtube.com/save"
	ytPlayerPath = "/youtubei/v1/player"
	ytWebVersion = "2.20210721.00.00"
)

// Request defaults for continuation requests.
const (
	DefaultRequestRetries    = 5
	DefaultRequestRetryDelay = 20 * time.Second
	DefaultRequestTimeout    = 60 * time.Second
	DefaultPageDelay         = 100 * time.Millisecond
)

// Client issues Innertube requests. Safe for concurrent use across videos;
// each crawl gets its own Session.
type Client struct {
	http       *http.Client
	baseURL    string
	consentURL string
	retry      engine.RetryConfig
	timeout    time.Duration
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. A cookie jar is attached when
// the client has none, because the consent handshake relies on cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		if cp.Jar == nil {
			cp.Jar = newJar()
		}
		c.http = &cp
	}
}

// WithBaseURL overrides https://www.youtube.com (tests, mirrors).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithConsentURL overrides the consent form endpoint.
func WithConsentURL(u string) Option {
	return func(c *Client) { c.consentURL = u }
}

// WithRetry sets the attempt bound and the fixed delay between attempts
// for continuation requests.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) { c.retry = engine.FixedRetryConfig(attempts, delay) }
}

// WithRequestTimeout sets the per-attempt timeout for continuation requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps continuation attempts per second across all crawls
// sharing this client. rps <= 0 disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient builds a client with the default retry policy: 5 attempts, 20s apart.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Jar: newJar()},
		baseURL:    ytBaseURL,
		consentURL: ytConsentURL,
		retry:      engine.FixedRetryConfig(DefaultRequestRetries, DefaultRequestRetryDelay),
		timeout:    DefaultRequestTimeout,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newJar() http.CookieJar {
	jar, _ := cookiejar.New(nil) // only fails on a non-nil PublicSuffixList
	return jar
}

// Session is the per-video state extracted from the watch page.
type Session struct {
	VideoID     string
	APIKey      string
	Context     map[string]any // INNERTUBE_CONTEXT, sent verbatim with every continuation
	InitialData map[string]any // ytInitialData
}

// SetLanguage sets the interface language (client.hl) used for all following requests.
func (s *Session) SetLanguage(hl string) {
	if hl == "" {
		return
	}
	if s.Context == nil {
		s.Context = map[string]any{}
	}
	client := tree.Map(s.Context["client"])
	if client == nil {
		client = map[string]any{}
		s.Context["client"] = client
	}
	client["hl"] = hl
}
