package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
)

// Bootstrap failures. Both abort the comment crawl before any pagination.
var (
	ErrNoYtcfg       = errors.New("ytcfg not found in watch page")
	ErrNoInitialData = errors.New("ytInitialData not found in watch page")
)

var (
	ytcfgRe       = regexp.MustCompile(`ytcfg\.set\s*\(\s*({.+?})\s*\)\s*;`)
	initialDataRe = regexp.MustCompile(`(?:window\s*\[\s*["']ytInitialData["']\s*\]|ytInitialData)\s*=\s*({.+?})\s*;\s*(?:var\s+meta|</script|\n|$)`)
)

const maxPageBytes = 8 * 1024 * 1024

// ytcfg is the subset of the client config blob the crawler needs.
type ytcfg struct {
	APIKey  string         `json:"INNERTUBE_API_KEY"`
	Context map[string]any `json:"INNERTUBE_CONTEXT"`
}

// NewSession fetches the watch page for videoID and extracts the client config
// and the initial data blob.
func (c *Client) NewSession(ctx context.Context, videoID string) (*Session, error) {
	pageURL := c.baseURL + "/watch?v=" + url.QueryEscape(videoID)
	page, _, err := c.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	s, err := parseSession(page)
	if err != nil {
		return nil, fmt.Errorf("watch page %s: %w", videoID, err)
	}
	s.VideoID = videoID
	return s, nil
}

// FetchPage GETs pageURL and, when YouTube redirects to its consent wall, submits
// the consent form with the page's hidden fields and returns the resulting page.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (page, finalURL string, err error) {
	engine.IncrPageFetches()

	body, finalURL, err := c.doPage(ctx, http.MethodGet, pageURL)
	if err != nil {
		return "", "", fmt.Errorf("fetch page: %w", err)
	}
	if !strings.Contains(finalURL, "consent") {
		return body, finalURL, nil
	}

	slog.Debug("youtube: consent wall, submitting form", slog.String("url", finalURL))
	params := hiddenInputs(body)
	params.Set("continue", pageURL)
	params.Set("set_eom", "false")
	params.Set("set_ytc", "true")
	params.Set("set_apyt", "true")

	body, finalURL, err = c.doPage(ctx, http.MethodPost, c.consentURL+"?"+params.Encode())
	if err != nil {
		return "", "", fmt.Errorf("consent: %w", err)
	}
	return body, finalURL, nil
}

func (c *Client) doPage(ctx context.Context, method, target string) (string, string, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range engine.ChromeHeaders() {
			// Leave compression negotiation to net/http so bodies are decoded transparently.
			if strings.EqualFold(k, "accept-encoding") {
				continue
			}
			req.Header.Set(k, v)
		}
		req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+cb"})
		return c.http.Do(req)
	})
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}
	return string(body), resp.Request.URL.String(), nil
}

// hiddenInputs collects name/value pairs of <input type="hidden"> elements.
func hiddenInputs(page string) url.Values {
	params := url.Values{}
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return params
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "input" {
				continue
			}
			var typ, name, value string
			for _, a := range tok.Attr {
				switch a.Key {
				case "type":
					typ = a.Val
				case "name":
					name = a.Val
				case "value":
					value = a.Val
				}
			}
			if strings.EqualFold(typ, "hidden") && name != "" {
				params.Set(name, value)
			}
		}
	}
}

// scriptBodies returns the raw text of every <script> element.
func scriptBodies(page string) []string {
	var out []string
	z := html.NewTokenizer(strings.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				out = append(out, string(z.Text()))
			}
		}
	}
}

// parseSession extracts ytcfg and ytInitialData from watch page HTML.
// Several ytcfg.set calls may appear; later values fill in what earlier ones lack.
func parseSession(page string) (*Session, error) {
	s := &Session{}
	for _, script := range scriptBodies(page) {
		for _, m := range ytcfgRe.FindAllStringSubmatch(script, -1) {
			var cfg ytcfg
			if err := json.Unmarshal([]byte(m[1]), &cfg); err != nil {
				slog.Debug("youtube: skip undecodable ytcfg blob", slog.Any("error", err))
				continue
			}
			if s.APIKey == "" {
				s.APIKey = cfg.APIKey
			}
			if s.Context == nil {
				s.Context = cfg.Context
			}
		}
		if s.InitialData == nil {
			if m := initialDataRe.FindStringSubmatch(script); m != nil {
				var data map[string]any
				if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
					return nil, fmt.Errorf("decode ytInitialData: %w", err)
				}
				s.InitialData = data
			}
		}
	}
	if s.APIKey == "" || s.Context == nil {
		return nil, ErrNoYtcfg
	}
	if s.InitialData == nil {
		return nil, ErrNoInitialData
	}
	return s, nil
}
