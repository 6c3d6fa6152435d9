package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
)

// CaptionSegment is one timed line of a caption track. Times are in seconds.
type CaptionSegment struct {
	Start float64 `json:"start"`
	Dur   float64 `json:"dur"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Caption is a downloaded track.
type Caption struct {
	Track    CaptionTrack     `json:"track"`
	Segments []CaptionSegment `json:"segments"`
}

type timedtext struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",innerxml"`
	} `xml:"text"`
}

// Caption downloads one track and parses its timedtext XML.
func (c *Client) Caption(ctx context.Context, track CaptionTrack) (*Caption, error) {
	if track.BaseURL == "" {
		return nil, fmt.Errorf("caption %s: empty base url", track.LanguageCode)
	}
	engine.IncrCaptionDownloads()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		return c.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("caption %s: %w", track.LanguageCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("caption %s: HTTP %d", track.LanguageCode, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("caption %s: read: %w", track.LanguageCode, err)
	}
	segs, err := ParseTimedText(data)
	if err != nil {
		return nil, fmt.Errorf("caption %s: %w", track.LanguageCode, err)
	}
	return &Caption{Track: track, Segments: segs}, nil
}

// ParseTimedText decodes a <transcript><text start dur>...</text></transcript> document.
// Text bodies are entity-unescaped (they are often escaped twice) and stripped of markup.
func ParseTimedText(data []byte) ([]CaptionSegment, error) {
	var doc timedtext
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse timedtext: %w", err)
	}
	out := make([]CaptionSegment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		text := html.UnescapeString(html.UnescapeString(t.Body))
		out = append(out, CaptionSegment{
			Start: start,
			Dur:   dur,
			End:   start + dur,
			Text:  engine.CleanHTML(text),
		})
	}
	return out, nil
}

// DownloadCaptions fetches all tracks in parallel. A track that fails is logged and
// left out; the result keeps the order of tracks.
func (c *Client) DownloadCaptions(ctx context.Context, tracks []CaptionTrack) []Caption {
	results := make([]*Caption, len(tracks))
	var wg sync.WaitGroup
	for i, tr := range tracks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			capt, err := c.Caption(ctx, tr)
			if err != nil {
				engine.IncrCaptionErrors()
				slog.Warn("youtube: caption download failed",
					slog.String("lang", tr.LanguageCode),
					slog.Any("error", err))
				return
			}
			results[i] = capt
		}()
	}
	wg.Wait()

	out := make([]Caption, 0, len(tracks))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
