package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
)

// VideoDetails is the videoDetails block of a /player response.
type VideoDetails struct {
	VideoID          string   `json:"videoId"`
	Title            string   `json:"title"`
	LengthSeconds    string   `json:"lengthSeconds"`
	ChannelID        string   `json:"channelId"`
	ViewCount        string   `json:"viewCount"`
	Author           string   `json:"author"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
}

// CaptionTrack is one entry of the caption track list.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Name         Text   `json:"name"`
	Kind         string `json:"kind,omitempty"` // "asr" for auto-generated tracks
}

// Text is a display string delivered either as simpleText or as a list of runs.
type Text string

// UnmarshalJSON accepts {"simpleText": "..."}, {"runs": [{"text": "..."}]} or a bare string.
func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var obj struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.SimpleText != "" {
		*t = Text(obj.SimpleText)
		return nil
	}
	var sb strings.Builder
	for _, r := range obj.Runs {
		sb.WriteString(r.Text)
	}
	*t = Text(sb.String())
	return nil
}

// PlayerInfo holds what the crawler reads from /player.
type PlayerInfo struct {
	Details  VideoDetails   `json:"details"`
	Captions []CaptionTrack `json:"captions"`
}

type playerResponse struct {
	VideoDetails VideoDetails `json:"videoDetails"`
	Captions     struct {
		Tracklist struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// Player fetches video details and caption tracks. Responses are cached.
func (c *Client) Player(ctx context.Context, videoID string) (*PlayerInfo, error) {
	key := engine.CacheKey("player", videoID)
	if info, ok := engine.CacheLoadJSON[PlayerInfo](ctx, key); ok {
		return &info, nil
	}

	engine.IncrPlayerRequests()
	body, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"cl": "en",
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": ytWebVersion,
				"mainAppWebInfo": map[string]any{
					"graftUrl": "/watch?v=" + videoID,
				},
			},
		},
		"videoId": videoID,
	})
	if err != nil {
		return nil, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ytPlayerPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		return c.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("player %s: HTTP %d: %s", videoID, resp.StatusCode, snippet)
	}
	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("player %s: decode: %w", videoID, err)
	}
	if pr.VideoDetails.VideoID == "" && pr.PlayabilityStatus.Status != "" && pr.PlayabilityStatus.Status != "OK" {
		return nil, fmt.Errorf("player %s: %s: %s", videoID, pr.PlayabilityStatus.Status, pr.PlayabilityStatus.Reason)
	}

	info := PlayerInfo{
		Details:  pr.VideoDetails,
		Captions: pr.Captions.Tracklist.CaptionTracks,
	}
	engine.CacheStoreJSON(ctx, key, info)
	return &info, nil
}
