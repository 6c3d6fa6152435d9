package crawlserver

import (
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
)

// CommentsInput is the input for youtube_comments.
type CommentsInput struct {
	URL         string `json:"url" jsonschema:"YouTube video URL or 11-character video id"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of comments to return (default from CRAWL_COMMENT_LIMIT, max 5000)"`
	NewestFirst bool   `json:"newest_first,omitempty" jsonschema:"Sort newest first instead of top comments"`
	Language    string `json:"language,omitempty" jsonschema:"Interface language code (hl), e.g. en or de"`
}

// CommentsOutput is the output of youtube_comments.
type CommentsOutput struct {
	VideoID  string            `json:"video_id"`
	State    string            `json:"state"`
	Count    int               `json:"count"`
	Comments []youtube.Comment `json:"comments"`
	Error    string            `json:"error,omitempty"`
}

// VideoInput is the input for youtube_video.
type VideoInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL or 11-character video id"`
}

// TrackInfo describes an available caption track.
type TrackInfo struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
	Kind         string `json:"kind,omitempty"`
}

// VideoOutput is the output of youtube_video.
type VideoOutput struct {
	Details  youtube.VideoDetails `json:"details"`
	Captions []TrackInfo          `json:"captions"`
}

// CaptionsInput is the input for youtube_captions.
type CaptionsInput struct {
	URL      string `json:"url" jsonschema:"YouTube video URL or 11-character video id"`
	Language string `json:"language,omitempty" jsonschema:"Caption language code, e.g. en. Empty downloads every track"`
}

// CaptionsOutput is the output of youtube_captions.
type CaptionsOutput struct {
	VideoID  string            `json:"video_id"`
	Captions []youtube.Caption `json:"captions"`
}

// CrawlStartInput is the input for crawl_start.
type CrawlStartInput struct {
	URLs         []string `json:"urls" jsonschema:"YouTube video URLs or ids to crawl"`
	Limit        int      `json:"limit,omitempty" jsonschema:"Per-video comment limit; 0 uses CRAWL_COMMENT_LIMIT"`
	NewestFirst  bool     `json:"newest_first,omitempty" jsonschema:"Crawl comments newest first"`
	Language     string   `json:"language,omitempty" jsonschema:"Interface language code (hl)"`
	SkipCaptions bool     `json:"skip_captions,omitempty" jsonschema:"Do not download caption tracks"`
	SkipComments bool     `json:"skip_comments,omitempty" jsonschema:"Do not crawl comments"`
}

// CrawlStartOutput is the output of crawl_start.
type CrawlStartOutput struct {
	RunID   string `json:"run_id"`
	Videos  int    `json:"videos"`
	Message string `json:"message"`
}

// CrawlStatusInput is the (empty) input for crawl_status.
type CrawlStatusInput struct{}

// CrawlStopInput is the (empty) input for crawl_stop.
type CrawlStopInput struct{}

// CrawlStopOutput is the output of crawl_stop.
type CrawlStopOutput struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// CrawlCommentsInput is the input for crawl_comments.
type CrawlCommentsInput struct {
	URL   string `json:"url" jsonschema:"YouTube video URL or 11-character video id"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of stored comments to return (default 100, max 5000)"`
}

// CrawlCommentsOutput is the output of crawl_comments.
type CrawlCommentsOutput struct {
	VideoID  string                `json:"video_id"`
	Video    *youtube.VideoDetails `json:"video,omitempty"`
	Count    int                   `json:"count"`
	Comments []youtube.Comment     `json:"comments"`
}
