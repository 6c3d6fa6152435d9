package crawlserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
	"github.com/anatolykoptev/go_ytcrawl/internal/toolutil"
)

func registerComments(server *mcp.Server, yt *youtube.Client) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_comments",
		Description: "Fetch comments and replies of a YouTube video by walking its comment continuations. Returns flat records (cid, text, author, channel, votes, replies, heart, reply). Replies carry a dot in their cid. Sort by top (default) or newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input CommentsInput) (*mcp.CallToolResult, *CommentsOutput, error) {
		id, err := toolutil.VideoID(input.URL)
		if err != nil {
			return nil, nil, err
		}

		var (
			acc   youtube.Accumulator
			state youtube.State
		)
		err = engine.TrackOperation(ctx, "youtube_comments", 2*time.Minute, func(ctx context.Context) error {
			var cerr error
			state, cerr = yt.Comments(ctx, id, youtube.CommentOptions{
				Language:    toolutil.NormLang(input.Language),
				NewestFirst: input.NewestFirst,
				Limit:       toolutil.ClampLimit(input.Limit, engine.Cfg.CommentLimit, maxToolComments),
				PageDelay:   engine.Cfg.PageDelay,
			}, &acc)
			return cerr
		})
		comments := acc.Snapshot()
		if err != nil && len(comments) == 0 {
			return nil, nil, err
		}

		out := &CommentsOutput{VideoID: id, State: state.String(), Count: len(comments), Comments: comments}
		if err != nil {
			slog.Warn("youtube_comments: partial result", slog.String("video", id), slog.Any("error", err))
			out.Error = err.Error()
		}
		return nil, out, nil
	})
}

func registerVideo(server *mcp.Server, yt *youtube.Client) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_video",
		Description: "Get YouTube video details (title, author, channel, length, views, description, keywords) and the list of available caption tracks.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input VideoInput) (*mcp.CallToolResult, *VideoOutput, error) {
		id, err := toolutil.VideoID(input.URL)
		if err != nil {
			return nil, nil, err
		}
		info, err := yt.Player(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		out := &VideoOutput{Details: info.Details, Captions: make([]TrackInfo, 0, len(info.Captions))}
		for _, tr := range info.Captions {
			out.Captions = append(out.Captions, TrackInfo{LanguageCode: tr.LanguageCode, Name: string(tr.Name), Kind: tr.Kind})
		}
		return nil, out, nil
	})
}

func registerCaptions(server *mcp.Server, yt *youtube.Client) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_captions",
		Description: "Download caption tracks of a YouTube video as timed segments (start, dur, end in seconds, text). Pass a language code to fetch a single language; tracks that fail to download are skipped.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input CaptionsInput) (*mcp.CallToolResult, *CaptionsOutput, error) {
		id, err := toolutil.VideoID(input.URL)
		if err != nil {
			return nil, nil, err
		}
		info, err := yt.Player(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		tracks := info.Captions
		if lang := strings.TrimSpace(input.Language); lang != "" {
			tracks = nil
			for _, tr := range info.Captions {
				if strings.EqualFold(tr.LanguageCode, lang) {
					tracks = append(tracks, tr)
				}
			}
			if len(tracks) == 0 {
				return nil, nil, errors.New("no caption track for language " + lang)
			}
		}

		caps := yt.DownloadCaptions(ctx, tracks)
		if len(caps) == 0 && len(tracks) > 0 {
			return nil, nil, errors.New("all caption downloads failed")
		}
		return nil, &CaptionsOutput{VideoID: id, Captions: caps}, nil
	})
}
