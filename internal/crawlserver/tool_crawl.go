package crawlserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/crawl"
	"github.com/anatolykoptev/go_ytcrawl/internal/store"
	"github.com/anatolykoptev/go_ytcrawl/internal/toolutil"
)

func registerCrawlStart(server *mcp.Server, c *crawl.Crawler) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "crawl_start",
		Description: "Start a background crawl of one or more YouTube videos: details, caption tracks and comments are fetched and stored. Only one crawl runs at a time; poll progress with crawl_status.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input CrawlStartInput) (*mcp.CallToolResult, *CrawlStartOutput, error) {
		if len(input.URLs) == 0 {
			return nil, nil, errors.New("urls is required")
		}
		newest := input.NewestFirst || engine.Cfg.NewestFirst
		runID, err := c.Start(input.URLs, crawl.Options{
			CommentLimit: toolutil.ClampLimit(input.Limit, engine.Cfg.CommentLimit, 0),
			Language:     toolutil.NormLang(input.Language),
			NewestFirst:  newest,
			PageDelay:    engine.Cfg.PageDelay,
			SkipCaptions: input.SkipCaptions,
			SkipComments: input.SkipComments,
		})
		if err != nil {
			return nil, nil, err
		}
		n := len(c.Status().Videos)
		return nil, &CrawlStartOutput{
			RunID:   runID,
			Videos:  n,
			Message: fmt.Sprintf("crawling %d video(s)", n),
		}, nil
	})
}

func registerCrawlStatus(server *mcp.Server, c *crawl.Crawler) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "crawl_status",
		Description: "Progress of the current or last crawl: per video status, details, caption and comment counts, and errors.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ CrawlStatusInput) (*mcp.CallToolResult, *crawl.Snapshot, error) {
		snap := c.Status()
		return nil, &snap, nil
	})
}

func registerCrawlStop(server *mcp.Server, c *crawl.Crawler) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "crawl_stop",
		Description: "Ask the running crawl to stop. Videos finish their current page and keep what was collected.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ CrawlStopInput) (*mcp.CallToolResult, *CrawlStopOutput, error) {
		if !c.Stop() {
			return nil, &CrawlStopOutput{Message: "no crawl is running"}, nil
		}
		return nil, &CrawlStopOutput{Stopped: true, Message: "stop requested"}, nil
	})
}

func registerCrawlComments(server *mcp.Server, st store.Store) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "crawl_comments",
		Description: "Read comments stored by earlier crawls for a video, in crawl order, together with the stored video details.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input CrawlCommentsInput) (*mcp.CallToolResult, *CrawlCommentsOutput, error) {
		id, err := toolutil.VideoID(input.URL)
		if err != nil {
			return nil, nil, err
		}
		out := &CrawlCommentsOutput{VideoID: id}

		v, err := st.Video(ctx, id)
		switch {
		case err == nil:
			out.Video = v
		case !errors.Is(err, store.ErrNotFound):
			return nil, nil, fmt.Errorf("load video: %w", err)
		}

		out.Comments, err = st.Comments(ctx, id, toolutil.ClampLimit(input.Limit, 100, maxToolComments))
		if err != nil {
			return nil, nil, fmt.Errorf("load comments: %w", err)
		}
		out.Count = len(out.Comments)
		return nil, out, nil
	})
}
