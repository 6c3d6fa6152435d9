package crawlserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/crawl"
	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
	"github.com/anatolykoptev/go_ytcrawl/internal/store"
)

const maxToolComments = 5000

// Deps are the collaborators the tools act on.
type Deps struct {
	Client  *youtube.Client
	Crawler *crawl.Crawler
	Store   store.Store // nil disables crawl_comments
}

// RegisterTools registers the YouTube tools on the given MCP server:
// youtube_comments, youtube_video, youtube_captions, crawl_start, crawl_status,
// crawl_stop and, with a store, crawl_comments.
func RegisterTools(server *mcp.Server, d Deps) int {
	registerComments(server, d.Client)
	registerVideo(server, d.Client)
	registerCaptions(server, d.Client)
	registerCrawlStart(server, d.Crawler)
	registerCrawlStatus(server, d.Crawler)
	registerCrawlStop(server, d.Crawler)
	n := 6
	if d.Store != nil {
		registerCrawlComments(server, d.Store)
		n++
	}
	return n
}
