// Package store persists crawled videos, caption tracks and comments.
//
// Two backends share one schema: SQLite (default, a local file) and Postgres
// (selected when a DATABASE_URL is configured).
package store

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
)

// ErrNotFound is returned by lookups for a video that was never saved.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract used by the crawler and the MCP tools.
type Store interface {
	SaveVideo(ctx context.Context, v youtube.VideoDetails) error
	Video(ctx context.Context, videoID string) (*youtube.VideoDetails, error)
	SaveCaption(ctx context.Context, videoID string, c youtube.Caption) error
	Captions(ctx context.Context, videoID string) ([]youtube.Caption, error)
	// SaveComments upserts by comment id. Comments not seen before are ordered
	// after everything already stored for the video.
	SaveComments(ctx context.Context, videoID string, cs []youtube.Comment) error
	// Comments returns stored comments in crawl order; limit <= 0 returns all.
	Comments(ctx context.Context, videoID string, limit int) ([]youtube.Comment, error)
	Close() error
}

// Open picks Postgres when databaseURL is set, SQLite at sqlitePath otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		pg, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := OpenSQLite(sqlitePath)
	if err != nil {
		return nil, err
	}
	return lite, nil
}
