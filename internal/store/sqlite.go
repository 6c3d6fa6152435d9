package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
	video_id       TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	length_seconds TEXT NOT NULL DEFAULT '',
	channel_id     TEXT NOT NULL DEFAULT '',
	view_count     TEXT NOT NULL DEFAULT '',
	author         TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	keywords       TEXT NOT NULL DEFAULT '[]',
	updated_at     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS captions (
	video_id      TEXT NOT NULL,
	language_code TEXT NOT NULL,
	kind          TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	base_url      TEXT NOT NULL DEFAULT '',
	segments      TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (video_id, language_code, kind)
);
CREATE TABLE IF NOT EXISTS comments (
	cid        TEXT PRIMARY KEY,
	video_id   TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	time       TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL DEFAULT '',
	channel    TEXT NOT NULL DEFAULT '',
	votes      TEXT NOT NULL DEFAULT '0',
	replies    TEXT NOT NULL DEFAULT '',
	photo      TEXT NOT NULL DEFAULT '',
	heart      INTEGER NOT NULL DEFAULT 0,
	reply      INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_video_seq ON comments (video_id, seq);
`

// SQLite is the file-backed store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func (s *SQLite) SaveVideo(ctx context.Context, v youtube.VideoDetails) error {
	kw, _ := json.Marshal(v.Keywords)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (video_id, title, length_seconds, channel_id, view_count, author, description, keywords, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
		   title=excluded.title, length_seconds=excluded.length_seconds, channel_id=excluded.channel_id,
		   view_count=excluded.view_count, author=excluded.author, description=excluded.description,
		   keywords=excluded.keywords, updated_at=excluded.updated_at`,
		v.VideoID, v.Title, v.LengthSeconds, v.ChannelID, v.ViewCount, v.Author, v.ShortDescription, string(kw), now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save video %s: %w", v.VideoID, err)
	}
	return nil
}

func (s *SQLite) Video(ctx context.Context, videoID string) (*youtube.VideoDetails, error) {
	var v youtube.VideoDetails
	var kw string
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, title, length_seconds, channel_id, view_count, author, description, keywords
		 FROM videos WHERE video_id = ?`, videoID,
	).Scan(&v.VideoID, &v.Title, &v.LengthSeconds, &v.ChannelID, &v.ViewCount, &v.Author, &v.ShortDescription, &kw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: video %s: %w", videoID, err)
	}
	_ = json.Unmarshal([]byte(kw), &v.Keywords)
	return &v, nil
}

func (s *SQLite) SaveCaption(ctx context.Context, videoID string, c youtube.Caption) error {
	segs, err := json.Marshal(c.Segments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO captions (video_id, language_code, kind, name, base_url, segments, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id, language_code, kind) DO UPDATE SET
		   name=excluded.name, base_url=excluded.base_url, segments=excluded.segments, updated_at=excluded.updated_at`,
		videoID, c.Track.LanguageCode, c.Track.Kind, string(c.Track.Name), c.Track.BaseURL, string(segs), now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save caption %s/%s: %w", videoID, c.Track.LanguageCode, err)
	}
	return nil
}

func (s *SQLite) Captions(ctx context.Context, videoID string) ([]youtube.Caption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT language_code, kind, name, base_url, segments FROM captions
		 WHERE video_id = ? ORDER BY language_code, kind`, videoID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: captions %s: %w", videoID, err)
	}
	defer rows.Close()

	var out []youtube.Caption
	for rows.Next() {
		var c youtube.Caption
		var name, segs string
		if err := rows.Scan(&c.Track.LanguageCode, &c.Track.Kind, &name, &c.Track.BaseURL, &segs); err != nil {
			return nil, fmt.Errorf("sqlite: scan caption: %w", err)
		}
		c.Track.Name = youtube.Text(name)
		if err := json.Unmarshal([]byte(segs), &c.Segments); err != nil {
			return nil, fmt.Errorf("sqlite: decode segments: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveComments(ctx context.Context, videoID string, cs []youtube.Comment) error {
	if len(cs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM comments WHERE video_id = ?`, videoID,
	).Scan(&next); err != nil {
		return fmt.Errorf("sqlite: next seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO comments (cid, video_id, seq, text, time, author, channel, votes, replies, photo, heart, reply, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cid) DO UPDATE SET
		   text=excluded.text, time=excluded.time, author=excluded.author, channel=excluded.channel,
		   votes=excluded.votes, replies=excluded.replies, photo=excluded.photo,
		   heart=excluded.heart, reply=excluded.reply, updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for i, c := range cs {
		if _, err := stmt.ExecContext(ctx,
			c.CID, videoID, next+int64(i), c.Text, c.Time, c.Author, c.Channel,
			c.Votes, c.Replies, c.Photo, c.Heart, c.Reply, ts,
		); err != nil {
			return fmt.Errorf("sqlite: save comment %s: %w", c.CID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Comments(ctx context.Context, videoID string, limit int) ([]youtube.Comment, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cid, video_id, text, time, author, channel, votes, replies, photo, heart, reply
		 FROM comments WHERE video_id = ? ORDER BY seq LIMIT ?`, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: comments %s: %w", videoID, err)
	}
	defer rows.Close()

	out := []youtube.Comment{}
	for rows.Next() {
		var c youtube.Comment
		if err := rows.Scan(&c.CID, &c.VID, &c.Text, &c.Time, &c.Author, &c.Channel,
			&c.Votes, &c.Replies, &c.Photo, &c.Heart, &c.Reply); err != nil {
			return nil, fmt.Errorf("sqlite: scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
