package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/youtube"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres stores crawl output in a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx pool and applies the embedded schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &Postgres{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("store: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return db, nil
}

func (db *Postgres) migrate(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := db.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Debug("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

func (db *Postgres) SaveVideo(ctx context.Context, v youtube.VideoDetails) error {
	kw := v.Keywords
	if kw == nil {
		kw = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO yt_videos (video_id, title, length_seconds, channel_id, view_count, author, description, keywords, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (video_id) DO UPDATE SET
		   title = EXCLUDED.title, length_seconds = EXCLUDED.length_seconds, channel_id = EXCLUDED.channel_id,
		   view_count = EXCLUDED.view_count, author = EXCLUDED.author, description = EXCLUDED.description,
		   keywords = EXCLUDED.keywords, updated_at = now()`,
		v.VideoID, v.Title, v.LengthSeconds, v.ChannelID, v.ViewCount, v.Author, v.ShortDescription, kw,
	)
	if err != nil {
		return fmt.Errorf("postgres: save video %s: %w", v.VideoID, err)
	}
	return nil
}

func (db *Postgres) Video(ctx context.Context, videoID string) (*youtube.VideoDetails, error) {
	var v youtube.VideoDetails
	err := db.pool.QueryRow(ctx,
		`SELECT video_id, title, length_seconds, channel_id, view_count, author, description, keywords
		 FROM yt_videos WHERE video_id = $1`, videoID,
	).Scan(&v.VideoID, &v.Title, &v.LengthSeconds, &v.ChannelID, &v.ViewCount, &v.Author, &v.ShortDescription, &v.Keywords)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: video %s: %w", videoID, err)
	}
	return &v, nil
}

func (db *Postgres) SaveCaption(ctx context.Context, videoID string, c youtube.Caption) error {
	segs, err := json.Marshal(c.Segments)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO yt_captions (video_id, language_code, kind, name, base_url, segments, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (video_id, language_code, kind) DO UPDATE SET
		   name = EXCLUDED.name, base_url = EXCLUDED.base_url, segments = EXCLUDED.segments, updated_at = now()`,
		videoID, c.Track.LanguageCode, c.Track.Kind, string(c.Track.Name), c.Track.BaseURL, segs,
	)
	if err != nil {
		return fmt.Errorf("postgres: save caption %s/%s: %w", videoID, c.Track.LanguageCode, err)
	}
	return nil
}

func (db *Postgres) Captions(ctx context.Context, videoID string) ([]youtube.Caption, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT language_code, kind, name, base_url, segments FROM yt_captions
		 WHERE video_id = $1 ORDER BY language_code, kind`, videoID)
	if err != nil {
		return nil, fmt.Errorf("postgres: captions %s: %w", videoID, err)
	}
	defer rows.Close()

	var out []youtube.Caption
	for rows.Next() {
		var c youtube.Caption
		var name string
		var segs []byte
		if err := rows.Scan(&c.Track.LanguageCode, &c.Track.Kind, &name, &c.Track.BaseURL, &segs); err != nil {
			return nil, fmt.Errorf("postgres: scan caption: %w", err)
		}
		c.Track.Name = youtube.Text(name)
		if err := json.Unmarshal(segs, &c.Segments); err != nil {
			return nil, fmt.Errorf("postgres: decode segments: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *Postgres) SaveComments(ctx context.Context, videoID string, cs []youtube.Comment) error {
	if len(cs) == 0 {
		return nil
	}
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialize writers per video so seq ranges never interleave.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, videoID); err != nil {
		return fmt.Errorf("postgres: lock %s: %w", videoID, err)
	}
	var next int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM yt_comments WHERE video_id = $1`, videoID,
	).Scan(&next); err != nil {
		return fmt.Errorf("postgres: next seq: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range cs {
		batch.Queue(
			`INSERT INTO yt_comments (cid, video_id, seq, text, time, author, channel, votes, replies, photo, heart, reply, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			 ON CONFLICT (cid) DO UPDATE SET
			   text = EXCLUDED.text, time = EXCLUDED.time, author = EXCLUDED.author, channel = EXCLUDED.channel,
			   votes = EXCLUDED.votes, replies = EXCLUDED.replies, photo = EXCLUDED.photo,
			   heart = EXCLUDED.heart, reply = EXCLUDED.reply, updated_at = now()`,
			c.CID, videoID, next+int64(i), c.Text, c.Time, c.Author, c.Channel,
			c.Votes, c.Replies, c.Photo, c.Heart, c.Reply,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: save comments %s: %w", videoID, err)
	}
	return tx.Commit(ctx)
}

func (db *Postgres) Comments(ctx context.Context, videoID string, limit int) ([]youtube.Comment, error) {
	q := `SELECT cid, video_id, text, time, author, channel, votes, replies, photo, heart, reply
	      FROM yt_comments WHERE video_id = $1 ORDER BY seq`
	args := []any{videoID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: comments %s: %w", videoID, err)
	}
	defer rows.Close()

	out := []youtube.Comment{}
	for rows.Next() {
		var c youtube.Comment
		if err := rows.Scan(&c.CID, &c.VID, &c.Text, &c.Time, &c.Author, &c.Channel,
			&c.Votes, &c.Replies, &c.Photo, &c.Heart, &c.Reply); err != nil {
			return nil, fmt.Errorf("postgres: scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}
