// Package library keeps a SQLite-backed ledger of rendered episodes so
// the daemon can list and prune past output.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/castforge/castforge/internal/config"
	_ "modernc.org/sqlite"
)

// Episode is one recorded render.
type Episode struct {
	ID           int64
	RequestID    string
	Title        string
	AudioPath    string
	ChaptersPath string
	Duration     float64
	SegmentCount int
	WarningCount int
	CreatedAt    time.Time
}

// Store wraps the episode ledger. A store opened with an empty path is
// disabled: writes succeed silently and reads return nothing.
type Store struct {
	db    *sql.DB
	cfg   config.LibraryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the ledger according to config.
func Open(ctx context.Context, cfg config.LibraryConfig, log *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("library vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("library prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS episodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT,
    title TEXT NOT NULL,
    audio_path TEXT NOT NULL,
    chapters_path TEXT,
    duration_seconds REAL NOT NULL,
    segment_count INTEGER NOT NULL,
    warning_count INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodes_created ON episodes(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record writes one rendered episode into the ledger.
func (s *Store) Record(ctx context.Context, ep Episode) error {
	if s.db == nil {
		return nil
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes(request_id, title, audio_path, chapters_path, duration_seconds, segment_count, warning_count, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.RequestID, ep.Title, ep.AudioPath, ep.ChaptersPath, ep.Duration, ep.SegmentCount, ep.WarningCount, ep.CreatedAt)
	return err
}

// List retrieves up to limit episodes, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Episode, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, title, audio_path, chapters_path, duration_seconds, segment_count, warning_count, created_at
		 FROM episodes ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		var created string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Title, &e.AudioPath, &e.ChaptersPath, &e.Duration, &e.SegmentCount, &e.WarningCount, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// Prune applies configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM episodes WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxEpisodes > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM episodes WHERE id IN (
			SELECT id FROM episodes ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxEpisodes)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
