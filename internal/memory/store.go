package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"librarian/internal/docdex"
	"librarian/internal/logging"
)

func recalledFromText(text string) docdex.RecalledFact {
	return docdex.RecalledFact{Text: text}
}

// Episode is one prior assembly outcome recalled for similar requests.
type Episode struct {
	ID        int64
	Request   string
	Summary   string
	Outcome   string
	CreatedAt string
}

// GoldenExample is a curated request/selection pair used to seed the bundle
// when the live index has nothing useful.
type GoldenExample struct {
	ID      int64
	Request string
	Files   string
	Notes   string
}

// EpisodeStore reads episodic memory and golden examples from a local SQLite
// database under the workspace. Assembly only reads; writes happen out of
// band via RecordEpisode from the fire-and-forget save path.
type EpisodeStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenEpisodeStore opens (or creates) the episode database at
// <workspaceRoot>/.librarian/episodes.db.
func OpenEpisodeStore(workspaceRoot string) (*EpisodeStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenEpisodeStore")
	defer timer.Stop()

	dir := filepath.Join(workspaceRoot, ".librarian")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, "episodes.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open episode database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}

	s := &EpisodeStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("episode store ready at %s", path)
	return s, nil
}

func (s *EpisodeStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	CREATE TABLE IF NOT EXISTS golden_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request TEXT NOT NULL,
		files TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_episodes_created ON episodes(created_at);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// RecentEpisodes returns the newest episodes whose request shares a token
// with the current request, newest first.
func (s *EpisodeStore) RecentEpisodes(ctx context.Context, request string, limit int) ([]Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, summary, outcome, created_at
		 FROM episodes ORDER BY created_at DESC LIMIT ?`, limit*4)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	reqFact := NewFact(recalledFromText(request))

	var out []Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.ID, &e.Request, &e.Summary, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		if sharedTokens(reqFact, NewFact(recalledFromText(e.Request))) == 0 {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// GoldenExamples returns curated examples overlapping the request tokens.
func (s *EpisodeStore) GoldenExamples(ctx context.Context, request string, limit int) ([]GoldenExample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, files, notes FROM golden_examples LIMIT ?`, limit*4)
	if err != nil {
		return nil, fmt.Errorf("failed to query golden examples: %w", err)
	}
	defer rows.Close()

	reqFact := NewFact(recalledFromText(request))

	var out []GoldenExample
	for rows.Next() {
		var g GoldenExample
		if err := rows.Scan(&g.ID, &g.Request, &g.Files, &g.Notes); err != nil {
			return nil, err
		}
		if sharedTokens(reqFact, NewFact(recalledFromText(g.Request))) == 0 {
			continue
		}
		out = append(out, g)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// RecordEpisode appends one assembly outcome. Called from the fire-and-forget
// save path; failures are logged by the caller, not surfaced to users.
func (s *EpisodeStore) RecordEpisode(ctx context.Context, request, summary, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (request, summary, outcome) VALUES (?, ?, ?)`,
		request, summary, outcome)
	if err != nil {
		return fmt.Errorf("failed to record episode: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *EpisodeStore) Close() error {
	return s.db.Close()
}
