package stats

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sasha-s/go-deadlock"
)

// Store persists finished sessions.
type Store interface {
	Save(ctx context.Context, s Session) error
	Close() error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       deadlock.Mutex
	sessions []Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Sessions returns a copy of everything saved so far.
func (m *MemoryStore) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sessions)
}

const schema = `
CREATE TABLE IF NOT EXISTS play_sessions (
	session_id    TEXT PRIMARY KEY,
	player_id     INTEGER NOT NULL,
	player_name   TEXT NOT NULL,
	best_rank     INTEGER NOT NULL,
	started_at    TIMESTAMP NOT NULL,
	ended_at      TIMESTAMP NOT NULL,
	play_seconds  INTEGER NOT NULL,
	max_mass      REAL NOT NULL,
	food_eaten    INTEGER NOT NULL,
	players_eaten INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS players_eaten (
	session_id   TEXT NOT NULL REFERENCES play_sessions(session_id),
	player_eaten TEXT NOT NULL,
	times_eaten  INTEGER NOT NULL
);`

// SQLiteStore writes sessions to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create stats schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts the session row and its players-eaten tallies in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	st := sess.Stats
	_, err = tx.ExecContext(ctx,
		`INSERT INTO play_sessions
			(session_id, player_id, player_name, best_rank, started_at, ended_at,
			 play_seconds, max_mass, food_eaten, players_eaten)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.PlayerID, st.PlayerName, st.BestRank,
		st.StartTime.UTC(), st.EndTime.UTC(), int64(st.TimePlayed().Seconds()),
		st.MaximumMass, st.FoodEaten, len(st.PlayersEaten))
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}

	counts := sess.EatenCounts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO players_eaten (session_id, player_eaten, times_eaten) VALUES (?, ?, ?)`,
			sess.ID.String(), name, counts[name]); err != nil {
			return fmt.Errorf("insert eaten %q: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
