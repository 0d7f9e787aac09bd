package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite is a file-backed registry for local runs and tests. Tables mirror
// the Mongo collections with the nested score flattened to home_desktop.
type SQLite struct {
	db     *sql.DB
	stores string
	scores string
}

// schemaSQL creates both tables; %[1]s is the stores table, %[2]s the scores table.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id          TEXT PRIMARY KEY,
    store       TEXT NOT NULL,
    plan        TEXT,
    app_version TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS %[2]s (
    id           TEXT PRIMARY KEY,
    store_id     TEXT NOT NULL,
    home_desktop REAL NOT NULL,
    requested_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[2]s_store ON %[2]s(store_id, requested_at);
`

// timeLayout is fixed-width so requested_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLite, error) {
	opts.defaults()
	if err := checkIdent(opts.StoresCollection, opts.ScoresCollection); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: sqlite open: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("registry: sqlite %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(schemaSQL, opts.StoresCollection, opts.ScoresCollection)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: sqlite schema: %w", err)
	}

	return &SQLite{db: db, stores: opts.StoresCollection, scores: opts.ScoresCollection}, nil
}

// EligibleStores returns every premium store. A NULL plan is eligible, as
// with Mongo's $nin.
func (s *SQLite) EligibleStores(ctx context.Context) ([]Store, error) {
	query := fmt.Sprintf(`SELECT id, store, COALESCE(plan, ''), app_version FROM %s
		WHERE (plan IS NULL OR plan NOT IN (%s)) AND app_version = ?
		ORDER BY id`, s.stores, placeholders(len(ExcludedPlans)))

	args := make([]any, 0, len(ExcludedPlans)+1)
	for _, p := range ExcludedPlans {
		args = append(args, p)
	}
	args = append(args, EligibleAppVersion)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: sqlite query stores: %w", err)
	}
	defer rows.Close()

	var out []Store
	for rows.Next() {
		var st Store
		if err := rows.Scan(&st.ID, &st.Hostname, &st.Plan, &st.AppVersion); err != nil {
			return nil, fmt.Errorf("registry: sqlite scan store: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: sqlite iterate stores: %w", err)
	}
	slog.Info("registry: eligible stores loaded", "backend", "sqlite", "count", len(out))
	return out, nil
}

// InsertScore appends one score row under a fresh UUID.
func (s *SQLite) InsertScore(ctx context.Context, rec ScoreRecord) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, store_id, home_desktop, requested_at) VALUES (?, ?, ?, ?)`, s.scores),
		id, rec.StoreID, rec.Desktop, rec.RequestedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("registry: sqlite insert score: %w", err)
	}
	return id, nil
}

// PutStore inserts or replaces a store record. A plan of "" is stored as NULL.
func (s *SQLite) PutStore(ctx context.Context, st Store) error {
	var plan any
	if st.Plan != "" {
		plan = st.Plan
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, store, plan, app_version) VALUES (?, ?, ?, ?)`, s.stores),
		st.ID, st.Hostname, plan, st.AppVersion,
	)
	if err != nil {
		return fmt.Errorf("registry: sqlite put store: %w", err)
	}
	return nil
}

// ScoreHistory returns the score records for storeID, oldest first.
func (s *SQLite) ScoreHistory(ctx context.Context, storeID string) ([]ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT store_id, home_desktop, requested_at FROM %s
			WHERE store_id = ? ORDER BY requested_at`, s.scores), storeID)
	if err != nil {
		return nil, fmt.Errorf("registry: sqlite query scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var (
			rec ScoreRecord
			ts  string
		)
		if err := rows.Scan(&rec.StoreID, &rec.Desktop, &ts); err != nil {
			return nil, fmt.Errorf("registry: sqlite scan score: %w", err)
		}
		if rec.RequestedAt, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("registry: sqlite parse requested_at %q: %w", ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
