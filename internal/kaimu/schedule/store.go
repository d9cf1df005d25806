package schedule

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// retention is how long a cached document survives without being
// superseded. Purged opportunistically at write time.
const retention = 90 * 24 * time.Hour

// Store caches parsed schedule documents keyed by posting source and
// period. A later parse for the same key supersedes the cached row.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the schedule database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("schedule: failed to open database: %w", err)
	}

	// SQLite is single-writer by design. Keep a single shared connection so
	// concurrent callers are serialized by database/sql instead of fighting
	// for write locks across multiple underlying connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("schedule: failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schedule: failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts doc for (source, doc.Period), superseding any earlier parse
// with the same key, and purges rows past the retention horizon.
func (s *Store) Save(ctx context.Context, source string, doc *Document) error {
	return s.saveAt(ctx, source, doc, time.Now())
}

func (s *Store) saveAt(ctx context.Context, source string, doc *Document, now time.Time) error {
	if doc == nil {
		return fmt.Errorf("schedule: nil document")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schedule: failed to encode document: %w", err)
	}

	stamp := now.UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (source, period, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source, period) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, source, doc.Period, string(payload), stamp)
	if err != nil {
		return fmt.Errorf("schedule: failed to save document: %w", err)
	}

	cutoff := now.Add(-retention).UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE updated_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("schedule: failed to purge stale documents: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("schedule: purged stale documents", "count", n)
	}
	return nil
}

// Lookup returns the cached document for source whose period covers ref,
// or nil when no cached period matches.
func (s *Store) Lookup(ctx context.Context, source string, ref time.Time) (*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period, document FROM schedules
		WHERE source = ? AND period != ''
		ORDER BY updated_at DESC
	`, source)
	if err != nil {
		return nil, fmt.Errorf("schedule: failed to query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var period, payload string
		if err := rows.Scan(&period, &payload); err != nil {
			return nil, fmt.Errorf("schedule: failed to scan row: %w", err)
		}
		if !WithinPeriod(period, ref) {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("schedule: failed to decode document for period %s: %w", period, err)
		}
		return &doc, nil
	}
	return nil, rows.Err()
}

// runMigrations applies pending embedded migrations in filename order.
func (s *Store) runMigrations() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		description := strings.TrimSuffix(parts[1], ".sql")

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version, description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
		slog.Info("schedule: applied migration", "version", version, "description", description)
	}
	return nil
}
