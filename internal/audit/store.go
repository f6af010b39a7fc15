// Package audit persists completed launches in SQLite and summarizes them.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	// busyTimeoutMS lets a concurrent reporter read while the recorder writes.
	busyTimeoutMS = 5000
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS log (
    datetime INTEGER NOT NULL,
    application TEXT NOT NULL,
    launch_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_log_datetime ON log(datetime);
`

// usageQuery keeps both bounds exclusive.
const usageQuery = `SELECT application, COUNT(application) AS count
FROM log
WHERE ? < datetime AND datetime < ?
GROUP BY application
ORDER BY count DESC, application ASC`

// Store is the launch log database.
type Store struct {
	db   *sql.DB
	path string
}

// UsageRow is the number of launches of one application.
type UsageRow struct {
	Application string
	Count       int64
}

// Open opens or creates the database at path and migrates its schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("audit database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit database dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open audit database %s: %w", path, err)
	}
	// One connection keeps per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("[audit] database opened", "path", path)
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}

	// Databases written before launch ids existed only have two columns.
	hasLaunchID, err := s.hasColumn(ctx, "log", "launch_id")
	if err != nil {
		return err
	}
	if !hasLaunchID {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE log ADD COLUMN launch_id TEXT`); err != nil {
			return fmt.Errorf("migrate audit schema: %w", err)
		}
		slog.Info("[audit] migrated log table", "column", "launch_id")
	}
	return nil
}

func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("inspect %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Insert appends one launch and returns its launch id.
func (s *Store) Insert(ctx context.Context, ts time.Time, application string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log (datetime, application, launch_id) VALUES (?, ?, ?)`,
		ts.Unix(), application, id)
	if err != nil {
		return "", fmt.Errorf("insert launch of %q: %w", application, err)
	}
	return id, nil
}

// Usage counts launches per application with since < datetime < until,
// most launched first.
func (s *Store) Usage(ctx context.Context, since, until time.Time) ([]UsageRow, error) {
	rows, err := s.db.QueryContext(ctx, usageQuery, since.Unix(), until.Unix())
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		var row UsageRow
		if err := rows.Scan(&row.Application, &row.Count); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
