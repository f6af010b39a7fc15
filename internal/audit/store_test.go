package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "log.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreInsertAndUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	inserts := []struct {
		offset time.Duration
		app    string
	}{
		{offset: 0, app: "/Applications/Editor.app"},
		{offset: time.Minute, app: "/Applications/Editor.app"},
		{offset: 2 * time.Minute, app: "/Applications/Browser.app"},
		{offset: 48 * time.Hour, app: "/Applications/Browser.app"},
	}
	for _, in := range inserts {
		id, err := s.Insert(ctx, base.Add(in.offset), in.app)
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("Insert() id = %q, not a uuid: %v", id, err)
		}
	}

	got, err := s.Usage(ctx, base.Add(-time.Second), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	want := []UsageRow{
		{Application: "/Applications/Editor.app", Count: 2},
		{Application: "/Applications/Browser.app", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Usage() = %+v, want %+v", got, want)
	}
}

func TestStoreUsageBoundsAreExclusive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := s.Insert(ctx, at, "/bin/ed"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for _, window := range [][2]time.Time{{at, at.Add(time.Hour)}, {at.Add(-time.Hour), at}} {
		got, err := s.Usage(ctx, window[0], window[1])
		if err != nil {
			t.Fatalf("Usage() error = %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("Usage(%v, %v) = %+v, want empty", window[0], window[1], got)
		}
	}
}

func TestOpenMigratesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	legacy, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := legacy.Exec(`CREATE TABLE log (datetime INTEGER NOT NULL, application TEXT NOT NULL)`); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if _, err := legacy.Exec(`INSERT INTO log (datetime, application) VALUES (?, ?)`, int64(100), "/bin/old"); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if err := legacy.Close(); err != nil {
		t.Fatalf("close legacy db: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ok, err := s.hasColumn(context.Background(), "log", "launch_id")
	if err != nil || !ok {
		t.Fatalf("hasColumn(launch_id) = %v, %v; want true", ok, err)
	}
	got, err := s.Usage(context.Background(), time.Unix(0, 0), time.Unix(200, 0))
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if len(got) != 1 || got[0].Application != "/bin/old" {
		t.Fatalf("legacy rows lost: %+v", got)
	}

	// Reopening an up-to-date database is a no-op.
	if err := s.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("Open(\"\") expected error")
	}
}
