// Package store persists code unit fingerprints and executed ranges in a
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/chazu/codeprint/codeunit"
	"github.com/chazu/codeprint/coverage"
	"github.com/chazu/codeprint/fingerprint"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var schema = []string{`
CREATE TABLE IF NOT EXISTS units (
	fingerprint  INTEGER NOT NULL,
	code         TEXT    NOT NULL,
	source_id    INTEGER NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	kind         INTEGER NOT NULL,
	name         TEXT    NOT NULL DEFAULT '',
	invocations  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source_id, start_offset, end_offset, kind)
)`,
	`CREATE INDEX IF NOT EXISTS idx_units_code ON units(code)`,
	`
CREATE TABLE IF NOT EXISTS ranges (
	source_id    INTEGER NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	executed     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source_id, start_offset, end_offset)
)`,
}

// UnitRecord is a persisted code unit.
type UnitRecord struct {
	Fingerprint fingerprint.Fingerprint
	Code        string
	Source      coverage.SourceID
	Start       uint32
	End         uint32
	Kind        fingerprint.Kind
	Name        string
	Invocations uint64
}

// Store is a SQLite-backed record of units and ranges.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. MemoryPath gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: initialize schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRanges upserts every range of the snapshot. A stored executed flag
// is never cleared.
func (s *Store) SaveRanges(ctx context.Context, snap *coverage.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranges (source_id, start_offset, end_offset, executed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_id, start_offset, end_offset)
		DO UPDATE SET executed = MAX(executed, excluded.executed)`)
	if err != nil {
		return fmt.Errorf("store: prepare range upsert: %w", err)
	}
	defer stmt.Close()

	for _, src := range snap.Sources {
		for _, r := range src.Ranges {
			if _, err := stmt.ExecContext(ctx, int64(src.ID), r.Start, r.End, boolInt(r.Executed)); err != nil {
				return fmt.Errorf("store: save range [%d,%d] of source %d: %w", r.Start, r.End, src.ID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit ranges: %w", err)
	}
	return nil
}

// LoadRanges reads every stored range into a snapshot ordered by source ID
// and then by insertion.
func (s *Store) LoadRanges(ctx context.Context) (*coverage.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, start_offset, end_offset, executed
		FROM ranges ORDER BY source_id, rowid`)
	if err != nil {
		return nil, fmt.Errorf("store: query ranges: %w", err)
	}
	defer rows.Close()

	snap := &coverage.Snapshot{Version: coverage.SnapshotVersion}
	for rows.Next() {
		var (
			id         int64
			start, end uint32
			executed   int
		)
		if err := rows.Scan(&id, &start, &end, &executed); err != nil {
			return nil, fmt.Errorf("store: scan range: %w", err)
		}
		sid := coverage.SourceID(id)
		n := len(snap.Sources)
		if n == 0 || snap.Sources[n-1].ID != sid {
			snap.Sources = append(snap.Sources, coverage.SourceSnapshot{ID: sid})
			n++
		}
		snap.Sources[n-1].Ranges = append(snap.Sources[n-1].Ranges, coverage.ExecutedRange{
			Start:    start,
			End:      end,
			Executed: executed != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate ranges: %w", err)
	}

	// Source IDs are stored as signed integers; restore unsigned order.
	sort.SliceStable(snap.Sources, func(i, j int) bool {
		return snap.Sources[i].ID < snap.Sources[j].ID
	})
	return snap, nil
}

// SaveUnits upserts the given units. Invocation counts only grow.
func (s *Store) SaveUnits(ctx context.Context, units []*codeunit.CodeUnit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units (fingerprint, code, source_id, start_offset, end_offset, kind, name, invocations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, start_offset, end_offset, kind)
		DO UPDATE SET
			fingerprint = excluded.fingerprint,
			code        = excluded.code,
			name        = excluded.name,
			invocations = MAX(invocations, excluded.invocations)`)
	if err != nil {
		return fmt.Errorf("store: prepare unit upsert: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		r := u.Range()
		_, err := stmt.ExecContext(ctx,
			int64(u.Fingerprint()), u.Code(), int64(u.Source()),
			r.Start, r.End, int(u.Kind()), u.Name(), int64(u.Invocations()))
		if err != nil {
			return fmt.Errorf("store: save unit %s: %w", u.Code(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit units: %w", err)
	}
	return nil
}

// Units returns every stored unit ordered by fingerprint.
func (s *Store) Units(ctx context.Context) ([]UnitRecord, error) {
	return s.queryUnits(ctx, `
		SELECT fingerprint, code, source_id, start_offset, end_offset, kind, name, invocations
		FROM units ORDER BY fingerprint, source_id, start_offset, kind`)
}

// UnitsByCode returns the stored units whose six-character code is code.
func (s *Store) UnitsByCode(ctx context.Context, code string) ([]UnitRecord, error) {
	if _, err := fingerprint.Decode(code); err != nil {
		return nil, err
	}
	return s.queryUnits(ctx, `
		SELECT fingerprint, code, source_id, start_offset, end_offset, kind, name, invocations
		FROM units WHERE code = ? ORDER BY source_id, start_offset, kind`, code)
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query units: %w", err)
	}
	defer rows.Close()

	var out []UnitRecord
	for rows.Next() {
		var (
			rec         UnitRecord
			fp, id, inv int64
			kind        int
		)
		if err := rows.Scan(&fp, &rec.Code, &id, &rec.Start, &rec.End, &kind, &rec.Name, &inv); err != nil {
			return nil, fmt.Errorf("store: scan unit: %w", err)
		}
		rec.Fingerprint = fingerprint.Fingerprint(fp)
		rec.Source = coverage.SourceID(id)
		rec.Kind = fingerprint.Kind(kind)
		rec.Invocations = uint64(inv)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate units: %w", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
