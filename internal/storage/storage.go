// Package storage persists observations and the report log in a single
// embedded SQLite database file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openwaters/crowd-depth/internal/domain"
)

// migrations is the ordered, append-only list of schema steps. The persisted
// PRAGMA user_version records how many have been applied; each step runs in
// a transaction that also advances the version, so a step is never partially
// applied and never reapplied. Editing or reordering a shipped step corrupts
// already-migrated databases, so only ever append.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bathymetry(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		longitude REAL NOT NULL,
		latitude REAL NOT NULL,
		depth REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		heading REAL
	);
	CREATE INDEX IF NOT EXISTS idx_bathymetry_timestamp ON bathymetry(timestamp);
	CREATE INDEX IF NOT EXISTS idx_bathymetry_location ON bathymetry(latitude, longitude);`,

	`CREATE TABLE reports(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fromTimestamp INTEGER NOT NULL,
		toTimestamp INTEGER NOT NULL
	);`,
}

// Store wraps the embedded database. A single Store is shared by the
// reporter and the local source; all mutations go through its own
// per-statement transaction boundaries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, enables WAL
// durability, and applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version < 0 || version > len(migrations) {
		return fmt.Errorf("unknown schema version %d (have %d migrations)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
		// PRAGMA cannot be parameterized; i+1 is a trusted loop index.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("advance schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i, err)
		}
	}
	return nil
}

// Insert records one observation. Observations are append-only.
func (s *Store) Insert(ctx context.Context, o domain.Observation) error {
	var heading sql.NullFloat64
	if o.Heading != nil {
		heading = sql.NullFloat64{Float64: *o.Heading, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bathymetry(longitude, latitude, depth, timestamp, heading) VALUES(?, ?, ?, ?, ?)`,
		o.Longitude, o.Latitude, o.Depth, o.Timestamp.UnixMilli(), heading,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// Select streams observations inside the half-open window [From, To) in
// ascending timestamp order. The errs channel carries at most one error,
// delivered before the observation channel closes. Cancel ctx to abort the
// scan early.
func (s *Store) Select(ctx context.Context, tf domain.Timeframe) (<-chan domain.Observation, <-chan error) {
	out := make(chan domain.Observation)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		rows, err := s.db.QueryContext(ctx,
			`SELECT longitude, latitude, depth, timestamp, heading
			 FROM bathymetry
			 WHERE timestamp >= ? AND timestamp < ?
			 ORDER BY timestamp ASC`,
			tf.From.UnixMilli(), tf.To.UnixMilli(),
		)
		if err != nil {
			errs <- fmt.Errorf("select observations: %w", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				o       domain.Observation
				millis  int64
				heading sql.NullFloat64
			)
			if err := rows.Scan(&o.Longitude, &o.Latitude, &o.Depth, &millis, &heading); err != nil {
				errs <- fmt.Errorf("scan observation: %w", err)
				return
			}
			o.Timestamp = time.UnixMilli(millis).UTC()
			if heading.Valid {
				h := heading.Float64
				o.Heading = &h
			}

			select {
			case out <- o:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := rows.Err(); err != nil {
			errs <- fmt.Errorf("iterate observations: %w", err)
		}
	}()

	return out, errs
}

// AppendReport logs a successfully submitted report window. The log is
// append-only; rows are never mutated or deleted.
func (s *Store) AppendReport(ctx context.Context, tf domain.Timeframe) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports(fromTimestamp, toTimestamp) VALUES(?, ?)`,
		tf.From.UnixMilli(), tf.To.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

// LastReportTime returns the watermark: the maximum toTimestamp across all
// logged reports. ok is false when no report has ever been logged.
func (s *Store) LastReportTime(ctx context.Context) (t time.Time, ok bool, err error) {
	var millis sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(toTimestamp) FROM reports`).Scan(&millis); err != nil {
		return time.Time{}, false, fmt.Errorf("read last report time: %w", err)
	}
	if !millis.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(millis.Int64).UTC(), true, nil
}
