// Package db keeps the sample history in sqlite.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/store"
)

type DB struct {
	*sql.DB
	path string
}

// Open opens the database at path and brings its schema up to date.
// Use ":memory:" in tests.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; a shared in-memory database must also stay on one connection
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

const sampleColumns = `seq, published_at_ns, pm1_0, pm2_5, pm10,
	particles_0_3um, particles_0_5um, particles_1_0um,
	particles_2_5um, particles_5_0um, particles_10um`

// RecordSample appends one published snapshot.
func (db *DB) RecordSample(snap store.Snapshot) error {
	s := snap.Sample
	_, err := db.Exec(
		`INSERT INTO samples (`+sampleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Seq, snap.PublishedAt.UnixNano(), s.PM1_0, s.PM2_5, s.PM10,
		s.Particles0_3um, s.Particles0_5um, s.Particles1_0um,
		s.Particles2_5um, s.Particles5_0um, s.Particles10um,
	)
	if err != nil {
		return fmt.Errorf("record sample %d: %w", snap.Seq, err)
	}
	return nil
}

// Record lets the database act as a recorder sink.
func (db *DB) Record(snap store.Snapshot) error { return db.RecordSample(snap) }

// RecentSamples returns up to limit samples, newest first.
func (db *DB) RecentSamples(limit int) ([]store.Snapshot, error) {
	rows, err := db.Query(
		`SELECT `+sampleColumns+` FROM samples ORDER BY published_at_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanSamples(rows)
}

// SamplesSince returns every sample published at or after t, oldest first.
func (db *DB) SamplesSince(t time.Time) ([]store.Snapshot, error) {
	rows, err := db.Query(
		`SELECT `+sampleColumns+` FROM samples WHERE published_at_ns >= ? ORDER BY published_at_ns, rowid`,
		t.UnixNano())
	if err != nil {
		return nil, err
	}
	return scanSamples(rows)
}

// PruneBefore deletes samples published before t and reports how many
// went.
func (db *DB) PruneBefore(t time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM samples WHERE published_at_ns < ?`, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune samples: %w", err)
	}
	return res.RowsAffected()
}

// CountSamples returns the number of stored samples.
func (db *DB) CountSamples() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n)
	return n, err
}

func scanSamples(rows *sql.Rows) ([]store.Snapshot, error) {
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		var (
			snap store.Snapshot
			ns   int64
			s    pms.Sample
		)
		if err := rows.Scan(
			&snap.Seq, &ns, &s.PM1_0, &s.PM2_5, &s.PM10,
			&s.Particles0_3um, &s.Particles0_5um, &s.Particles1_0um,
			&s.Particles2_5um, &s.Particles5_0um, &s.Particles10um,
		); err != nil {
			return nil, err
		}
		snap.PublishedAt = time.Unix(0, ns).UTC()
		snap.Sample = s
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
