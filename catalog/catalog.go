// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog holds types to describe the catalog database of MDF
// recordings: which files exist, where they live and their basic
// measurement geometry.
package catalog // import "github.com/go-lpc/mdf/catalog"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-lpc/mdf/index"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to register and retrieve MDF recordings
// from the catalog database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the catalog database dbname.
func Open(dbname string) (*DB, error) {
	return OpenWith(drvName, dsn(dbname), dbname)
}

// OpenWith opens a catalog through an explicit database/sql driver and
// DSN.
func OpenWith(driver, dsn, dbname string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("catalog: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("catalog: could not ping %q: %w", dbname, err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Recording describes one catalogued MDF file.
type Recording struct {
	ID          int64
	Path        string
	FileSize    uint64
	StartTimeNS int64
	Groups      int
	Channels    int
}

// FromIndex summarizes an index into a catalog entry for the named file.
func FromIndex(path string, ix *index.Index) Recording {
	rec := Recording{
		Path:        path,
		FileSize:    ix.FileSize,
		StartTimeNS: ix.StartTimeNS,
		Groups:      len(ix.Groups),
	}
	for _, g := range ix.Groups {
		rec.Channels += len(g.Channels)
	}
	return rec
}

// RegisterRecording inserts the recording into the catalog.
func (db *DB) RegisterRecording(ctx context.Context, rec Recording) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`INSERT INTO recordings (path, file_size, start_time_ns, groups_nr, channels_nr)
VALUES (?, ?, ?, ?, ?)`,
		rec.Path, rec.FileSize, rec.StartTimeNS, rec.Groups, rec.Channels,
	)
	if err != nil {
		return fmt.Errorf("catalog: could not register recording %q: %w", rec.Path, err)
	}
	return nil
}

// Recordings returns every catalogued recording, most recent first.
func (db *DB) Recordings(ctx context.Context) ([]Recording, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier, path, file_size, start_time_ns, groups_nr, channels_nr FROM recordings ORDER BY identifier DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: could not query recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		var rec Recording
		err = rows.Scan(&rec.ID, &rec.Path, &rec.FileSize, &rec.StartTimeNS, &rec.Groups, &rec.Channels)
		if err != nil {
			return recs, fmt.Errorf("catalog: could not scan recording: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return recs, fmt.Errorf("catalog: could not scan db for recordings: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return recs, fmt.Errorf("catalog: context error while retrieving recordings: %w", err)
	}

	return recs, nil
}

// LastRecording returns the most recently registered recording.
func (db *DB) LastRecording(ctx context.Context) (Recording, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec Recording
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier, path, file_size, start_time_ns, groups_nr, channels_nr FROM recordings ORDER BY identifier DESC LIMIT 1",
	)
	if err != nil {
		return rec, fmt.Errorf("catalog: could not query last recording: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&rec.ID, &rec.Path, &rec.FileSize, &rec.StartTimeNS, &rec.Groups, &rec.Channels)
		if err != nil {
			return rec, fmt.Errorf("catalog: could not scan last recording: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("catalog: could not scan db for last recording: %w", err)
	}

	return rec, nil
}

// QueryContext runs an arbitrary query against the catalog.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}
