// Package catalog records which assets have been decoded, in an SQL database.
//
// QAsset
//
// Copyright (C) Thomas Habets <thomas@habets.se> 2015
// https://github.com/ThomasHabets/qasset
//
//   This program is free software; you can redistribute it and/or modify
//   it under the terms of the GNU General Public License as published by
//   the Free Software Foundation; either version 2 of the License, or
//   (at your option) any later version.
//
//   This program is distributed in the hope that it will be useful,
//   but WITHOUT ANY WARRANTY; without even the implied warranty of
//   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//   GNU General Public License for more details.
//
//   You should have received a copy of the GNU General Public License along
//   with this program; if not, write to the Free Software Foundation, Inc.,
//   51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
//
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ThomasHabets/qasset/pkg/asset"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS imports(
  import_id TEXT PRIMARY KEY,
  source    TEXT NOT NULL,
  created   BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS assets(
  asset_id  TEXT PRIMARY KEY,
  import_id TEXT NOT NULL REFERENCES imports(import_id),
  name      TEXT NOT NULL,
  format    TEXT NOT NULL,
  size      BIGINT NOT NULL,
  summary   TEXT NOT NULL,
  error     TEXT NOT NULL,
  created   BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS assets_import ON assets(import_id)`,
}

// Catalog is an open asset catalog. Safe for concurrent use.
type Catalog struct {
	db DBWrap
}

// ValidDriver returns true for the supported database drivers.
func ValidDriver(driver string) bool {
	return driver == DriverPostgres || driver == DriverSQLite
}

// Open connects to the database. Call Migrate before first use.
func Open(ctx context.Context, driver, dsn string) (*Catalog, error) {
	if !ValidDriver(driver) {
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	if driver == DriverSQLite {
		// One writer at a time, and in-memory databases are per connection.
		db.SetMaxOpenConns(1)
	}
	w := NewDBWrap(db, driver, log.WithField("db", driver))
	if err := w.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s database", driver)
	}
	return &Catalog{db: w}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Migrate creates the tables if they don't exist.
func (c *Catalog) Migrate(ctx context.Context) error {
	for _, s := range schema {
		if _, err := c.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "creating schema")
		}
	}
	return nil
}

// RecordImport starts a new import of assets from source, and returns its ID.
func (c *Catalog) RecordImport(ctx context.Context, source string) (string, error) {
	id := uuid.New().String()
	if _, err := c.db.ExecContext(ctx, `INSERT INTO imports(import_id, source, created) VALUES(?, ?, ?)`, id, source, time.Now().Unix()); err != nil {
		return "", errors.Wrapf(err, "recording import of %q", source)
	}
	return id, nil
}

// RecordAsset records the outcome of decoding one asset. If decodeErr is set
// then s only needs Name, Format and Size.
func (c *Catalog) RecordAsset(ctx context.Context, importID string, s *asset.Summary, decodeErr error) (string, error) {
	summary := "{}"
	if decodeErr == nil {
		p, err := s.Proto()
		if err != nil {
			return "", errors.Wrapf(err, "converting summary of %q", s.Name)
		}
		if summary, err = (&jsonpb.Marshaler{}).MarshalToString(p); err != nil {
			return "", errors.Wrapf(err, "marshalling summary of %q", s.Name)
		}
	}
	errStr := ""
	if decodeErr != nil {
		errStr = decodeErr.Error()
	}

	id := uuid.New().String()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM imports WHERE import_id=?`, importID).Scan(&n); err != nil {
		return "", errors.Wrapf(err, "looking up import %q", importID)
	}
	if n != 1 {
		return "", errors.Errorf("unknown import %q", importID)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO assets(asset_id, import_id, name, format, size, summary, error, created)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		id, importID, s.Name, s.Format.String(), s.Size, summary, errStr, time.Now().Unix()); err != nil {
		return "", errors.Wrapf(err, "recording asset %q", s.Name)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Row is one recorded asset.
type Row struct {
	ID       string
	ImportID string
	Name     string
	Format   string
	Size     int64
	Summary  string // JSON.
	Error    string // Empty if decoding succeeded.
	Created  time.Time
}

// ListAssets returns the assets of an import, sorted by name.
func (c *Catalog) ListAssets(ctx context.Context, importID string) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT asset_id, import_id, name, format, size, summary, error, created
FROM assets
WHERE import_id=?
ORDER BY name`, importID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing import %q", importID)
	}
	defer rows.Close()
	var ret []Row
	for rows.Next() {
		var r Row
		var created int64
		if err := rows.Scan(&r.ID, &r.ImportID, &r.Name, &r.Format, &r.Size, &r.Summary, &r.Error, &created); err != nil {
			return nil, err
		}
		r.Created = time.Unix(created, 0)
		ret = append(ret, r)
	}
	return ret, rows.Err()
}
