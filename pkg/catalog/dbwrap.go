package catalog

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

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DBWrap is the part of *sql.DB the catalog uses. Queries are written with
// "?" placeholders and rebound for the driver.
type DBWrap interface {
	BeginTx(context.Context, *sql.TxOptions) (TXWrap, error)
	Close() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	Stats() sql.DBStats
}

type dbWrap struct {
	log      *log.Entry
	backend  *sql.DB
	dollarPH bool // Postgres style $1 placeholders.
}

// rebind turns "?" placeholders into "$1", "$2"... if the driver wants that.
func rebind(dollar bool, query string) string {
	if !dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (db *dbWrap) BeginTx(ctx context.Context, o *sql.TxOptions) (TXWrap, error) {
	tx, err := db.backend.BeginTx(ctx, o)
	if err != nil {
		return nil, err
	}
	db.log.Debugf("SQL:BeginTx")
	return &txWrap{
		backend:  tx,
		log:      db.log,
		dollarPH: db.dollarPH,
	}, nil
}

func (db *dbWrap) Close() error {
	return db.backend.Close()
}

func (db *dbWrap) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	query = rebind(db.dollarPH, query)
	db.log.Debugf("SQL:Exec> %q %q", query, args)
	return db.backend.ExecContext(ctx, query, args...)
}

func (db *dbWrap) PingContext(ctx context.Context) error {
	db.log.Debugf("SQL:Ping")
	return db.backend.PingContext(ctx)
}

func (db *dbWrap) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	query = rebind(db.dollarPH, query)
	db.log.Debugf("SQL:Query> %q %q", query, args)
	return db.backend.QueryContext(ctx, query, args...)
}

func (db *dbWrap) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	query = rebind(db.dollarPH, query)
	db.log.Debugf("SQL:QueryRow> %q %q", query, args)
	return db.backend.QueryRowContext(ctx, query, args...)
}

func (db *dbWrap) Stats() sql.DBStats {
	return db.backend.Stats()
}

type TXWrap interface {
	Commit() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	Rollback() error
}

type txWrap struct {
	log      *log.Entry
	backend  *sql.Tx
	dollarPH bool
}

func (tx *txWrap) Commit() error {
	tx.log.Debugf("SQL:TX:Commit")
	return tx.backend.Commit()
}

func (tx *txWrap) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	query = rebind(tx.dollarPH, query)
	tx.log.Debugf("SQL:TX:Exec> %q %q", query, args)
	return tx.backend.ExecContext(ctx, query, args...)
}

func (tx *txWrap) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	query = rebind(tx.dollarPH, query)
	tx.log.Debugf("SQL:TX:QueryRow> %q %q", query, args)
	return tx.backend.QueryRowContext(ctx, query, args...)
}

func (tx *txWrap) Rollback() error {
	tx.log.Debugf("SQL:TX:Rollback")
	return tx.backend.Rollback()
}

// NewDBWrap wraps db, logging every statement at debug level.
func NewDBWrap(db *sql.DB, driver string, logger *log.Entry) DBWrap {
	return &dbWrap{
		backend:  db,
		log:      logger,
		dollarPH: driver == DriverPostgres,
	}
}
