// SPDX-License-Identifier: ice License 1.0

package tokens

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	_ "github.com/mattn/go-sqlite3"
)

var (
	//go:embed DDL.sql
	ddl string
)

// Open connects to the sqlite database at target (":memory:" when empty) and makes sure the schema exists.
func Open(target string) (*Client, error) {
	if target == "" {
		target = ":memory:"
	}
	db, err := sqlx.Connect("sqlite3", target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open token database %v", target)
	}
	if target == ":memory:" {
		// Every pooled connection would get its own empty in-memory database otherwise.
		db.SetMaxOpenConns(1)
	}
	client := &Client{
		DB:          db,
		stmtCacheMx: new(sync.RWMutex),
		stmtCache:   make(map[string]*sqlx.NamedStmt),
	}
	client.Mapper = reflectx.NewMapperFunc("db", strings.ToLower)
	for _, statement := range strings.Split(ddl, "--------") {
		if _, err = client.Exec(statement); err != nil {
			return nil, multierror.Append(errors.Wrapf(err, "failed to apply ddl `%v`", statement), client.DB.Close()).ErrorOrNil()
		}
	}

	return client, nil
}

func MustOpen(target string) *Client {
	client, err := Open(target)
	if err != nil {
		panic(err)
	}

	return client
}

func (db *Client) exec(ctx context.Context, sql string, arg any) (rowsAffected int64, err error) {
	stmt, err := db.prepare(ctx, sql, hashSQL(sql))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to prepare exec sql: `%v`", sql)
	}
	result, err := stmt.ExecContext(ctx, arg)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to exec prepared sql: `%v`", sql)
	}
	if rowsAffected, err = result.RowsAffected(); err != nil {
		return 0, errors.Wrapf(err, "failed to process rows affected for exec prepared sql: `%v`", sql)
	}

	return rowsAffected, nil
}

func (db *Client) get(ctx context.Context, query string, dest, arg any) error {
	stmt, err := db.prepare(ctx, query, hashSQL(query))
	if err != nil {
		return errors.Wrapf(err, "failed to prepare query sql: `%v`", query)
	}
	if err = stmt.GetContext(ctx, dest, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}

		return errors.Wrapf(err, "failed to query prepared sql: `%v`", query)
	}

	return nil
}

func (db *Client) prepare(ctx context.Context, sql, hash string) (stmt *sqlx.NamedStmt, err error) {
	db.stmtCacheMx.RLock()
	stmt, found := db.stmtCache[hash]
	db.stmtCacheMx.RUnlock()
	if found {
		return stmt, nil
	}

	db.stmtCacheMx.Lock()
	defer db.stmtCacheMx.Unlock()
	if stmt, found = db.stmtCache[hash]; found {
		return stmt, nil
	}
	if stmt, err = db.PrepareNamedContext(ctx, sql); err == nil {
		db.stmtCache[hash] = stmt
	}

	return stmt, err //nolint:wrapcheck // Wrapped by the callers.
}

func (db *Client) Close() error {
	var mErr *multierror.Error
	db.stmtCacheMx.Lock()
	for hash, stmt := range db.stmtCache {
		mErr = multierror.Append(mErr, stmt.Close())
		delete(db.stmtCache, hash)
	}
	db.stmtCacheMx.Unlock()
	mErr = multierror.Append(mErr, db.DB.Close())

	return errors.Wrap(mErr.ErrorOrNil(), "failed to close token database")
}

func hashSQL(sql string) (hash string) {
	sum := sha256.Sum256([]byte(sql))

	return string(sum[:])
}
