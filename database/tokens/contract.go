// SPDX-License-Identifier: ice License 1.0

package tokens

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

type (
	Token struct {
		Token     string `db:"token"`
		UserID    string `db:"user_id"`
		CreatedAt int64  `db:"created_at"`
		ExpiresAt int64  `db:"expires_at"`
	}
	// Client is a sqlite backed token store: token -> user.
	Client struct {
		*sqlx.DB

		stmtCacheMx *sync.RWMutex
		stmtCache   map[string]*sqlx.NamedStmt
	}
)

var ErrNotFound = errors.New("token not found")

const (
	sqlInsert = `insert into tokens (token, user_id, created_at, expires_at)
values (:token, :user_id, :created_at, :expires_at)
on conflict (token) do update set user_id = excluded.user_id, created_at = excluded.created_at, expires_at = excluded.expires_at`
	sqlSelectUser = `select user_id from tokens
where token = :token and (expires_at = 0 or expires_at > :now)`
	sqlDelete       = `delete from tokens where token = :token`
	sqlDeleteUser   = `delete from tokens where user_id = :user_id`
	sqlDeleteExpire = `delete from tokens where expires_at != 0 and expires_at <= :now`
)
