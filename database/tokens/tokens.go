// SPDX-License-Identifier: ice License 1.0

package tokens

import (
	"context"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Issue generates a new random token for userID. A zero ttl never expires.
func (db *Client) Issue(ctx context.Context, userID string, ttl stdlibtime.Duration) (string, error) {
	token := uuid.NewString()

	return token, db.Store(ctx, token, userID, ttl)
}

// Store binds token to userID, replacing whatever it was bound to before.
func (db *Client) Store(ctx context.Context, token, userID string, ttl stdlibtime.Duration) error {
	if token == "" || userID == "" {
		return errors.New("token and user id are required")
	}
	now := stdlibtime.Now()
	row := &Token{Token: token, UserID: userID, CreatedAt: now.UnixNano()}
	if ttl > 0 {
		row.ExpiresAt = now.Add(ttl).UnixNano()
	}
	if _, err := db.exec(ctx, sqlInsert, row); err != nil {
		return errors.Wrapf(err, "failed to store token of %v", userID)
	}

	return nil
}

// UserID returns ErrNotFound for unknown and expired tokens alike.
func (db *Client) UserID(ctx context.Context, token string) (string, error) {
	var userID string
	if err := db.get(ctx, sqlSelectUser, &userID, map[string]any{"token": token, "now": stdlibtime.Now().UnixNano()}); err != nil {
		return "", err
	}

	return userID, nil
}

func (db *Client) Revoke(ctx context.Context, token string) (bool, error) {
	affected, err := db.exec(ctx, sqlDelete, map[string]any{"token": token})

	return affected > 0, err
}

func (db *Client) RevokeUser(ctx context.Context, userID string) (int64, error) {
	return db.exec(ctx, sqlDeleteUser, map[string]any{"user_id": userID})
}

func (db *Client) PurgeExpired(ctx context.Context) (int64, error) {
	return db.exec(ctx, sqlDeleteExpire, map[string]any{"now": stdlibtime.Now().UnixNano()})
}
