// SPDX-License-Identifier: ice License 1.0

package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"

	"github.com/ice-blockchain/pushgate/database/tokens"
)

// New builds an authenticator that asks static first and then every store in order until one knows the token.
func New(static *Static, stores ...TokenStore) *Authenticator {
	if static == nil {
		static = NewStatic()
	}

	return &Authenticator{static: static, stores: append([]TokenStore{static}, stores...)}
}

// FromConfig wires every token store cfg enables. The returned func releases them.
func FromConfig(ctx context.Context, cfg *Config) (*Authenticator, func() error, error) {
	var (
		stores  []TokenStore
		closers []func() error
	)
	closeAll := func() error {
		var mErr *multierror.Error
		for _, closer := range closers {
			mErr = multierror.Append(mErr, closer())
		}

		return mErr.ErrorOrNil() //nolint:wrapcheck // Already wrapped.
	}
	if cfg.Database != "" {
		db, err := tokens.Open(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		stores, closers = append(stores, db), append(closers, db.Close)
	}
	if cfg.Redis.URL != "" {
		rdb, err := NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, multierror.Append(err, closeAll()).ErrorOrNil()
		}
		stores, closers = append(stores, rdb), append(closers, rdb.Close)
	}
	log.Printf("INFO: authenticating with %v static token(s) and %v token store(s)", len(cfg.StaticTokens), len(stores))

	return New(NewStatic(cfg.StaticTokens...), stores...), closeAll, nil
}

func (a *Authenticator) Static() *Static {
	return a.static
}

func (a *Authenticator) Authenticate(ctx context.Context, req *http.Request) (string, error) {
	token := ExtractToken(req)
	if token == "" {
		return "", errors.Wrap(ErrUnauthenticated, "no token provided")
	}
	var mErr *multierror.Error
	for _, store := range a.stores {
		userID, err := store.UserID(ctx, token)
		if err == nil && userID != "" {
			return userID, nil
		}
		if err != nil && !isUnknownToken(err) {
			mErr = multierror.Append(mErr, err)
		}
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return "", errors.Wrapf(ErrUnauthenticated, "token lookup failed: %v", err)
	}

	return "", errors.Wrap(ErrUnauthenticated, "unknown token")
}

// ExtractToken reads the `token` query parameter, falling back to an `Authorization: Bearer` header.
func ExtractToken(req *http.Request) string {
	if token := strings.TrimSpace(req.URL.Query().Get(tokenQueryParam)); token != "" {
		return token
	}
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}

	return ""
}

func isUnknownToken(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, tokens.ErrNotFound)
}
