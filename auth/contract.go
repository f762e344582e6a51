// SPDX-License-Identifier: ice License 1.0

package auth

import (
	"context"
	"sync/atomic"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
)

type (
	// TokenStore resolves a token to the user it was issued to.
	// Unknown tokens are reported with an error wrapping ErrUnauthenticated.
	TokenStore interface {
		UserID(ctx context.Context, token string) (string, error)
	}
	Authenticator struct {
		static *Static
		stores []TokenStore
	}
	Static struct {
		tokens atomic.Pointer[map[string]string]
	}
	Redis struct {
		client      *redis.Client
		keyPrefix   string
		userIDField string
		tokenTTL    stdlibtime.Duration
	}
	StaticToken struct {
		Token  string `yaml:"token"`
		UserID string `yaml:"userId"`
	}
	RedisConfig struct {
		URL         string              `yaml:"url"`
		KeyPrefix   string              `yaml:"keyPrefix"`
		UserIDField string              `yaml:"userIdField"`
		TokenTTL    stdlibtime.Duration `yaml:"tokenTTL"`
	}
	Config struct {
		Database     string        `yaml:"database"`
		Redis        RedisConfig   `yaml:"redis"`
		StaticTokens []StaticToken `yaml:"staticTokens"`
	}
)

var ErrUnauthenticated = errors.New("unauthenticated")

const (
	DefaultKeyPrefix   = "token:"
	DefaultTokenTTL    = 7 * 24 * stdlibtime.Hour
	defaultUserIDField = "id"
	tokenQueryParam    = "token"
	bearerPrefix       = "bearer "
)
