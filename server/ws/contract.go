// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/ice-blockchain/pushgate/model"
	"github.com/ice-blockchain/pushgate/registry"
	"github.com/ice-blockchain/pushgate/server/ws/internal"
	"github.com/ice-blockchain/pushgate/server/ws/internal/adapters"
	"github.com/ice-blockchain/pushgate/server/ws/internal/config"
)

type (
	Router = internal.Router
	Server = internal.Server
	Config = config.Config
	Conn   = adapters.WS

	// Authenticator resolves the user behind an upgrade request. An empty userID is treated as unauthenticated.
	Authenticator interface {
		Authenticate(ctx context.Context, req *http.Request) (userID string, err error)
	}
	SubscriptionHandler interface {
		Subscribe(ctx context.Context, session *Session, key string) error
		Unsubscribe(ctx context.Context, session *Session, key string) error
	}
	MessageHandler interface {
		HandleMessage(ctx context.Context, session *Session, msg *model.Envelope) error
	}
	Hooks struct {
		Authenticator Authenticator
		Subscriptions SubscriptionHandler
		Messages      MessageHandler
	}
	Factory func(reg *registry.Registry) *Handler
	Route   struct {
		Factory Factory
		Path    string
	}
	State int32
)

type (
	Handler struct {
		hooks            Hooks
		registry         *registry.Registry
		heartbeatEnabled bool
	}
	Session struct {
		conn       Conn
		handler    *Handler
		connection atomic.Pointer[registry.Connection]
		closeOnce  sync.Once
		state      atomic.Int32
	}
	HandlerRouter struct {
		handlers map[string]*Handler
		cfg      *Config
		paths    []string
	}
	registrySubscriptions struct {
		registry *registry.Registry
	}
	noopMessages struct{}
)

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

const (
	ReasonAuthenticationFailed = "Authentication failed"
	ReasonKeyRequired          = "Subscription key is required"
	ReasonTypeRequired         = "Message type is required"
	reasonInvalidFormat        = "Invalid message format: "
	subscribedAck              = "Subscribed to "
)

var ErrDuplicateRoute = errors.New("duplicate route")
