// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/ice-blockchain/pushgate/model"
	"github.com/ice-blockchain/pushgate/registry"
	"github.com/ice-blockchain/pushgate/server/ws/internal"
)

func New(cfg *Config, routes internal.RegisterRoutes) Server {
	return internal.NewWSServer(routes, cfg)
}

// NewHandler builds the session loop of a single route.
// Subscriptions default to the registry itself and inbound MESSAGE frames are dropped unless hooks say otherwise.
func NewHandler(reg *registry.Registry, hooks Hooks, heartbeatEnabled bool) *Handler {
	if hooks.Authenticator == nil {
		log.Panic("authenticator is required")
	}
	if hooks.Subscriptions == nil {
		hooks.Subscriptions = &registrySubscriptions{registry: reg}
	}
	if hooks.Messages == nil {
		hooks.Messages = new(noopMessages)
	}

	return &Handler{registry: reg, hooks: hooks, heartbeatEnabled: heartbeatEnabled}
}

func (h *Handler) Registry() *registry.Registry {
	return h.registry
}

func (h *Handler) HeartbeatEnabled() bool {
	return h.heartbeatEnabled
}

// Read runs a whole session on conn and returns once it is closed.
func (h *Handler) Read(ctx context.Context, req *http.Request, conn Conn) {
	s := h.newSession(conn)
	defer s.Close()
	if !s.authenticate(ctx, req) {
		return
	}
	s.serve(ctx)
}

func (r *registrySubscriptions) Subscribe(_ context.Context, session *Session, key string) error {
	r.registry.Subscribe(session.UserID(), key)

	return nil
}

func (r *registrySubscriptions) Unsubscribe(_ context.Context, session *Session, key string) error {
	r.registry.Unsubscribe(session.UserID(), key)

	return nil
}

func (*noopMessages) HandleMessage(context.Context, *Session, *model.Envelope) error {
	return nil
}
