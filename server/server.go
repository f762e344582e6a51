// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"log"

	"github.com/ice-blockchain/pushgate/registry"
	httpserver "github.com/ice-blockchain/pushgate/server/http"
	wsserver "github.com/ice-blockchain/pushgate/server/ws"
)

// NewRoutes resolves every configured websocket route against deps and adds the http push and status endpoints.
func NewRoutes(cfg *Config, deps *Dependencies) (*Routes, error) {
	routes := make([]wsserver.Route, 0, len(cfg.Routes))
	declared := cfg.Routes
	if len(declared) == 0 {
		declared = DefaultRoutes
	}
	hooks := wsserver.Hooks{Authenticator: deps.Authenticator, Subscriptions: deps.Subscriptions, Messages: deps.Messages}
	for _, route := range declared {
		routes = append(routes, wsserver.Route{Path: route.Path, Factory: handlerFactory(hooks, route.HeartbeatEnabled)})
	}
	wsRouter, err := wsserver.NewRouter(&cfg.WS, deps.Registry, routes...)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	return &Routes{ws: wsRouter, deps: deps, pushAPIKey: cfg.WS.PushAPIKey}, nil
}

func handlerFactory(hooks wsserver.Hooks, heartbeatEnabled bool) wsserver.Factory {
	return func(reg *registry.Registry) *wsserver.Handler {
		return wsserver.NewHandler(reg, hooks, heartbeatEnabled)
	}
}

func (r *Routes) WS() *wsserver.HandlerRouter {
	return r.ws
}

func (r *Routes) RegisterRoutes(ctx context.Context, router *wsserver.Router) {
	r.ws.RegisterRoutes(ctx, router)
	router.GET(statusPath, httpserver.NewStatusHandler(r.deps.Registry))
	if r.pushAPIKey == "" {
		log.Printf("WARN: %v is disabled, no push api key configured", pushPath)

		return
	}
	router.POST(pushPath, httpserver.NewPushHandler(r.deps.Gateway, r.pushAPIKey))
}

// ListenAndServe blocks until ctx is done or the process is signalled to stop.
func ListenAndServe(ctx context.Context, cancel context.CancelFunc, cfg *Config, deps *Dependencies) error {
	routes, err := NewRoutes(cfg, deps)
	if err != nil {
		return err
	}
	log.Printf("INFO: serving websocket routes %v", routes.ws.Paths())
	wsserver.New(&cfg.WS, routes).ListenAndServe(ctx, cancel)

	return nil
}
