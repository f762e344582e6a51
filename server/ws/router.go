// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"context"
	"log"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ice-blockchain/pushgate/registry"
	"github.com/ice-blockchain/pushgate/server/ws/internal"
)

// NewRouter builds every handler of routes once. A path declared twice is won by the later declaration,
// unless cfg.StrictRoutes is set, then it is rejected with ErrDuplicateRoute.
func NewRouter(cfg *Config, reg *registry.Registry, routes ...Route) (*HandlerRouter, error) {
	if cfg == nil {
		cfg = new(Config)
	}
	r := &HandlerRouter{handlers: make(map[string]*Handler, len(routes)), cfg: cfg}
	for _, route := range routes {
		if route.Factory == nil {
			return nil, errors.Errorf("route %v has no factory", route.Path)
		}
		if _, found := r.handlers[route.Path]; found {
			if cfg.StrictRoutes {
				return nil, errors.Wrapf(ErrDuplicateRoute, "path %v", route.Path)
			}
			log.Printf("WARN: route %v is declared more than once, the last declaration wins", route.Path)
		}
		r.handlers[route.Path] = route.Factory(reg)
	}
	r.paths = make([]string, 0, len(r.handlers))
	for path := range r.handlers {
		r.paths = append(r.paths, path)
	}
	sort.Strings(r.paths)

	return r, nil
}

func (r *HandlerRouter) Lookup(path string) (*Handler, bool) {
	h, found := r.handlers[path]

	return h, found
}

func (r *HandlerRouter) Paths() []string {
	return append([]string(nil), r.paths...)
}

// RegisterRoutes mounts every handler as a websocket endpoint. Unknown paths never get upgraded.
func (r *HandlerRouter) RegisterRoutes(ctx context.Context, router *Router) {
	for _, path := range r.paths {
		router.GET(path, internal.WithWS(ctx, r.handlers[path], r.cfg))
	}
}
