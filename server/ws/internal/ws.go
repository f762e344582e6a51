// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/ice-blockchain/pushgate/server/ws/internal/config"
)

func NewWSServer(routes RegisterRoutes, cfg *config.Config) Server {
	return &srv{cfg: cfg, routesSetup: routes}
}

// NewRouter builds the gin engine with every route mounted; sessions opened through it are closed once ctx is done.
func NewRouter(ctx context.Context, routes RegisterRoutes) *Router {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.RemoteIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}
	router.Use(gin.Recovery())
	routes.RegisterRoutes(ctx, router)

	return router
}

func (s *srv) ListenAndServe(ctx context.Context, cancel context.CancelFunc) {
	s.router = NewRouter(ctx, s.routesSetup)
	s.server = &http.Server{ //nolint:gosec // Header timeout is set, body timeouts are per route.
		Addr:              fmt.Sprintf(":%v", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	quit := make(chan os.Signal, 1)
	s.quit = quit
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go s.startServer()
	s.wait(ctx, quit)
	cancel()
	s.shutDown() //nolint:contextcheck // Nope, we want to gracefully shutdown on a different context.
}

func (s *srv) startServer() {
	defer log.Printf("server stopped listening")
	log.Printf("server started listening on %v...", s.cfg.Port)

	isUnexpectedError := func(err error) bool {
		return err != nil &&
			!errors.Is(err, io.EOF) &&
			!errors.Is(err, http.ErrServerClosed)
	}
	var err error
	if s.cfg.TLS() {
		err = s.server.ListenAndServeTLS(s.cfg.CertPath, s.cfg.KeyPath)
	} else {
		err = s.server.ListenAndServe()
	}
	if isUnexpectedError(err) {
		log.Printf("ERROR:%v", errors.Wrap(err, "server.ListenAndServe failed"))
		s.quit <- syscall.SIGTERM
	}
}

func (*srv) wait(ctx context.Context, quit <-chan os.Signal) {
	select {
	case <-ctx.Done():
	case <-quit:
	}
}

func (s *srv) shutDown() {
	log.Printf("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("ERROR:%v", errors.Wrap(err, "server shutdown failed"))
	} else {
		log.Printf("server shutdown succeeded")
	}
}
