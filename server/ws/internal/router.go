// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"log"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"

	"github.com/ice-blockchain/pushgate/server/ws/internal/adapters"
	"github.com/ice-blockchain/pushgate/server/ws/internal/config"
)

// WithWS upgrades the request and hands the connection over to wsHandler on its own goroutine.
// The connection is closed when the handler returns or ctx (the server's) is done, whichever happens first.
func WithWS(ctx context.Context, wsHandler WSHandler, cfg *config.Config) gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		req := ginCtx.Request
		conn, rw, _, err := ws.UpgradeHTTP(req, ginCtx.Writer)
		if err != nil {
			log.Printf("WARN: websocket upgrade of %v from %v failed: %v", req.URL.Path, ginCtx.ClientIP(), err)

			return
		}
		if rw != nil && rw.Reader.Buffered() > 0 {
			conn = &bufferedConn{Conn: conn, reader: rw.Reader}
		}
		wsocket, wsCtx := adapters.NewWebSocketAdapter(ctx, conn, cfg.ReadTimeout, cfg.WriteTimeout, cfg.OutboundBufferSize)
		go func() {
			defer func() {
				if clErr := wsocket.Close(); clErr != nil {
					log.Printf("ERROR:%v", errors.Wrap(clErr, "failed to close websocket conn"))
				}
			}()
			go wsocket.Write(wsCtx)
			go closeOnShutdown(ctx, wsCtx, wsocket)
			wsHandler.Read(wsCtx, req, wsocket)
		}()
	}
}

func closeOnShutdown(serverCtx, wsCtx context.Context, wsocket adapters.WS) {
	select {
	case <-wsCtx.Done():
	case <-serverCtx.Done():
		if err := wsocket.Close(); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to close websocket %v on shutdown", wsocket.SessionID()))
		}
	}
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p) //nolint:wrapcheck // Transparent wrapper.
}

var _ net.Conn = (*bufferedConn)(nil)
