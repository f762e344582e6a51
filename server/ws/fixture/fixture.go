// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/ice-blockchain/pushgate/model"
	"github.com/ice-blockchain/pushgate/server/ws/internal"
)

// NewTestServer serves routes over plain http; the caller closes it.
func NewTestServer(ctx context.Context, routes internal.RegisterRoutes) *httptest.Server {
	return httptest.NewServer(internal.NewRouter(ctx, routes))
}

func WebsocketURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func NewWebsocketClient(ctx context.Context, url string) (Client, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %v", url)
	}
	client := &wsocketClient{
		conn:          conn,
		rw:            conn,
		inputMessages: make(chan []byte, receivedBufferSize),
		readerExited:  make(chan struct{}),
	}
	if br != nil {
		client.rw = struct {
			io.Reader
			io.Writer
		}{br, conn}
	}
	go client.read()

	return client, nil
}

func (c *wsocketClient) read() {
	defer close(c.readerExited)
	defer close(c.inputMessages)
	for {
		data, op, err := wsutil.ReadServerData(c.rw)
		if err != nil {
			return
		}
		if op == ws.OpText {
			c.inputMessages <- data
		}
	}
}

func (c *wsocketClient) Received() <-chan []byte {
	return c.inputMessages
}

func (c *wsocketClient) WriteMessage(messageType int, data []byte) error {
	c.writeMx.Lock()
	defer c.writeMx.Unlock()

	return errors.Wrap(wsutil.WriteClientMessage(c.conn, ws.OpCode(messageType), data), "failed to write websocket message")
}

func (c *wsocketClient) Send(env *model.Envelope) error {
	b, err := env.Encode()
	if err != nil {
		return err
	}

	return c.WriteMessage(int(ws.OpText), b)
}

func (c *wsocketClient) Close() error {
	c.closeMx.Lock()
	if c.closed {
		c.closeMx.Unlock()

		return nil
	}
	c.closed = true
	c.closeMx.Unlock()
	_ = c.WriteMessage(int(ws.OpClose), ws.NewCloseFrameBody(ws.StatusNormalClosure, "")) //nolint:errcheck // Best effort.
	select {
	case <-c.readerExited:
	case <-stdlibtime.After(stdlibtime.Second):
	}
	err := c.conn.Close()
	<-c.readerExited

	return errors.Wrap(err, "failed to close websocket client")
}

func (a StaticAuthenticator) Authenticate(_ context.Context, req *http.Request) (string, error) {
	token := req.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	}
	if userID, found := a[token]; found {
		return userID, nil
	}

	return "", nil
}
