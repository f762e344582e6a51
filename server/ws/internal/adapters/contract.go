// SPDX-License-Identifier: ice License 1.0

package adapters

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	stdlibtime "time"

	"github.com/gobwas/ws/wsutil"
)

type (
	WSHandler interface {
		Read(ctx context.Context, req *http.Request, conn WS)
	}
	WSReader interface {
		ReadMessage() (messageType int, p []byte, err error)
		io.Closer
	}
	WSWriter interface {
		WriteMessage(messageType int, data []byte) error
		io.Closer
	}
	WS interface {
		WSWriter
		WSReader
		SessionID() string
		Send(data []byte) error
		Closed() bool
	}
	WSWithWriter interface {
		WS
		WSWriterRoutine
	}
	WSWriterRoutine interface {
		Write(ctx context.Context)
	}
	WebsocketAdapter struct {
		conn         net.Conn
		reader       *wsutil.Reader
		out          chan wsWrite
		closeChannel chan struct{}
		writerDone   chan struct{}
		wrErr        error
		sessionID    string
		writeTimeout stdlibtime.Duration
		readTimeout  stdlibtime.Duration
		wrErrMx      sync.Mutex
		closeMx      sync.Mutex
		closed       bool
		writing      bool
	}
)

const (
	DefaultOutboundBufferSize = 64
	closeGracePeriod          = stdlibtime.Second
)

type (
	customCancelContext struct {
		context.Context //nolint:containedctx // Custom implementation.
		ch              <-chan struct{}
	}
	wsWrite struct {
		data   []byte
		opCode int
	}
)
