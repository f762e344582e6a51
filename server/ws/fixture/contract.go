// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"io"
	"net"
	"sync"

	"github.com/ice-blockchain/pushgate/model"
)

type (
	Client interface {
		Received
		WriteMessage(messageType int, data []byte) error
		Send(env *model.Envelope) error
		io.Closer
	}
	Received interface {
		// Received is closed once the server side is gone.
		Received() <-chan []byte
	}
	// StaticAuthenticator accepts any request carrying a token it knows about, in the query or as a bearer header.
	StaticAuthenticator map[string]string
)

const (
	receivedBufferSize = 1024
)

type (
	wsocketClient struct {
		conn          net.Conn
		rw            io.ReadWriter
		inputMessages chan []byte
		readerExited  chan struct{}
		closeMx       sync.Mutex
		writeMx       sync.Mutex
		closed        bool
	}
)
