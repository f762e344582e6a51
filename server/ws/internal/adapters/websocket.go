// SPDX-License-Identifier: ice License 1.0

package adapters

import (
	"context"
	"io"
	"log"
	"net"
	"syscall"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/ice-blockchain/pushgate/registry"
)

func NewWebSocketAdapter(ctx context.Context, conn net.Conn, readTimeout, writeTimeout stdlibtime.Duration, outboundBufferSize int) (WSWithWriter, context.Context) {
	if outboundBufferSize <= 0 {
		outboundBufferSize = DefaultOutboundBufferSize
	}
	wsocket := &WebsocketAdapter{
		conn:         conn,
		sessionID:    uuid.NewString(),
		out:          make(chan wsWrite, outboundBufferSize),
		closeChannel: make(chan struct{}),
		writerDone:   make(chan struct{}),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
	wsocket.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		OnIntermediate: wsocket.handleControlFrame,
	}

	return wsocket, NewCustomCancelContext(ctx, wsocket.closeChannel)
}

func (w *WebsocketAdapter) SessionID() string {
	return w.sessionID
}

// Send enqueues a text frame. It never blocks: a full outbound buffer is reported as registry.ErrSendBufferFull.
func (w *WebsocketAdapter) Send(data []byte) error {
	return w.WriteMessage(int(ws.OpText), data)
}

func (w *WebsocketAdapter) WriteMessage(messageType int, data []byte) error {
	if err := w.writeErr(); err != nil {
		return errors.Wrapf(registry.ErrConnectionClosed, "previous write failed: %v", err)
	}
	w.closeMx.Lock()
	defer w.closeMx.Unlock()
	if w.closed {
		return registry.ErrConnectionClosed
	}
	select {
	case w.out <- wsWrite{data: data, opCode: messageType}:
		return nil
	default:
		return errors.Wrapf(registry.ErrSendBufferFull, "session %v", w.sessionID)
	}
}

// Write is the writer routine: it drains every queued frame in order, the closing frame last.
// It returns once Close was called and the queue is empty.
func (w *WebsocketAdapter) Write(context.Context) {
	defer close(w.writerDone)
	w.closeMx.Lock()
	if w.closed {
		// Close already flushed the queue itself.
		w.closeMx.Unlock()

		return
	}
	w.writing = true
	w.closeMx.Unlock()
	w.flush()
}

func (w *WebsocketAdapter) flush() {
	closeSent := false
	for msg := range w.out {
		if closeSent || w.writeErr() != nil {
			continue
		}
		if err := w.writeFrame(msg); err != nil {
			w.wrErrMx.Lock()
			w.wrErr = err
			w.wrErrMx.Unlock()
			if !isConnClosedErr(err) {
				log.Printf("ERROR:%v", errors.Wrapf(err, "failed to send message to websocket %v", w.sessionID))
			}
			_ = w.conn.Close() //nolint:errcheck // Unblocks the reader, the handler closes the adapter afterwards.

			continue
		}
		closeSent = ws.OpCode(msg.opCode) == ws.OpClose
	}
}

func (w *WebsocketAdapter) writeFrame(msg wsWrite) error {
	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(stdlibtime.Now().Add(w.writeTimeout)) //nolint:errcheck // .
	}

	return errors.Wrap(wsutil.WriteServerMessage(w.conn, ws.OpCode(msg.opCode), msg.data), "failed to write websocket frame")
}

func (w *WebsocketAdapter) writeErr() error {
	w.wrErrMx.Lock()
	defer w.wrErrMx.Unlock()

	return w.wrErr
}

// ReadMessage blocks until the next data message. Control frames are answered through the writer routine;
// a close frame from the peer is reported as wsutil.ClosedError.
func (w *WebsocketAdapter) ReadMessage() (messageType int, data []byte, err error) {
	for {
		if w.readTimeout > 0 {
			_ = w.conn.SetReadDeadline(stdlibtime.Now().Add(w.readTimeout)) //nolint:errcheck // .
		}
		hdr, hErr := w.reader.NextFrame()
		if hErr != nil {
			return 0, nil, errors.Wrap(hErr, "failed to read websocket frame")
		}
		if hdr.OpCode.IsControl() {
			if err = w.handleControlFrame(hdr, w.reader); err != nil {
				return int(hdr.OpCode), nil, err
			}

			continue
		}
		if data, err = io.ReadAll(w.reader); err != nil {
			return 0, nil, errors.Wrap(err, "failed to read websocket message")
		}

		return int(hdr.OpCode), data, nil
	}
}

func (w *WebsocketAdapter) handleControlFrame(hdr ws.Header, rd io.Reader) error {
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(rd, payload); err != nil {
		return errors.Wrapf(err, "failed to read %v control frame", hdr.OpCode)
	}
	switch hdr.OpCode { //nolint:exhaustive // Only control frames get here.
	case ws.OpPing:
		_ = w.WriteMessage(int(ws.OpPong), payload) //nolint:errcheck // A dropped pong is not fatal.
	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		var reply []byte
		if code == 0 {
			code = ws.StatusNoStatusRcvd
		} else {
			reply = ws.NewCloseFrameBody(code, "")
		}
		_ = w.WriteMessage(int(ws.OpClose), reply) //nolint:errcheck // Peer is leaving anyway.

		return wsutil.ClosedError{Code: code, Reason: reason}
	}

	return nil
}

func (w *WebsocketAdapter) Closed() bool {
	w.closeMx.Lock()
	closed := w.closed
	w.closeMx.Unlock()

	return closed || w.writeErr() != nil
}

// Close queues a normal closure frame if there is room for it, lets every frame queued before it reach the peer
// and closes the conn. Without a running writer routine the queue is flushed here.
// Safe to call more than once and from any goroutine except the writer itself.
func (w *WebsocketAdapter) Close() error {
	w.closeMx.Lock()
	if w.closed {
		w.closeMx.Unlock()

		return nil
	}
	w.closed = true
	select {
	case w.out <- wsWrite{data: ws.NewCloseFrameBody(ws.StatusNormalClosure, ""), opCode: int(ws.OpClose)}:
	default:
	}
	close(w.closeChannel)
	close(w.out)
	writing := w.writing
	w.closeMx.Unlock()
	if writing {
		select {
		case <-w.writerDone:
		case <-stdlibtime.After(closeGracePeriod):
		}
	} else {
		_ = w.conn.SetWriteDeadline(stdlibtime.Now().Add(closeGracePeriod)) //nolint:errcheck // .
		w.flush()
	}
	if err := w.conn.Close(); err != nil && !isConnClosedErr(err) {
		return errors.Wrap(err, "failed to close websocket conn")
	}

	return nil
}

func isConnClosedErr(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET))
}
