// SPDX-License-Identifier: ice License 1.0

package adapters

import (
	"context"
	"net"
	"testing"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ice-blockchain/pushgate/registry"
)

const testTimeout = 100 * stdlibtime.Millisecond

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPipeAdapter(t *testing.T, bufferSize int, startWriter bool) (*WebsocketAdapter, context.Context, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	wsocket, ctx := NewWebSocketAdapter(context.Background(), server, 0, testTimeout, bufferSize)
	if startWriter {
		go wsocket.Write(ctx)
	}
	t.Cleanup(func() {
		require.NoError(t, wsocket.Close())
		_ = client.Close()
	})

	return wsocket.(*WebsocketAdapter), ctx, client
}

func TestReadMessage(t *testing.T) {
	t.Parallel()
	wsocket, _, client := newPipeAdapter(t, 0, true)
	go func() {
		_ = wsutil.WriteClientMessage(client, ws.OpText, []byte(`{"type":"PING"}`))
	}()
	typ, data, err := wsocket.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, int(ws.OpText), typ)
	assert.Equal(t, `{"type":"PING"}`, string(data))
}

func TestReadMessageRejectsUnmaskedFrames(t *testing.T) {
	t.Parallel()
	wsocket, _, client := newPipeAdapter(t, 0, true)
	go func() {
		_ = wsutil.WriteServerMessage(client, ws.OpText, []byte(`x`))
	}()
	_, _, err := wsocket.ReadMessage()
	require.Error(t, err)
}

func TestSendIsDeliveredByWriter(t *testing.T) {
	t.Parallel()
	wsocket, _, client := newPipeAdapter(t, 0, true)
	require.NoError(t, wsocket.Send([]byte(`{"type":"PONG"}`)))
	frame, err := ws.ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, frame.Header.OpCode)
	assert.False(t, frame.Header.Masked)
	assert.Equal(t, `{"type":"PONG"}`, string(frame.Payload))
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	t.Parallel()
	wsocket, _, client := newPipeAdapter(t, 0, true)
	go func() {
		_ = wsutil.WriteClientMessage(client, ws.OpPing, []byte("hb"))
		_ = wsutil.WriteClientMessage(client, ws.OpText, []byte("after"))
	}()
	pong := make(chan ws.Frame, 1)
	go func() {
		if frame, err := ws.ReadFrame(client); err == nil {
			pong <- frame
		}
	}()
	_, data, err := wsocket.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "after", string(data))
	select {
	case frame := <-pong:
		assert.Equal(t, ws.OpPong, frame.Header.OpCode)
		assert.Equal(t, "hb", string(frame.Payload))
	case <-stdlibtime.After(stdlibtime.Second):
		t.Fatal("pong was not sent")
	}
}

func TestPeerCloseFrame(t *testing.T) {
	t.Parallel()
	wsocket, _, client := newPipeAdapter(t, 0, true)
	go func() {
		_ = wsutil.WriteClientMessage(client, ws.OpClose, ws.NewCloseFrameBody(ws.StatusGoingAway, "bye"))
	}()
	reply := make(chan ws.Frame, 1)
	go func() {
		if frame, err := ws.ReadFrame(client); err == nil {
			reply <- frame
		}
	}()
	_, _, err := wsocket.ReadMessage()
	closed := new(wsutil.ClosedError)
	require.True(t, errors.As(err, closed))
	assert.Equal(t, ws.StatusGoingAway, closed.Code)
	assert.Equal(t, "bye", closed.Reason)
	select {
	case frame := <-reply:
		assert.Equal(t, ws.OpClose, frame.Header.OpCode)
		code, _ := ws.ParseCloseFrameData(frame.Payload)
		assert.Equal(t, ws.StatusGoingAway, code)
	case <-stdlibtime.After(stdlibtime.Second):
		t.Fatal("close was not echoed")
	}
}

func TestSendNeverBlocks(t *testing.T) {
	t.Parallel()
	wsocket, _, _ := newPipeAdapter(t, 1, false)
	require.NoError(t, wsocket.Send([]byte("1")))
	err := wsocket.Send([]byte("2"))
	require.ErrorIs(t, err, registry.ErrSendBufferFull)
	assert.False(t, wsocket.Closed())
}

func TestClose(t *testing.T) {
	t.Parallel()
	wsocket, ctx, client := newPipeAdapter(t, 0, true)
	frames := make(chan ws.Frame, 1)
	go func() {
		if frame, err := ws.ReadFrame(client); err == nil {
			frames <- frame
		}
	}()
	require.NoError(t, wsocket.Close())
	require.NoError(t, wsocket.Close())
	assert.True(t, wsocket.Closed())
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context is not done")
	}
	require.ErrorIs(t, wsocket.Send([]byte("late")), registry.ErrConnectionClosed)
	select {
	case frame := <-frames:
		assert.Equal(t, ws.OpClose, frame.Header.OpCode)
		code, _ := ws.ParseCloseFrameData(frame.Payload)
		assert.Equal(t, ws.StatusNormalClosure, code)
	case <-stdlibtime.After(stdlibtime.Second):
		t.Fatal("close frame was not sent")
	}
}

func TestCloseFlushesQueuedFrames(t *testing.T) {
	t.Parallel()
	for name, startWriter := range map[string]bool{"writer running": true, "writer not started": false} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			wsocket, _, client := newPipeAdapter(t, 0, startWriter)
			frames := make(chan ws.Frame, 3)
			go func() {
				defer close(frames)
				for {
					frame, err := ws.ReadFrame(client)
					if err != nil {
						return
					}
					frames <- frame
					if frame.Header.OpCode == ws.OpClose {
						return
					}
				}
			}()
			require.NoError(t, wsocket.Send([]byte(`{"type":"ERROR","error":"Authentication failed"}`)))
			require.NoError(t, wsocket.Send([]byte(`second`)))
			require.NoError(t, wsocket.Close())

			var received []ws.Frame
			for frame := range frames {
				received = append(received, frame)
			}
			require.Len(t, received, 3)
			assert.Equal(t, ws.OpText, received[0].Header.OpCode)
			assert.Equal(t, `{"type":"ERROR","error":"Authentication failed"}`, string(received[0].Payload))
			assert.Equal(t, "second", string(received[1].Payload))
			assert.Equal(t, ws.OpClose, received[2].Header.OpCode)
		})
	}
}

func TestWriteFailureMarksClosed(t *testing.T) {
	t.Parallel()
	wsocket, _, client := newPipeAdapter(t, 0, true)
	require.NoError(t, client.Close())
	require.NoError(t, wsocket.Send([]byte("lost")))
	require.Eventually(t, wsocket.Closed, stdlibtime.Second, 10*stdlibtime.Millisecond)
	require.ErrorIs(t, wsocket.Send([]byte("lost again")), registry.ErrConnectionClosed)
}

func TestCustomCancelContextKeepsValues(t *testing.T) {
	t.Parallel()
	type key struct{}
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "v"))
	ch := make(chan struct{})
	ctx := NewCustomCancelContext(parent, ch)
	cancel()
	require.NoError(t, ctx.Err())
	assert.Equal(t, "v", ctx.Value(key{}))
	close(ch)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
