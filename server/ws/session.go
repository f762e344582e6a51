// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/ice-blockchain/pushgate/model"
	"github.com/ice-blockchain/pushgate/registry"
)

func (h *Handler) newSession(conn Conn) *Session {
	s := &Session{conn: conn, handler: h}
	s.state.Store(int32(StateConnecting))

	return s
}

func (s *Session) SessionID() string {
	return s.conn.SessionID()
}

// UserID is empty until the session is authenticated.
func (s *Session) UserID() string {
	if c := s.connection.Load(); c != nil {
		return c.UserID
	}

	return ""
}

func (s *Session) Connection() *registry.Connection {
	return s.connection.Load()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Send writes env to the client without blocking.
func (s *Session) Send(env *model.Envelope) error {
	b, err := env.Encode()
	if err != nil {
		return err
	}

	return errors.Wrapf(s.conn.Send(b), "failed to send %v to session %v", env.Type, s.SessionID())
}

// Close deregisters the session and closes its connection. Only the first call has any effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.connection.Load() != nil {
			s.state.Store(int32(StateClosing))
			s.handler.registry.UnregisterBySession(s.SessionID())
		}
		if err := s.conn.Close(); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to close session %v", s.SessionID()))
		}
		s.state.Store(int32(StateClosed))
	})
}

func (s *Session) authenticate(ctx context.Context, req *http.Request) bool {
	s.state.Store(int32(StateAuthenticating))
	userID, err := s.handler.hooks.Authenticator.Authenticate(ctx, req)
	if err != nil || userID == "" {
		if err != nil {
			log.Printf("WARN: authentication of session %v failed: %v", s.SessionID(), err)
		}
		s.reply(model.ErrorEnvelope(ReasonAuthenticationFailed))

		return false
	}
	s.connection.Store(s.handler.registry.Register(userID, s.conn))
	s.state.Store(int32(StateActive))

	return true
}

func (s *Session) serve(ctx context.Context) {
	for ctx.Err() == nil {
		t, msgBytes, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)

			break
		}
		s.Connection().Touch()
		if len(msgBytes) > 0 && ws.OpCode(t) == ws.OpText {
			s.handle(ctx, msgBytes)
		}
	}
}

func (s *Session) logReadError(err error) {
	closed := new(wsutil.ClosedError)
	if errors.As(err, closed) {
		if closed.Code != ws.StatusNormalClosure &&
			closed.Code != ws.StatusGoingAway &&
			closed.Code != ws.StatusAbnormalClosure &&
			closed.Code != ws.StatusNoStatusRcvd {
			log.Printf("WARN: session %v closed with unexpected code %v: %v", s.SessionID(), closed.Code, closed.Reason)
		}

		return
	}
	if s.conn.Closed() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	log.Printf("WARN: reading from session %v failed: %v", s.SessionID(), err)
}

func (s *Session) handle(ctx context.Context, msgBytes []byte) {
	env, err := model.ParseEnvelope(msgBytes)
	if err != nil {
		if errors.Is(err, model.ErrMissingType) {
			s.reply(model.ErrorEnvelope(ReasonTypeRequired))
		} else {
			s.reply(model.ErrorEnvelope(reasonInvalidFormat + err.Error()))
		}

		return
	}
	switch env.Type {
	case model.TypeSubscribe:
		if env.Key == "" {
			s.reply(model.ErrorEnvelope(ReasonKeyRequired))

			return
		}
		if err = s.handler.hooks.Subscriptions.Subscribe(ctx, s, env.Key); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to subscribe %v to %v", s.UserID(), env.Key))
			s.reply(model.ErrorEnvelope(err.Error()))

			return
		}
		s.reply(model.Ack(subscribedAck + env.Key))
	case model.TypeUnsubscribe:
		if env.Key == "" {
			return
		}
		if err = s.handler.hooks.Subscriptions.Unsubscribe(ctx, s, env.Key); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to unsubscribe %v from %v", s.UserID(), env.Key))
			s.reply(model.ErrorEnvelope(err.Error()))
		}
	case model.TypePing:
		if s.handler.heartbeatEnabled {
			s.reply(model.Pong())
		}
	case model.TypePong:
	case model.TypeMessage:
		if err = s.handler.hooks.Messages.HandleMessage(ctx, s, env); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to handle message of %v", s.UserID()))
			s.reply(model.ErrorEnvelope(err.Error()))
		}
	case model.TypeError:
		log.Printf("WARN: session %v of %v reported an error: %v", s.SessionID(), s.UserID(), env.Error)
	}
}

func (s *Session) reply(env *model.Envelope) {
	if err := s.Send(env); err != nil {
		log.Printf("ERROR:%v", err)
	}
}

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
