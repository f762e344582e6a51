// SPDX-License-Identifier: ice License 1.0

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"pgregory.net/rand"

	"github.com/ice-blockchain/pushgate/database/tokens"
	"github.com/ice-blockchain/pushgate/model"
)

func newSeeder(database, url string, topics, perUser int, dialTimeout stdlibtime.Duration) *seederClient {
	return &seederClient{
		db:          tokens.MustOpen(database),
		url:         url,
		topics:      max(topics, 1),
		perUser:     perUser,
		dialTimeout: dialTimeout,
	}
}

// Seed issues a token per user and connects every user, subscribed to perUser random topics.
func (s *seederClient) Seed(ctx context.Context, users int, ttl stdlibtime.Duration) error {
	issued := make([]string, 0, users)
	bar := progressbar.Default(int64(users), "issuing tokens")
	for i := range users {
		token, err := s.db.Issue(ctx, fmt.Sprint(seedUserPrefix, i), ttl)
		if err != nil {
			return errors.Wrapf(err, "failed to issue token #%v", i)
		}
		issued = append(issued, token)
		_ = bar.Add(1) //nolint:errcheck // Progress only.
	}
	bar = progressbar.Default(int64(users), "connecting")
	var mErr *multierror.Error
	for _, token := range issued {
		if ctx.Err() != nil {
			break
		}
		if err := s.connect(ctx, token); err != nil {
			mErr = multierror.Append(mErr, err)
		}
		_ = bar.Add(1) //nolint:errcheck // Progress only.
	}
	if err := mErr.ErrorOrNil(); err != nil {
		log.Printf("WARN: %v of %v users failed to connect: %v", len(mErr.Errors), users, err)
	}
	if len(s.conns) == 0 && users > 0 {
		return errors.Errorf("no user could connect to %v", s.url)
	}

	return nil
}

func (s *seederClient) connect(ctx context.Context, token string) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()
	conn, _, _, err := ws.Dial(dialCtx, s.url+"?token="+token)
	if err != nil {
		return errors.Wrapf(err, "failed to dial %v", s.url)
	}
	for range s.perUser {
		b, eErr := model.Subscribe(fmt.Sprint(seedTopicPrefix, rand.Intn(s.topics))).Encode()
		if eErr == nil {
			eErr = wsutil.WriteClientText(conn, b)
		}
		if eErr != nil {
			return multierror.Append(errors.Wrap(eErr, "failed to subscribe"), conn.Close()).ErrorOrNil()
		}
	}
	s.conns = append(s.conns, conn)
	s.wg.Add(1)
	go s.read(conn)

	return nil
}

func (s *seederClient) read(conn net.Conn) {
	defer s.wg.Done()
	for {
		if _, _, err := wsutil.ReadServerData(conn); err != nil {
			s.disconnects.Add(1)

			return
		}
		s.received.Add(1)
	}
}

// Wait reports what the connected users receive until ctx is done.
func (s *seederClient) Wait(ctx context.Context) {
	ticker := stdlibtime.NewTicker(reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("INFO: %v connected, %v messages received, %v disconnected", len(s.conns), s.received.Load(), s.disconnects.Load())
		}
	}
}

func (s *seederClient) Close() error {
	var mErr *multierror.Error
	for _, conn := range s.conns {
		_ = wsutil.WriteClientMessage(conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "")) //nolint:errcheck // Best effort.
		mErr = multierror.Append(mErr, conn.Close())
	}
	s.wg.Wait()
	mErr = multierror.Append(mErr, s.db.Close())

	return mErr.ErrorOrNil() //nolint:wrapcheck // Already wrapped.
}
