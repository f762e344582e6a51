// SPDX-License-Identifier: ice License 1.0

package registry

import (
	"log"
	"sync"
	"sync/atomic"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
)

func New() *Registry {
	r := &Registry{
		users:    xsync.NewMapOf[string, *Connection](),
		sessions: xsync.NewMapOf[string, string](),
		topics:   xsync.NewMapOf[string, subscribers](),
		metrics:  metrics.NewRegistry(),
	}
	r.counters = &counters{
		published: metrics.GetOrRegisterCounter(MetricPublished, r.metrics),
		delivered: metrics.GetOrRegisterCounter(MetricDelivered, r.metrics),
		evicted:   metrics.GetOrRegisterCounter(MetricEvicted, r.metrics),
		replaced:  metrics.GetOrRegisterCounter(MetricReplaced, r.metrics),
	}
	r.metrics.GetOrRegister(MetricConnections, metrics.NewFunctionalGauge(func() int64 { return int64(r.ConnectionCount()) }))
	r.metrics.GetOrRegister(MetricTopics, metrics.NewFunctionalGauge(func() int64 { return int64(r.TopicCount()) }))

	return r
}

func newConnection(userID string, conn Conn) *Connection {
	now := stdlibtime.Now()
	c := &Connection{
		ConnectedAt: now,
		conn:        conn,
		UserID:      userID,
		SessionID:   conn.SessionID(),
	}
	c.lastActiveAt.Store(now.UnixNano())

	return c
}

func (c *Connection) Touch() {
	c.lastActiveAt.Store(stdlibtime.Now().UnixNano())
}

func (c *Connection) LastActiveAt() stdlibtime.Time {
	return stdlibtime.Unix(0, c.lastActiveAt.Load())
}

func (c *Connection) Conn() Conn {
	return c.conn
}

// Register binds conn to userID. A live connection the user already had is closed and replaced;
// its reverse entry is dropped in the same step, its topic subscriptions are kept.
func (r *Registry) Register(userID string, conn Conn) *Connection {
	next := newConnection(userID, conn)
	var replaced *Connection
	r.users.Compute(userID, func(prev *Connection, loaded bool) (*Connection, bool) {
		if loaded && prev.SessionID != next.SessionID {
			replaced = prev
			r.sessions.Delete(prev.SessionID)
		}
		r.sessions.Store(next.SessionID, userID)

		return next, false
	})
	if replaced != nil {
		r.counters.replaced.Inc(1)
		log.Printf("WARN: user %v already has an active connection %v, closing it in favour of %v", userID, replaced.SessionID, next.SessionID)
		if err := replaced.conn.Close(); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to close replaced connection %v of %v", replaced.SessionID, userID))
		}
	}

	return next
}

// UnregisterByUser drops the user's live connection (closing it) and all its subscriptions.
func (r *Registry) UnregisterByUser(userID string) {
	var removed *Connection
	r.users.Compute(userID, func(prev *Connection, loaded bool) (*Connection, bool) {
		if loaded {
			removed = prev
			r.sessions.Delete(prev.SessionID)
		}

		return prev, true
	})
	if removed != nil {
		if err := removed.conn.Close(); err != nil {
			log.Printf("ERROR:%v", errors.Wrapf(err, "failed to close connection %v of %v", removed.SessionID, userID))
		}
	}
	r.dropSubscriptions(userID)
}

// UnregisterBySession is the disconnect path: it only acts if sessionID is still the live session of its user,
// so a late disconnect of a replaced session never removes the replacement.
func (r *Registry) UnregisterBySession(sessionID string) bool {
	userID, found := r.sessions.Load(sessionID)
	if !found {
		return false
	}
	var removed bool
	r.users.Compute(userID, func(prev *Connection, loaded bool) (*Connection, bool) {
		if !loaded || prev.SessionID != sessionID {
			return prev, !loaded
		}
		removed = true
		r.sessions.Delete(sessionID)

		return prev, true
	})
	if !removed {
		r.sessions.Compute(sessionID, func(owner string, loaded bool) (string, bool) {
			return owner, !loaded || owner == userID
		})

		return false
	}
	r.dropSubscriptions(userID)

	return true
}

func (r *Registry) Subscribe(userID, topic string) {
	r.topics.Compute(topic, func(prev subscribers, _ bool) (subscribers, bool) {
		if _, found := prev[userID]; found {
			return prev, false
		}

		return prev.with(userID), false
	})
}

func (r *Registry) Unsubscribe(userID, topic string) {
	r.topics.Compute(topic, func(prev subscribers, loaded bool) (subscribers, bool) {
		if !loaded {
			return prev, true
		}
		if _, found := prev[userID]; !found {
			return prev, false
		}
		if len(prev) == 1 {
			return nil, true
		}

		return prev.without(userID), false
	})
}

// Subscribers returns a snapshot, it may be stale by the time it is used.
func (r *Registry) Subscribers(topic string) []string {
	subs, found := r.topics.Load(topic)
	if !found {
		return nil
	}
	res := make([]string, 0, len(subs))
	for userID := range subs {
		res = append(res, userID)
	}

	return res
}

// Topics lists the topics userID is subscribed to.
func (r *Registry) Topics(userID string) []string {
	var res []string
	r.topics.Range(func(topic string, subs subscribers) bool {
		if _, found := subs[userID]; found {
			res = append(res, topic)
		}

		return true
	})

	return res
}

// Publish delivers payload to every subscriber of topic in parallel.
// A subscriber that cannot be written to is evicted, the rest are unaffected.
func (r *Registry) Publish(topic string, payload []byte) PublishResult {
	subs := r.Subscribers(topic)
	res := PublishResult{Subscribers: len(subs)}
	r.counters.published.Inc(1)
	if len(subs) == 0 {
		return res
	}
	var (
		delivered, evicted atomic.Int64
		mErr               *multierror.Error
		mErrMx             sync.Mutex
		wg                 errgroup.Group
	)
	for _, userID := range subs {
		wg.Go(func() error {
			if err := r.deliver(userID, payload); err != nil {
				evicted.Add(1)
				mErrMx.Lock()
				mErr = multierror.Append(mErr, err)
				mErrMx.Unlock()

				return nil
			}
			delivered.Add(1)

			return nil
		})
	}
	_ = wg.Wait() //nolint:errcheck // Delivery errors are never returned, see deliver.
	res.Delivered, res.Evicted = int(delivered.Load()), int(evicted.Load())
	r.counters.delivered.Inc(delivered.Load())
	if err := mErr.ErrorOrNil(); err != nil {
		log.Printf("WARN: evicted %v stale subscriber(s) of %v: %v", res.Evicted, topic, err)
	}

	return res
}

func (r *Registry) deliver(userID string, payload []byte) error {
	c, found := r.users.Load(userID)
	if !found {
		r.Evict(userID, nil)

		return errors.Wrapf(ErrNotConnected, "user %v", userID)
	}
	if c.conn.Closed() {
		r.Evict(userID, c)

		return errors.Wrapf(ErrConnectionClosed, "user %v session %v", userID, c.SessionID)
	}
	if err := c.conn.Send(payload); err != nil {
		r.Evict(userID, c)

		return errors.Wrapf(err, "failed to send to user %v session %v", userID, c.SessionID)
	}

	return nil
}

// Evict is the self-healing path for a subscriber detected as unreachable.
// With a nil conn the user is evicted only if it has no live connection at all,
// otherwise only if conn is still the user's live connection.
func (r *Registry) Evict(userID string, conn *Connection) bool {
	if conn == nil {
		if _, found := r.users.Load(userID); found {
			return false
		}
		r.counters.evicted.Inc(1)
		r.dropSubscriptions(userID)

		return true
	}
	var removed bool
	r.users.Compute(userID, func(prev *Connection, loaded bool) (*Connection, bool) {
		if !loaded || prev != conn {
			return prev, !loaded
		}
		removed = true
		r.sessions.Delete(prev.SessionID)

		return prev, true
	})
	if !removed {
		return false
	}
	r.counters.evicted.Inc(1)
	if err := conn.conn.Close(); err != nil {
		log.Printf("ERROR:%v", errors.Wrapf(err, "failed to close evicted connection %v of %v", conn.SessionID, userID))
	}
	r.dropSubscriptions(userID)

	return true
}

// dropSubscriptions removes userID from every topic one topic at a time; emptied topics are deleted.
func (r *Registry) dropSubscriptions(userID string) {
	r.topics.Range(func(topic string, subs subscribers) bool {
		if _, found := subs[userID]; found {
			r.Unsubscribe(userID, topic)
		}

		return true
	})
}

func (r *Registry) IsConnected(userID string) bool {
	c, found := r.users.Load(userID)

	return found && !c.conn.Closed()
}

func (r *Registry) Connection(userID string) (*Connection, bool) {
	return r.users.Load(userID)
}

func (r *Registry) UserBySession(sessionID string) (string, bool) {
	return r.sessions.Load(sessionID)
}

func (r *Registry) ConnectionCount() int {
	return r.users.Size()
}

func (r *Registry) TopicCount() int {
	return r.topics.Size()
}

func (r *Registry) Metrics() metrics.Registry {
	return r.metrics
}

func (s subscribers) with(userID string) subscribers {
	next := make(subscribers, len(s)+1)
	for k := range s {
		next[k] = struct{}{}
	}
	next[userID] = struct{}{}

	return next
}

func (s subscribers) without(userID string) subscribers {
	next := make(subscribers, len(s))
	for k := range s {
		if k != userID {
			next[k] = struct{}{}
		}
	}

	return next
}
