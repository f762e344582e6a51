// SPDX-License-Identifier: ice License 1.0

package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jamiealquiza/tachymeter"
	combinations "github.com/mxschmitt/golang-combinations"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeConn struct {
	sendErr error
	id      string
	sent    [][]byte
	sentMx  sync.Mutex
	closed  atomic.Bool
	closes  atomic.Int32
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (f *fakeConn) SessionID() string {
	return f.id
}

func (f *fakeConn) Send(data []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentMx.Lock()
	defer f.sentMx.Unlock()
	f.sent = append(f.sent, data)

	return nil
}

func (f *fakeConn) Close() error {
	f.closes.Add(1)
	f.closed.Store(true)

	return nil
}

func (f *fakeConn) Closed() bool {
	return f.closed.Load()
}

func (f *fakeConn) Sent() [][]byte {
	f.sentMx.Lock()
	defer f.sentMx.Unlock()

	return append([][]byte(nil), f.sent...)
}

func requireConsistentIndex(t *testing.T, r *Registry) {
	t.Helper()
	r.users.Range(func(userID string, c *Connection) bool {
		owner, found := r.sessions.Load(c.SessionID)
		require.True(t, found, "missing reverse entry for %v", c.SessionID)
		require.Equal(t, userID, owner)

		return true
	})
	r.sessions.Range(func(sessionID, userID string) bool {
		c, found := r.users.Load(userID)
		require.True(t, found, "dangling reverse entry %v -> %v", sessionID, userID)
		require.Equal(t, sessionID, c.SessionID)

		return true
	})
	r.topics.Range(func(topic string, subs subscribers) bool {
		require.NotEmpty(t, subs, "empty topic %v persisted", topic)

		return true
	})
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	t.Parallel()
	r := New()
	first, second := newFakeConn(), newFakeConn()
	r.Register("u1", first)
	require.True(t, r.IsConnected("u1"))
	r.Register("u1", second)

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Equal(t, 1, r.ConnectionCount())
	c, found := r.Connection("u1")
	require.True(t, found)
	assert.Equal(t, second.SessionID(), c.SessionID)
	_, found = r.UserBySession(first.SessionID())
	assert.False(t, found)
	assert.Equal(t, int64(1), r.Metrics().Get(MetricReplaced).(metrics.Counter).Count())
	requireConsistentIndex(t, r)
}

func TestRegisterSameSessionTwice(t *testing.T) {
	t.Parallel()
	r := New()
	conn := newFakeConn()
	r.Register("u1", conn)
	r.Register("u1", conn)
	assert.False(t, conn.Closed())
	assert.Equal(t, 1, r.ConnectionCount())
	requireConsistentIndex(t, r)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	r := New()
	r.Subscribe("u1", "u1_u2")
	r.Subscribe("u1", "u1_u2")
	assert.Equal(t, []string{"u1"}, r.Subscribers("u1_u2"))
	assert.Equal(t, 1, r.TopicCount())
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	t.Run("last subscriber removes topic", func(t *testing.T) {
		t.Parallel()
		r := New()
		r.Subscribe("u1", "k")
		r.Subscribe("u2", "k")
		r.Unsubscribe("u1", "k")
		assert.Equal(t, []string{"u2"}, r.Subscribers("k"))
		r.Unsubscribe("u2", "k")
		assert.Empty(t, r.Subscribers("k"))
		assert.Zero(t, r.TopicCount())
		assert.Equal(t, int64(0), r.Metrics().Get(MetricTopics).(metrics.Gauge).Value())
	})
	t.Run("not subscribed is a noop", func(t *testing.T) {
		t.Parallel()
		r := New()
		r.Unsubscribe("u1", "missing")
		r.Subscribe("u2", "k")
		r.Unsubscribe("u1", "k")
		assert.Equal(t, []string{"u2"}, r.Subscribers("k"))
		assert.Equal(t, 1, r.TopicCount())
	})
}

func TestUnregisterDropsEverySubscription(t *testing.T) {
	t.Parallel()
	for name, unregister := range map[string]func(r *Registry, userID string, conn Conn){
		"by user":    func(r *Registry, userID string, _ Conn) { r.UnregisterByUser(userID) },
		"by session": func(r *Registry, _ string, conn Conn) { require.True(t, r.UnregisterBySession(conn.SessionID())) },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := New()
			c1, c2 := newFakeConn(), newFakeConn()
			r.Register("u1", c1)
			r.Register("u2", c2)
			for _, topic := range []string{"a", "b", "c"} {
				r.Subscribe("u1", topic)
			}
			r.Subscribe("u2", "b")

			unregister(r, "u1", c1)

			assert.False(t, r.IsConnected("u1"))
			assert.Empty(t, r.Topics("u1"))
			assert.Empty(t, r.Subscribers("a"))
			assert.Equal(t, []string{"u2"}, r.Subscribers("b"))
			assert.Equal(t, 1, r.TopicCount())
			assert.Equal(t, 1, r.ConnectionCount())
			requireConsistentIndex(t, r)
		})
	}
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	t.Parallel()
	r := New()
	r.Subscribe("u2", "k")
	r.UnregisterByUser("nobody")
	assert.False(t, r.UnregisterBySession("nope"))
	assert.Equal(t, []string{"u2"}, r.Subscribers("k"))
}

func TestUnregisterByUserClosesConnection(t *testing.T) {
	t.Parallel()
	r := New()
	conn := newFakeConn()
	r.Register("u1", conn)
	r.UnregisterByUser("u1")
	assert.True(t, conn.Closed())
	assert.False(t, r.UnregisterBySession(conn.SessionID()))
}

func TestReplacedSessionDisconnectKeepsReplacement(t *testing.T) {
	t.Parallel()
	r := New()
	first, second := newFakeConn(), newFakeConn()
	r.Register("u1", first)
	r.Subscribe("u1", "u1_u2")
	r.Register("u1", second)

	assert.False(t, r.UnregisterBySession(first.SessionID()))
	assert.True(t, r.IsConnected("u1"))
	assert.Equal(t, []string{"u1_u2"}, r.Topics("u1"))
	requireConsistentIndex(t, r)

	require.True(t, r.UnregisterBySession(second.SessionID()))
	assert.Empty(t, r.Topics("u1"))
	assert.Zero(t, r.TopicCount())
}

func TestDisconnectRacingReplacement(t *testing.T) {
	t.Parallel()
	r := New()
	for range 2000 {
		first, second := newFakeConn(), newFakeConn()
		r.Register("u1", first)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("u1", second)
		}()
		go func() {
			defer wg.Done()
			r.UnregisterBySession(first.SessionID())
		}()
		wg.Wait()

		_, found := r.UserBySession(first.SessionID())
		require.False(t, found)
		requireConsistentIndex(t, r)
		c, found := r.Connection("u1")
		require.True(t, found)
		require.Equal(t, second.SessionID(), c.SessionID)
		require.True(t, r.UnregisterBySession(second.SessionID()))
	}
	assert.Zero(t, r.ConnectionCount())
	assert.Zero(t, r.sessions.Size())
}

func TestPublishEvictsStaleSubscribers(t *testing.T) {
	t.Parallel()
	r := New()
	live := make([]*fakeConn, 3)
	for i := range live {
		live[i] = newFakeConn()
		userID := fmt.Sprintf("live%v", i)
		r.Register(userID, live[i])
		r.Subscribe(userID, "k")
		r.Subscribe(userID, "other")
	}
	closed := newFakeConn()
	r.Register("closed", closed)
	r.Subscribe("closed", "k")
	r.Subscribe("closed", "only-closed")
	closed.closed.Store(true)
	failing := newFakeConn()
	failing.sendErr = errors.New("buffer full")
	r.Register("failing", failing)
	r.Subscribe("failing", "k")
	r.Subscribe("missing", "k")

	res := r.Publish("k", []byte(`{"type":"MESSAGE"}`))

	assert.Equal(t, PublishResult{Subscribers: 6, Delivered: 3, Evicted: 3}, res)
	for _, conn := range live {
		assert.Equal(t, [][]byte{[]byte(`{"type":"MESSAGE"}`)}, conn.Sent())
	}
	subs := r.Subscribers("k")
	sort.Strings(subs)
	assert.Equal(t, []string{"live0", "live1", "live2"}, subs)
	for _, userID := range []string{"closed", "failing", "missing"} {
		assert.False(t, r.IsConnected(userID))
		assert.Empty(t, r.Topics(userID))
	}
	assert.True(t, failing.Closed())
	assert.Empty(t, r.Subscribers("only-closed"))
	assert.Len(t, r.Subscribers("other"), 3)
	assert.Equal(t, int64(3), r.Metrics().Get(MetricEvicted).(metrics.Counter).Count())
	assert.Equal(t, int64(3), r.Metrics().Get(MetricDelivered).(metrics.Counter).Count())
	requireConsistentIndex(t, r)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()
	r := New()
	assert.Equal(t, PublishResult{}, r.Publish("nobody-listens", []byte("{}")))
}

func TestEvict(t *testing.T) {
	t.Parallel()
	t.Run("ignores a connection that was already replaced", func(t *testing.T) {
		t.Parallel()
		r := New()
		old := r.Register("u1", newFakeConn())
		next := newFakeConn()
		r.Register("u1", next)
		r.Subscribe("u1", "k")
		assert.False(t, r.Evict("u1", old))
		assert.True(t, r.IsConnected("u1"))
		assert.Equal(t, []string{"u1"}, r.Subscribers("k"))
	})
	t.Run("nil connection keeps connected users", func(t *testing.T) {
		t.Parallel()
		r := New()
		r.Register("u1", newFakeConn())
		r.Subscribe("u1", "k")
		assert.False(t, r.Evict("u1", nil))
		assert.Equal(t, []string{"u1"}, r.Subscribers("k"))
	})
	t.Run("live connection", func(t *testing.T) {
		t.Parallel()
		r := New()
		conn := newFakeConn()
		c := r.Register("u1", conn)
		r.Subscribe("u1", "k")
		assert.True(t, r.Evict("u1", c))
		assert.True(t, conn.Closed())
		assert.Zero(t, r.TopicCount())
		assert.Zero(t, r.ConnectionCount())
		requireConsistentIndex(t, r)
	})
}

func TestConnectionActivity(t *testing.T) {
	t.Parallel()
	r := New()
	c := r.Register("u1", newFakeConn())
	assert.Equal(t, c.ConnectedAt.UnixNano(), c.LastActiveAt().UnixNano())
	stdlibtime.Sleep(2 * stdlibtime.Millisecond)
	c.Touch()
	assert.True(t, c.LastActiveAt().After(c.ConnectedAt))
}

func TestConcurrentChurn(t *testing.T) {
	t.Parallel()
	r := New()
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	var topics []string
	for _, pair := range combinations.Combinations(users, 2) {
		topics = append(topics, pair[0]+"_"+pair[1])
	}
	const rounds = 200
	var wg sync.WaitGroup
	for _, userID := range users {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range rounds {
					conn := newFakeConn()
					r.Register(userID, conn)
					topic := topics[i%len(topics)]
					r.Subscribe(userID, topic)
					if i%3 == 0 {
						r.Unsubscribe(userID, topic)
					}
					if i%5 == 0 {
						r.UnregisterBySession(conn.SessionID())
					}
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				r.Publish(topics[i%len(topics)], []byte("{}"))
			}
		}()
	}
	wg.Wait()
	requireConsistentIndex(t, r)
	r.users.Range(func(_ string, c *Connection) bool {
		assert.False(t, c.conn.Closed())

		return true
	})
	for _, userID := range users {
		r.UnregisterByUser(userID)
	}
	assert.Zero(t, r.ConnectionCount())
	assert.Zero(t, r.TopicCount())
	requireConsistentIndex(t, r)
}

func BenchmarkPublish(b *testing.B) {
	r := New()
	const subs = 1000
	for i := range subs {
		userID := fmt.Sprint(i)
		r.Register(userID, newFakeConn())
		r.Subscribe(userID, "k")
	}
	meter := tachymeter.New(&tachymeter.Config{Size: b.N})
	payload := []byte(`{"type":"MESSAGE","key":"k","data":{}}`)
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		start := stdlibtime.Now()
		if res := r.Publish("k", payload); res.Delivered != subs {
			b.Fatalf("delivered %v of %v", res.Delivered, subs)
		}
		meter.AddTime(stdlibtime.Since(start))
	}
	b.StopTimer()
	b.Log(meter.Calc().String())
}
