// SPDX-License-Identifier: ice License 1.0

package registry

import (
	"sync/atomic"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

type (
	// Conn is the outbound half of a live transport session.
	// Send must not block: a slow or dead peer is reported as an error.
	Conn interface {
		SessionID() string
		Send(data []byte) error
		Close() error
		Closed() bool
	}
	Connection struct {
		ConnectedAt  stdlibtime.Time
		conn         Conn
		UserID       string
		SessionID    string
		lastActiveAt atomic.Int64
	}
	PublishResult struct {
		Subscribers int
		Delivered   int
		Evicted     int
	}
	Registry struct {
		users    *xsync.MapOf[string, *Connection]
		sessions *xsync.MapOf[string, string]
		topics   *xsync.MapOf[string, subscribers]
		metrics  metrics.Registry
		counters *counters
	}
	// subscribers is never mutated after it is stored, every change stores a copy.
	subscribers map[string]struct{}
	counters    struct {
		published metrics.Counter
		delivered metrics.Counter
		evicted   metrics.Counter
		replaced  metrics.Counter
	}
)

var (
	ErrNotConnected     = errors.New("user is not connected")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendBufferFull   = errors.New("send buffer is full")
)

const (
	MetricConnections = "registry.connections"
	MetricTopics      = "registry.topics"
	MetricPublished   = "registry.published"
	MetricDelivered   = "registry.delivered"
	MetricEvicted     = "registry.evicted"
	MetricReplaced    = "registry.replaced"
)
