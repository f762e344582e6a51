// SPDX-License-Identifier: ice License 1.0

package main

import (
	"net"
	"sync"
	"sync/atomic"
	stdlibtime "time"

	"github.com/ice-blockchain/pushgate/database/tokens"
)

type (
	seederClient struct {
		conns       []net.Conn
		db          *tokens.Client
		url         string
		wg          sync.WaitGroup
		received    atomic.Uint64
		disconnects atomic.Uint64
		topics      int
		perUser     int
		dialTimeout stdlibtime.Duration
	}
)

const (
	seedUserPrefix  = "seed-user-"
	seedTopicPrefix = "seed-topic-"
	reportInterval  = 10 * stdlibtime.Second
)
