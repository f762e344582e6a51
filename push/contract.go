// SPDX-License-Identifier: ice License 1.0

package push

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ice-blockchain/pushgate/registry"
)

type (
	// Publisher is what business code uses to reach connected users.
	Publisher interface {
		Publish(ctx context.Context, topic string, message any) (Outcome, error)
	}
	Outcome struct {
		Topic       string `json:"topic"`
		MessageType string `json:"messageType,omitempty"`
		Subscribers int    `json:"subscribers"`
		Delivered   int    `json:"delivered"`
		Evicted     int    `json:"evicted"`
	}
	Gateway struct {
		registry    *registry.Registry
		messageType string
	}
)

var ErrEmptyTopic = errors.New("topic is required")
