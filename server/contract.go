// SPDX-License-Identifier: ice License 1.0

package server

import (
	"github.com/ice-blockchain/pushgate/push"
	"github.com/ice-blockchain/pushgate/registry"
	wsserver "github.com/ice-blockchain/pushgate/server/ws"
)

type (
	Config struct {
		Routes []RouteConfig   `yaml:"routes"`
		WS     wsserver.Config `yaml:"ws"`
	}
	RouteConfig struct {
		Path             string `yaml:"path"`
		HeartbeatEnabled bool   `yaml:"heartbeatEnabled"`
	}
	// Dependencies are shared by every route; Subscriptions and Messages are optional.
	Dependencies struct {
		Registry      *registry.Registry
		Gateway       *push.Gateway
		Authenticator wsserver.Authenticator
		Subscriptions wsserver.SubscriptionHandler
		Messages      wsserver.MessageHandler
	}
	Routes struct {
		ws         *wsserver.HandlerRouter
		deps       *Dependencies
		pushAPIKey string
	}
)

const (
	pushPath   = "/push"
	statusPath = "/status"
)

//nolint:gochecknoglobals // Fallback when no route is configured.
var DefaultRoutes = []RouteConfig{{Path: "/ws", HeartbeatEnabled: true}}
