// SPDX-License-Identifier: ice License 1.0

package http

import (
	"encoding/json"

	"github.com/ice-blockchain/pushgate/push"
	"github.com/ice-blockchain/pushgate/registry"
)

type (
	pushRequest struct {
		Key         string          `json:"key"`
		MessageType string          `json:"messageType,omitempty"`
		Data        json.RawMessage `json:"data,omitempty"`
	}
	statusResponse struct {
		Metrics     map[string]int64 `json:"metrics"`
		Connections int              `json:"connections"`
		Topics      int              `json:"topics"`
	}
	errorResponse struct {
		Message string `json:"message"`
	}
	pushHandler struct {
		gateway *push.Gateway
		apiKey  string
	}
	statusHandler struct {
		registry *registry.Registry
	}
)

const bearerPrefix = "Bearer "
