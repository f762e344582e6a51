// SPDX-License-Identifier: ice License 1.0

package model

import (
	"encoding/json"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
)

type (
	MessageType string

	//easyjson:json
	Envelope struct {
		Timestamp stdlibtime.Time `json:"timestamp"`
		Data      json.RawMessage `json:"data,omitempty"`
		Type      MessageType     `json:"type"`
		Key       string          `json:"key,omitempty"`
		Error     string          `json:"error,omitempty"`
	}
)

const (
	TypeSubscribe   MessageType = "SUBSCRIBE"
	TypeUnsubscribe MessageType = "UNSUBSCRIBE"
	TypePing        MessageType = "PING"
	TypePong        MessageType = "PONG"
	TypeMessage     MessageType = "MESSAGE"
	TypeError       MessageType = "ERROR"
)

var (
	ErrMissingType   = errors.New("message type is required")
	ErrUnknownType   = errors.New("unknown message type")
	ErrMalformedJSON = errors.New("malformed json")
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeSubscribe, TypeUnsubscribe, TypePing, TypePong, TypeMessage, TypeError:
		return true
	default:
		return false
	}
}
