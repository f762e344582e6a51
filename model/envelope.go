// SPDX-License-Identifier: ice License 1.0

package model

import (
	"encoding/json"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

func NewEnvelope(typ MessageType) *Envelope {
	return &Envelope{Type: typ, Timestamp: stdlibtime.Now().UTC()}
}

func Pong() *Envelope {
	return NewEnvelope(TypePong)
}

func Ping() *Envelope {
	return NewEnvelope(TypePing)
}

func ErrorEnvelope(reason string) *Envelope {
	e := NewEnvelope(TypeError)
	e.Error = reason

	return e
}

// Ack is a MESSAGE envelope carrying a plain text acknowledgement in its data.
func Ack(text string) *Envelope {
	w := jwriter.Writer{}
	w.String(text)
	e := NewEnvelope(TypeMessage)
	e.Data = w.Buffer.BuildBytes()

	return e
}

func Subscribe(key string) *Envelope {
	e := NewEnvelope(TypeSubscribe)
	e.Key = key

	return e
}

func Unsubscribe(key string) *Envelope {
	e := NewEnvelope(TypeUnsubscribe)
	e.Key = key

	return e
}

// Message builds a MESSAGE envelope for key.
// Raw json ([]byte, json.RawMessage) is embedded as is, anything else is serialized.
func Message(key string, data any) (*Envelope, error) {
	raw, err := MarshalData(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize data for %v", key)
	}
	e := NewEnvelope(TypeMessage)
	e.Key = key
	e.Data = raw

	return e, nil
}

func MarshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.Wrapf(ErrMalformedJSON, "data %q", string(v))
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.Wrapf(ErrMalformedJSON, "data %q", string(v))
		}
		return v, nil
	case easyjson.Marshaler:
		b, err := easyjson.Marshal(v)
		return b, errors.Wrap(err, "easyjson marshal")
	default:
		b, err := json.Marshal(v)
		return b, errors.Wrap(err, "json marshal")
	}
}

func (e *Envelope) Encode() ([]byte, error) {
	b, err := easyjson.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize %v envelope", e.Type)
	}

	return b, nil
}

// ParseEnvelope decodes a single inbound frame.
// ErrMissingType is returned for well-formed objects without a type so callers can tell it apart from garbage.
func ParseEnvelope(data []byte) (*Envelope, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformedJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.Wrap(ErrMalformedJSON, "envelope must be a json object")
	}
	if typ := root.Get("type"); !typ.Exists() || typ.Type == gjson.Null || typ.String() == "" {
		return nil, ErrMissingType
	}
	e := new(Envelope)
	if err := easyjson.Unmarshal(data, e); err != nil {
		return nil, errors.Wrap(err, "failed to decode envelope")
	}
	if !e.Type.Valid() {
		return nil, errors.Wrapf(ErrUnknownType, "%q", string(e.Type))
	}

	return e, nil
}
