// SPDX-License-Identifier: ice License 1.0

package push

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/mailru/easyjson/jwriter"

	"github.com/ice-blockchain/pushgate/model"
	"github.com/ice-blockchain/pushgate/registry"
)

func New(reg *registry.Registry) *Gateway {
	return &Gateway{registry: reg}
}

// WithMessageType returns a publisher that wraps every message as {"messageType": tag, "payload": message}
// so clients can tell payloads apart.
func (g *Gateway) WithMessageType(tag string) Publisher {
	return &Gateway{registry: g.registry, messageType: tag}
}

func (g *Gateway) MessageType() string {
	return g.messageType
}

// Publish sends message as a MESSAGE envelope to every user subscribed to topic.
// Delivery is best effort: unreachable subscribers are evicted and only show up in the Outcome.
func (g *Gateway) Publish(ctx context.Context, topic string, message any) (Outcome, error) {
	if topic == "" {
		return Outcome{}, ErrEmptyTopic
	}
	if ctx.Err() != nil {
		return Outcome{}, errors.Wrapf(ctx.Err(), "publish to %v aborted", topic)
	}
	data, err := model.MarshalData(message)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "failed to serialize message for %v", topic)
	}
	if g.messageType != "" {
		data = typed(g.messageType, data)
	}
	env := model.NewEnvelope(model.TypeMessage)
	env.Key, env.Data = topic, data
	b, err := env.Encode()
	if err != nil {
		return Outcome{}, err
	}
	res := g.registry.Publish(topic, b)

	return Outcome{
		Topic:       topic,
		MessageType: g.messageType,
		Subscribers: res.Subscribers,
		Delivered:   res.Delivered,
		Evicted:     res.Evicted,
	}, nil
}

func typed(tag string, payload json.RawMessage) json.RawMessage {
	w := jwriter.Writer{}
	w.RawString(`{"messageType":`)
	w.String(tag)
	w.RawString(`,"payload":`)
	if len(payload) == 0 {
		w.RawString("null")
	} else {
		w.Raw(payload, nil)
	}
	w.RawByte('}')

	return w.Buffer.BuildBytes()
}
