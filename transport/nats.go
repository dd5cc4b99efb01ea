package transport

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"chatkit/contract"
)

// NATS adapts a nats.Conn to the notification transport. Payloads
// travel as JSON; subject = channel name. Reconnection is delegated to
// the client options.
type NATS struct {
	conn *nats.Conn
}

func NewNATS(url string, options ...nats.Option) (*NATS, error) {
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: conn}, nil
}

func (n *NATS) Publish(ctx context.Context, channel string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.conn.Publish(channel, data)
}

func (n *NATS) Subscribe(channel string, handler contract.EventHandler) (func(), error) {
	subscription, err := n.conn.Subscribe(channel, func(msg *nats.Msg) {
		var payload map[string]any
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		handler(payload)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = subscription.Unsubscribe() }, nil
}

func (n *NATS) Close() {
	n.conn.Close()
}
