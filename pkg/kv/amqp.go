package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
)

const defaultChangeExchange = "lookbook.history.changes"

// AMQPFeed broadcasts key changes over a fanout exchange. Each watcher binds
// its own broker-named queue, so every peer process sees every write.
type AMQPFeed struct {
	conn     *amqp.Connection
	exchange string
	origin   string

	mu  sync.Mutex
	pub *amqp.Channel
}

// NewAMQPFeed dials the broker and declares the fanout exchange.
func NewAMQPFeed(url string) (*AMQPFeed, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := pub.ExchangeDeclare(defaultChangeExchange, "fanout", false, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPFeed{
		conn:     conn,
		exchange: defaultChangeExchange,
		origin:   util.NewID(),
		pub:      pub,
	}, nil
}

// Publish sends a change notice to every bound peer.
func (f *AMQPFeed) Publish(ctx context.Context, key string) error {
	payload, _ := json.Marshal(Change{Key: key, Origin: f.origin})
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.pub.PublishWithContext(ctx, f.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Watch consumes from an exclusive queue bound to the exchange and forwards
// changes for the given keys, skipping this feed's own writes.
func (f *AMQPFeed) Watch(ctx context.Context, keys ...string) (<-chan Change, error) {
	watched := make(map[string]bool, len(keys))
	for _, k := range keys {
		watched[k] = true
	}
	ch, err := f.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", f.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal(d.Body, &change); err != nil {
					slog.Debug("dropping malformed change payload", "error", err)
					continue
				}
				if change.Origin == f.origin || !watched[change.Key] {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close shuts the broker connection down.
func (f *AMQPFeed) Close() error {
	return f.conn.Close()
}
