package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
)

const defaultChangeChannel = "lookbook:history:changes"

// Redis keeps each key as a plain string and publishes every write on a
// pub/sub channel so other processes can revalidate their views.
type Redis struct {
	client  *redis.Client
	channel string
	origin  string
}

// NewRedis connects and verifies the server is reachable.
func NewRedis(addr, password string) (*Redis, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{
		client:  client,
		channel: defaultChangeChannel,
		origin:  util.NewID(),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	payload, _ := json.Marshal(Change{Key: key, Origin: r.origin})
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		// The write landed; peers catch up on their next read.
		slog.Warn("publish history change failed", "key", key, "error", err)
	}
	return nil
}

// Watch subscribes to the change channel and forwards writes on the given
// keys, skipping the ones this handle made itself.
func (r *Redis) Watch(ctx context.Context, keys ...string) (<-chan Change, error) {
	watched := make(map[string]bool, len(keys))
	for _, k := range keys {
		watched[k] = true
	}
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					slog.Debug("dropping malformed change payload", "error", err)
					continue
				}
				if change.Origin == r.origin || !watched[change.Key] {
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
