// Package kv provides the durable string key-value medium behind the try-on
// history. Implementations swap whole values per key and, where the medium
// supports it, deliver cross-process change broadcasts.
package kv

import "context"

// Store is a durable string-keyed medium. Get reports absence through ok
// rather than an error; Set replaces the whole value.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Change describes a write observed on a watched key. Origin carries the
// writer's handle identity when the medium can attribute writes, "" otherwise.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin,omitempty"`
}

// Watcher delivers change broadcasts for the listed keys. Writes made through
// the receiving handle are filtered out when attribution exists. Delivery is
// asynchronous and may coalesce under backpressure; a change is a signal to
// re-read, never a data carrier.
type Watcher interface {
	Watch(ctx context.Context, keys ...string) (<-chan Change, error)
}
