package kv

import (
	"context"
	"log/slog"
)

// ChangeFeed publishes and delivers key-change notices for media that have
// no native broadcast of their own.
type ChangeFeed interface {
	Publish(ctx context.Context, key string) error
	Watch(ctx context.Context, keys ...string) (<-chan Change, error)
}

// FeedStore pairs a Store with a ChangeFeed so every Set also broadcasts.
type FeedStore struct {
	Store
	feed ChangeFeed
}

// NewFeedStore wraps the store. The feed carries the Watch side as well.
func NewFeedStore(store Store, feed ChangeFeed) *FeedStore {
	return &FeedStore{Store: store, feed: feed}
}

func (f *FeedStore) Set(ctx context.Context, key, value string) error {
	if err := f.Store.Set(ctx, key, value); err != nil {
		return err
	}
	if err := f.feed.Publish(ctx, key); err != nil {
		// The write landed; peers catch up on their next read.
		slog.Warn("publish history change failed", "key", key, "error", err)
	}
	return nil
}

func (f *FeedStore) Watch(ctx context.Context, keys ...string) (<-chan Change, error) {
	return f.feed.Watch(ctx, keys...)
}
