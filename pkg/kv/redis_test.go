package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	store, err := NewRedis(redis.Addr(), "")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if val != "v1" {
		t.Fatalf("value = %q, want v1", val)
	}
}

func TestRedisRequiresAddr(t *testing.T) {
	if _, err := NewRedis("", ""); err == nil {
		t.Fatalf("expected constructor error for empty addr")
	}
}

func TestRedisWatchDeliversPeerWrites(t *testing.T) {
	redis := miniredis.RunT(t)
	writer, err := NewRedis(redis.Addr(), "")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	watcher, err := NewRedis(redis.Addr(), "")
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	peerChanges, err := watcher.Watch(ctx, "k")
	if err != nil {
		t.Fatalf("peer watch: %v", err)
	}
	ownChanges, err := writer.Watch(ctx, "k")
	if err != nil {
		t.Fatalf("own watch: %v", err)
	}

	if err := writer.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case change := <-peerChanges:
		if change.Key != "k" {
			t.Fatalf("change key = %q, want k", change.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected peer delivery")
	}

	select {
	case change := <-ownChanges:
		t.Fatalf("own write should be filtered, got %+v", change)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisWatchIgnoresOtherKeys(t *testing.T) {
	redis := miniredis.RunT(t)
	writer, err := NewRedis(redis.Addr(), "")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	watcher, err := NewRedis(redis.Addr(), "")
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := watcher.Watch(ctx, "watched")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := writer.Set(ctx, "other", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case change := <-changes:
		t.Fatalf("unwatched key should not be delivered, got %+v", change)
	case <-time.After(100 * time.Millisecond):
	}
}
