package kv

import (
	"context"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var historyBucket = []byte("history")

// Bolt stores keys in a single-file bbolt database. It has no native change
// feed; wrap it in a FeedStore when cross-process sync is needed.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens or creates the database file.
func NewBolt(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(_ context.Context, key string) (string, bool, error) {
	var val []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(historyBucket).Get([]byte(key)); raw != nil {
			val = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt get %s: %w", key, err)
	}
	if val == nil {
		return "", false, nil
	}
	return string(val), true, nil
}

func (b *Bolt) Set(_ context.Context, key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
