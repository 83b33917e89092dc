package history

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/domain"
)

const (
	headDedupWindow = 1200 * time.Millisecond
	recentKeyTTL    = 1500 * time.Millisecond
)

// attemptKey derives the canonical identity of an outfit attempt: person
// source plus every slot's label and inline image payload, in fixed slot
// order. Generated ids, timestamps and product refs do not participate.
func attemptKey(a domain.OutfitAttempt) string {
	h := sha256.New()
	h.Write([]byte(a.PersonSource.Normalize()))
	for _, slot := range a.Slots() {
		h.Write([]byte{'|'})
		// An unpopulated slot hashes like an absent one.
		if !slot.Populated() {
			continue
		}
		h.Write([]byte(slot.Label))
		h.Write([]byte{0})
		if slot.Image != nil {
			h.Write([]byte(slot.Image.MimeType))
			h.Write([]byte{0})
			h.Write([]byte(slot.Image.Base64))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// recentKeys remembers attempt keys for a short TTL so bursts of identical
// submissions collapse to one record even when they interleave with other
// inserts or race before either write is visible. The map is process-local
// on purpose: peers converge through the shared store, not shared guard state.
type recentKeys struct {
	ttl  time.Duration
	mu   sync.Mutex
	seen map[string]time.Time
}

func newRecentKeys(ttl time.Duration) *recentKeys {
	return &recentKeys{ttl: ttl, seen: make(map[string]time.Time)}
}

// check prunes expired entries and reports whether key was seen within the TTL.
func (r *recentKeys) check(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, at := range r.seen {
		if now.Sub(at) >= r.ttl {
			delete(r.seen, k)
		}
	}
	_, ok := r.seen[key]
	return ok
}

// remember records the key once an insert is accepted.
func (r *recentKeys) remember(key string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[key] = now
}
