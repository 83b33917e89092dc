// Package history implements the bounded, deduplicating, persisted record of
// virtual try-on attempts and their generated results. The durable store is
// the sole source of truth: every read re-derives the sequence from it and
// every mutation is a read-modify-write, so process memory holds nothing but
// the dedup guard's recent-key cache and the notifier's listener registry.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/domain"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/kv"
)

// DefaultCapacity bounds each sequence to the eight most recent records.
const DefaultCapacity = 8

const defaultKeyPrefix = "lookbook"

// OutputPatch is the only supported output mutation: attaching or replacing
// an evaluation. The score is carried opaquely; scale interpretation belongs
// to whoever produced it.
type OutputPatch struct {
	Evaluation *domain.Evaluation
}

// Store is a bounded, newest-first try-on history over a durable key-value
// medium. Its operations never return errors: persistence failures degrade
// to log lines and the next read reflects whatever actually persisted.
type Store struct {
	kv       kv.Store
	capacity int
	prefix   string
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger

	inputsKey  string
	outputsKey string

	recent   *recentKeys
	notifier *Notifier

	mu sync.Mutex // serializes local read-modify-write cycles
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides the per-sequence record cap.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock injects the time source used for timestamps and dedup windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDFunc injects the record id generator.
func WithIDFunc(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithKeyPrefix namespaces the two storage keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a history store over the given medium.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:       store,
		capacity: DefaultCapacity,
		prefix:   defaultKeyPrefix,
		now:      time.Now,
		newID:    util.NewID,
		logger:   slog.Default().With("component", "history"),
		recent:   newRecentKeys(recentKeyTTL),
		notifier: NewNotifier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inputsKey = s.prefix + ":history:inputs"
	s.outputsKey = s.prefix + ":history:outputs"
	return s
}

// AddInput records a try-on attempt unless a guard rejects it. Rejections
// are silent: callers must not assume every call stores a record.
func (s *Store) AddInput(ctx context.Context, attempt domain.OutfitAttempt) {
	attempt.PersonSource = attempt.PersonSource.Normalize()
	if attempt.PersonSource != domain.PersonUserUploaded && !attempt.Populated() {
		s.logger.Debug("skipping empty outfit attempt")
		return
	}
	key := attemptKey(attempt)

	s.mu.Lock()
	now := s.now()
	records := s.readInputs(ctx)
	if len(records) > 0 && attemptKey(records[0].OutfitAttempt) == key && now.Sub(records[0].CreatedAt) < headDedupWindow {
		s.mu.Unlock()
		s.logger.Debug("skipping duplicate attempt matching head")
		return
	}
	if s.recent.check(key, now) {
		s.mu.Unlock()
		s.logger.Debug("skipping recently seen attempt")
		return
	}
	s.recent.remember(key, now)

	record := domain.InputRecord{ID: s.newID(), CreatedAt: now, OutfitAttempt: attempt}
	records = append([]domain.InputRecord{record}, records...)
	if len(records) > s.capacity {
		records = records[:s.capacity]
	}
	s.writeInputs(ctx, records)
	s.mu.Unlock()

	s.notifier.Notify()
}

// AddOutput records a generated image at the newest position. Every image is
// recorded; outputs carry no dedup or emptiness guard.
func (s *Store) AddOutput(ctx context.Context, image string) {
	s.mu.Lock()
	record := domain.OutputRecord{ID: s.newID(), CreatedAt: s.now(), Image: image}
	records := append([]domain.OutputRecord{record}, s.readOutputs(ctx)...)
	if len(records) > s.capacity {
		records = records[:s.capacity]
	}
	s.writeOutputs(ctx, records)
	s.mu.Unlock()

	s.notifier.Notify()
}

// UpdateOutput merges the patch into the identified record. An unknown id is
// a no-op: no write, no notification. Update is not an upsert.
func (s *Store) UpdateOutput(ctx context.Context, id string, patch OutputPatch) {
	s.mu.Lock()
	records := s.readOutputs(ctx)
	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		s.logger.Debug("ignoring update for unknown output", "id", id)
		return
	}
	if patch.Evaluation != nil {
		eval := *patch.Evaluation
		if eval.EvaluatedAt.IsZero() {
			eval.EvaluatedAt = s.now()
		}
		records[idx].Evaluation = &eval
	}
	s.writeOutputs(ctx, records)
	s.mu.Unlock()

	s.notifier.Notify()
}

// RemoveOutput filters the identified record out. The write and the
// notification happen even when the id was absent; removal is idempotent.
func (s *Store) RemoveOutput(ctx context.Context, id string) {
	s.mu.Lock()
	records := s.readOutputs(ctx)
	kept := make([]domain.OutputRecord, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.writeOutputs(ctx, kept)
	s.mu.Unlock()

	s.notifier.Notify()
}

// Inputs returns the input history, newest first. Reads are stateless pass-
// throughs to the durable store and never mutate or notify.
func (s *Store) Inputs(ctx context.Context) []domain.InputRecord {
	return s.readInputs(ctx)
}

// Outputs returns the output history, newest first.
func (s *Store) Outputs(ctx context.Context) []domain.OutputRecord {
	return s.readOutputs(ctx)
}

// ClearInputs empties the input sequence and notifies.
func (s *Store) ClearInputs(ctx context.Context) {
	s.mu.Lock()
	s.writeInputs(ctx, []domain.InputRecord{})
	s.mu.Unlock()

	s.notifier.Notify()
}

// ClearOutputs empties the output sequence and notifies.
func (s *Store) ClearOutputs(ctx context.Context) {
	s.mu.Lock()
	s.writeOutputs(ctx, []domain.OutputRecord{})
	s.mu.Unlock()

	s.notifier.Notify()
}

// Subscribe registers a listener invoked synchronously after every local
// mutation and after observed peer writes. Listeners get no payload; they
// re-read whichever sequence they care about.
func (s *Store) Subscribe(fn func()) func() {
	return s.notifier.Subscribe(fn)
}

// Run watches the durable medium for peer writes on the two owned keys and
// replays the local refresh path: listeners are re-notified and re-read.
// It returns when ctx ends. Media without a change feed degrade to
// local-only notification.
func (s *Store) Run(ctx context.Context) error {
	watcher, ok := s.kv.(kv.Watcher)
	if !ok {
		s.logger.Info("storage medium has no change feed; cross-context sync disabled")
		return nil
	}
	changes, err := watcher.Watch(ctx, s.inputsKey, s.outputsKey)
	if err != nil {
		return fmt.Errorf("watch history keys: %w", err)
	}
	s.logger.Info("watching history keys", "inputs", s.inputsKey, "outputs", s.outputsKey)
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				s.logger.Warn("history change feed ended")
				return nil
			}
			if change.Key != s.inputsKey && change.Key != s.outputsKey {
				continue
			}
			s.logger.Debug("peer change observed", "key", change.Key)
			s.notifier.Notify()
		}
	}
}

// SortedByScore returns a copy ordered best evaluation first; records
// without an evaluation follow in their stored relative order. The stored
// sequence itself is never reordered by a view.
func SortedByScore(records []domain.OutputRecord) []domain.OutputRecord {
	out := append([]domain.OutputRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].Evaluation, out[j].Evaluation
		if (ei == nil) != (ej == nil) {
			return ej == nil
		}
		if ei == nil {
			return false
		}
		return ei.Score > ej.Score
	})
	return out
}

func (s *Store) readInputs(ctx context.Context) []domain.InputRecord {
	raw, ok, err := s.kv.Get(ctx, s.inputsKey)
	if err != nil {
		s.logger.Warn("read input history failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return decodeInputs(raw)
}

func (s *Store) readOutputs(ctx context.Context) []domain.OutputRecord {
	raw, ok, err := s.kv.Get(ctx, s.outputsKey)
	if err != nil {
		s.logger.Warn("read output history failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return decodeOutputs(raw)
}

// Persistence failures do not surface: local subscribers are still notified
// with the just-computed state, and the next read reflects only what landed.
func (s *Store) writeInputs(ctx context.Context, records []domain.InputRecord) {
	raw, err := encodeRecords(records)
	if err != nil {
		s.logger.Warn("encode input history failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.inputsKey, raw); err != nil {
		s.logger.Warn("persist input history failed", "error", err)
	}
}

func (s *Store) writeOutputs(ctx context.Context, records []domain.OutputRecord) {
	raw, err := encodeRecords(records)
	if err != nil {
		s.logger.Warn("encode output history failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.outputsKey, raw); err != nil {
		s.logger.Warn("persist output history failed", "error", err)
	}
}
