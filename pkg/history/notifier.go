package history

import (
	"log/slog"
	"sort"
	"sync"
)

// Notifier fans a no-payload change signal out to subscribers, synchronously
// and in registration order. Listeners re-read whichever sequence they care
// about; a panicking listener is isolated so the rest still run.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func()
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]func())}
}

// Subscribe registers fn and returns an unsubscribe func that removes exactly
// this registration. Calling it more than once is safe.
func (n *Notifier) Subscribe(fn func()) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Notify invokes every listener registered at the moment of the call.
// Subscriptions changed during delivery take effect on the next round.
func (n *Notifier) Notify() {
	n.mu.Lock()
	ids := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), len(ids))
	for i, id := range ids {
		fns[i] = n.listeners[id]
	}
	n.mu.Unlock()

	for _, fn := range fns {
		invokeListener(fn)
	}
}

func invokeListener(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("history listener panicked", "panic", rec)
		}
	}()
	fn()
}
