package history

import "testing"

func TestNotifierInvokesInRegistrationOrder(t *testing.T) {
	n := NewNotifier()
	var order []string
	n.Subscribe(func() { order = append(order, "first") })
	n.Subscribe(func() { order = append(order, "second") })

	n.Notify()

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
}

func TestNotifierFaultIsolation(t *testing.T) {
	n := NewNotifier()
	var order []string
	n.Subscribe(func() { order = append(order, "before") })
	n.Subscribe(func() { panic("listener broke") })
	n.Subscribe(func() { order = append(order, "after") })

	n.Notify()

	if len(order) != 2 || order[0] != "before" || order[1] != "after" {
		t.Fatalf("panicking listener must not stop the rest, got %v", order)
	}
}

func TestNotifierUnsubscribeIsExactAndIdempotent(t *testing.T) {
	n := NewNotifier()
	var first, second int
	unsubscribe := n.Subscribe(func() { first++ })
	n.Subscribe(func() { second++ })

	unsubscribe()
	unsubscribe()
	n.Notify()

	if first != 0 {
		t.Fatalf("unsubscribed listener fired %d times", first)
	}
	if second != 1 {
		t.Fatalf("remaining listener fired %d times, want 1", second)
	}
}

func TestNotifierSnapshotsRegistry(t *testing.T) {
	n := NewNotifier()
	var late int
	n.Subscribe(func() {
		n.Subscribe(func() { late++ })
	})

	n.Notify()
	if late != 0 {
		t.Fatalf("listener added during delivery fired in the same round")
	}

	n.Notify()
	if late != 1 {
		t.Fatalf("listener added during delivery should fire next round, got %d", late)
	}
}
