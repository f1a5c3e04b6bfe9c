package task

import "context"

// Notifier wakes idle dispatcher workers when new work is enqueued.
// It carries no task data; the store remains the only source of truth.
type Notifier interface {
	// Notify signals that new work may be available.
	Notify(ctx context.Context) error
	// Wake returns the channel idle workers wait on.
	Wake() <-chan struct{}
}

// LocalNotifier is an in-process Notifier. Signals coalesce: any number of
// Notify calls between two receives produce a single wake-up.
type LocalNotifier struct {
	ch chan struct{}
}

// NewLocalNotifier creates a LocalNotifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{ch: make(chan struct{}, 1)}
}

// Notify never blocks and never fails.
func (n *LocalNotifier) Notify(context.Context) error {
	select {
	case n.ch <- struct{}{}:
	default:
	}
	return nil
}

// Wake implements Notifier.
func (n *LocalNotifier) Wake() <-chan struct{} {
	return n.ch
}
