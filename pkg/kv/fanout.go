package kv

import "context"

// Fanout joins the in-process hub with an optional cross-process notifier so
// stores publish once and both audiences hear it.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout builds a composite notifier; nil members are skipped.
func NewFanout(notifiers ...Notifier) *Fanout {
	clean := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			clean = append(clean, n)
		}
	}
	return &Fanout{notifiers: clean}
}

func (f *Fanout) Publish(ctx context.Context, name, payload string) error {
	for _, n := range f.notifiers {
		if err := n.Publish(ctx, name, payload); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) Subscribe(name string, fn func(payload string)) (unsubscribe func()) {
	cancels := make([]func(), 0, len(f.notifiers))
	for _, n := range f.notifiers {
		cancels = append(cancels, n.Subscribe(name, fn))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
