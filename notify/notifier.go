package notify

import (
	"context"
	"errors"
)

// Notifier delivers a batch of alerts somewhere outside the process.
type Notifier interface {
	Name() string
	Send(ctx context.Context, s Summary) error
}

// Multi fans a summary out to several notifiers. Every notifier is tried;
// the errors are joined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, s Summary) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, s); err != nil {
			errs = append(errs, errors.New(n.Name()+": "+err.Error()))
		}
	}
	return errors.Join(errs...)
}
