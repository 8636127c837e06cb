// Package service creates analysis service processes.
//
// A process announces nothing when it is ready. Its only observable
// readiness side effect is binding the service slot of the generation's
// channel.Pair, which the lifecycle manager polls for.
package service

import (
	"context"

	"github.com/Iron-Ham/cadencehost/internal/channel"
)

// Process is a running analysis service instance.
type Process interface {
	// ID uniquely identifies the process.
	ID() string
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// Close shuts the process down, forcing it if ctx ends first.
	Close(ctx context.Context) error
}

// Factory creates processes bound to a pair. Create may take arbitrary
// time; it should return once the process exists, not once it is ready.
type Factory interface {
	Create(ctx context.Context, pair *channel.Pair) (Process, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, pair *channel.Pair) (Process, error)

// Create implements Factory.
func (f FactoryFunc) Create(ctx context.Context, pair *channel.Pair) (Process, error) {
	return f(ctx, pair)
}
