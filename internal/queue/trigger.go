// Package queue hands notification ids to whatever runs the dispatch cycle.
// Enqueue never waits for the cycle itself.
package queue

import (
	"context"
	stderrors "errors"
)

var (
	ErrQueueFull = stderrors.New("dispatch queue full")
	ErrStopped   = stderrors.New("dispatch queue stopped")
)

// Trigger schedules a dispatch cycle for a notification.
type Trigger interface {
	Enqueue(ctx context.Context, notificationID string) error
}

// DispatchFunc runs one dispatch cycle.
type DispatchFunc func(ctx context.Context, notificationID string) error
