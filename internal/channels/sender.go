// Package channels implements the delivery transports a notification can be
// sent through. Every sender reports a plain success flag: transport errors
// are logged and turned into false at the sender boundary.
package channels

import (
	"context"
	"fmt"

	"message-notifier/internal/models"
)

// Sender attempts delivery of message to recipient through one transport.
type Sender interface {
	Send(ctx context.Context, recipient models.Recipient, message string) bool
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient models.Recipient, message string) bool

func (f SenderFunc) Send(ctx context.Context, recipient models.Recipient, message string) bool {
	return f(ctx, recipient, message)
}

// Target is a sender together with the name it is reported under.
type Target struct {
	Name   string
	Sender Sender
}

// SafeSend invokes s and converts a panic inside it into an error so callers
// can keep iterating over the remaining channels.
func SafeSend(ctx context.Context, s Sender, recipient models.Recipient, message string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if e, isErr := r.(error); isErr {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	if s == nil {
		return false, fmt.Errorf("no sender configured")
	}
	return s.Send(ctx, recipient, message), nil
}
