// internal/models/notification.go
package models

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Channel identifies one delivery transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// ParseChannel accepts the identifiers used in configuration.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS, ChannelTelegram:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// ParseChannels converts a configured order, preserving it.
func ParseChannels(names []string) ([]Channel, error) {
	out := make([]Channel, 0, len(names))
	for _, n := range names {
		ch, err := ParseChannel(n)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// Notification is a message addressed to one recipient together with its
// delivery state. LastChannel is empty until the first dispatch cycle and
// SentAt is nil until the record is sent.
type Notification struct {
	ID          string     `json:"id"`
	Recipient   Recipient  `json:"recipient"`
	Message     string     `json:"message"`
	Status      Status     `json:"status"`
	RetryCount  int        `json:"retryCount"`
	LastChannel Channel    `json:"lastChannel,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
