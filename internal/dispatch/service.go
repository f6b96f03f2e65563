// Package dispatch runs one delivery cycle for a pending notification: the
// channels are tried in the configured order until one accepts the message,
// and the outcome is written back to the notification record.
//
// Callers must serialize DispatchOnce per notification id; two concurrent
// cycles on the same record are rejected by the store's status guard but may
// both reach the transports before that.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"message-notifier/internal/channels"
	"message-notifier/internal/common/config"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/common/metrics"
	"message-notifier/internal/models"
)

// Store is the persistence the dispatch cycle needs. Every write is applied
// as a single statement.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	MarkFailed(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string, channel models.Channel, sentAt time.Time) error
	RecordFailedCycle(ctx context.Context, id string, retryCount int, channel models.Channel) error
}

// SenderResolver looks up the sender for a channel.
type SenderResolver interface {
	Get(ch models.Channel) (channels.Sender, bool)
}

// Policy is the fixed fallback order and the retry ceiling shared by every
// notification.
type Policy struct {
	ChannelOrder []models.Channel
	MaxRetries   int
}

// PolicyFromConfig builds the policy from the dispatch config section.
func PolicyFromConfig(cfg config.DispatchConfig) (Policy, error) {
	order, err := models.ParseChannels(cfg.ChannelOrder)
	if err != nil {
		return Policy{}, fmt.Errorf("dispatch: %w", err)
	}
	return Policy{ChannelOrder: order, MaxRetries: cfg.MaxRetries}, nil
}

type Service struct {
	policy  Policy
	store   Store
	senders SenderResolver
	logger  logger.Logger
	now     func() time.Time
}

func NewService(policy Policy, store Store, senders SenderResolver, log logger.Logger) (*Service, error) {
	if len(policy.ChannelOrder) == 0 {
		return nil, fmt.Errorf("dispatch: channel order is empty")
	}
	if policy.MaxRetries < 0 {
		return nil, fmt.Errorf("dispatch: negative retry ceiling %d", policy.MaxRetries)
	}
	return &Service{
		policy:  policy,
		store:   store,
		senders: senders,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatch"}),
		now:     time.Now,
	}, nil
}

// DispatchOnce performs one dispatch cycle and returns the record as it was
// left by the cycle.
//
// A terminal record is returned untouched. A record whose retry count already
// reached the ceiling is marked failed without any send, so a record only
// turns failed on the call after its last failed cycle. Otherwise the first
// channel that accepts the message wins; if none does, the retry count grows
// by one and the status stays pending.
//
// Once the record is loaded the outcome is always written: the store writes
// run on a context detached from ctx's deadline and cancellation, so a cycle
// whose sends outlive the caller still records what was delivered.
func (s *Service) DispatchOnce(ctx context.Context, id string) (*models.Notification, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		metrics.DispatchCycles.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	log := s.logger.WithFields(map[string]interface{}{"notificationId": id})
	writeCtx := context.WithoutCancel(ctx)

	if n.Status.IsTerminal() {
		log.Info("notification already terminal, skipping", map[string]interface{}{"status": string(n.Status)})
		metrics.DispatchCycles.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return n, nil
	}

	if n.RetryCount >= s.policy.MaxRetries {
		if err := s.store.MarkFailed(writeCtx, id); err != nil {
			metrics.DispatchCycles.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}
		n.Status = models.StatusFailed
		log.Warn("retry ceiling reached, notification failed", map[string]interface{}{
			"retryCount": n.RetryCount,
			"maxRetries": s.policy.MaxRetries,
		})
		metrics.DispatchCycles.WithLabelValues(metrics.OutcomeExhausted).Inc()
		return n, nil
	}

	var last models.Channel
	for _, ch := range s.policy.ChannelOrder {
		last = ch
		if s.attempt(ctx, log, ch, n) {
			sentAt := s.now().UTC()
			if err := s.store.MarkSent(writeCtx, id, ch, sentAt); err != nil {
				metrics.DispatchCycles.WithLabelValues(metrics.OutcomeError).Inc()
				return nil, err
			}
			n.Status = models.StatusSent
			n.LastChannel = ch
			n.SentAt = &sentAt
			log.Info("notification sent", map[string]interface{}{"channel": string(ch)})
			metrics.DispatchCycles.WithLabelValues(metrics.OutcomeSent).Inc()
			return n, nil
		}
	}

	retries := n.RetryCount + 1
	if err := s.store.RecordFailedCycle(writeCtx, id, retries, last); err != nil {
		metrics.DispatchCycles.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	n.RetryCount = retries
	n.LastChannel = last
	log.Warn("all channels failed", map[string]interface{}{
		"retryCount":  retries,
		"lastChannel": string(last),
	})
	metrics.DispatchCycles.WithLabelValues(metrics.OutcomeRetry).Inc()
	return n, nil
}

func (s *Service) attempt(ctx context.Context, log logger.Logger, ch models.Channel, n *models.Notification) bool {
	sender, found := s.senders.Get(ch)
	if !found {
		log.Warn("no sender registered for channel", map[string]interface{}{"channel": string(ch)})
		metrics.RecordAttempt(string(ch), false)
		return false
	}

	ok, err := channels.SafeSend(ctx, sender, n.Recipient, n.Message)
	if err != nil {
		log.Error("sender panicked", map[string]interface{}{
			"channel": string(ch),
			"error":   err,
		})
	}
	metrics.RecordAttempt(string(ch), ok)
	return ok
}
