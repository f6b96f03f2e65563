// Package intake creates notifications and hands them to the dispatch trigger.
package intake

import (
	"context"

	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"
	"message-notifier/internal/queue"
)

// Store is the part of the notification store intake writes to.
type Store interface {
	Create(ctx context.Context, recipientID, message string) (*models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
}

type Service struct {
	store   Store
	trigger queue.Trigger
	logger  logger.Logger
}

func NewService(store Store, trigger queue.Trigger, log logger.Logger) *Service {
	return &Service{
		store:   store,
		trigger: trigger,
		logger:  log.WithFields(map[string]interface{}{"component": "intake"}),
	}
}

// Submit persists a pending notification and schedules its first dispatch
// cycle. When scheduling fails the created record is returned together with
// the error; it stays pending and can be dispatched later.
func (s *Service) Submit(ctx context.Context, recipientID, message string) (*models.Notification, error) {
	n, err := s.store.Create(ctx, recipientID, message)
	if err != nil {
		return nil, err
	}

	if err := s.trigger.Enqueue(ctx, n.ID); err != nil {
		s.logger.Error("failed to enqueue dispatch", map[string]interface{}{
			"notificationId": n.ID,
			"recipientId":    recipientID,
			"error":          err,
		})
		return n, err
	}

	s.logger.Info("notification submitted", map[string]interface{}{
		"notificationId": n.ID,
		"recipientId":    recipientID,
	})
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Notification, error) {
	return s.store.GetByID(ctx, id)
}
