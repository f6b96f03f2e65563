package queue

import (
	"context"

	"message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"
)

// ProcessStarter creates workflow instances; implemented by camunda.Client.
type ProcessStarter interface {
	CreateProcessInstance(ctx context.Context, processID string, vars map[string]interface{}) (int64, error)
}

// ZeebeTrigger starts one instance of the dispatch process per notification.
// The process model activates the notification.dispatch job, and Zeebe's
// job retries decide when a failed cycle runs again.
type ZeebeTrigger struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewZeebeTrigger(starter ProcessStarter, processID string, log logger.Logger) *ZeebeTrigger {
	return &ZeebeTrigger{
		starter:   starter,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "zeebe-trigger", "processId": processID}),
	}
}

func (t *ZeebeTrigger) Enqueue(ctx context.Context, id string) error {
	key, err := t.starter.CreateProcessInstance(ctx, t.processID, map[string]interface{}{
		"notificationId": id,
	})
	if err != nil {
		return errors.NewEnqueueFailedError(id, err)
	}

	t.logger.Info("dispatch process started", map[string]interface{}{
		"notificationId":     id,
		"processInstanceKey": key,
	})
	return nil
}
