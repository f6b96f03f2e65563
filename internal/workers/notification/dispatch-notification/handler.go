// internal/workers/notification/dispatch-notification/handler.go
package dispatchnotification

import (
	"context"
	"encoding/json"
	"time"

	"message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/common/metrics"
	"message-notifier/internal/common/observability"
	"message-notifier/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "notification.dispatch"

	lockPrefix = "notification:lock:"
)

type Dispatcher interface {
	DispatchOnce(ctx context.Context, id string) (*models.Notification, error)
}

// Locker serializes cycles for one notification across worker processes.
// database.RedisClient implements it.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type Handler struct {
	config       *Config
	dispatcher   Dispatcher
	locker       Locker
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

// NewHandler builds the job handler. locker may be nil when no Redis is
// configured; the job's own activation is then the only serialization.
func NewHandler(config *Config, dispatcher Dispatcher, locker Locker, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		locker:       locker,
		errorHandler: errors.NewErrorHandler(log),
		obs:          obs,
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.handle(ctx, job.Variables)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start))
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())

	if err != nil {
		stdErr := errors.Wrap(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errorHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.completeJob(ctx, client, job, output)
}

func (h *Handler) handle(ctx context.Context, variables string) (*Output, error) {
	if err := inputSchema.ValidateJSON(variables); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if h.locker != nil {
		key := lockPrefix + input.NotificationID
		token := uuid.New().String()

		acquired, err := h.locker.AcquireLock(ctx, key, token, h.config.LockTTL)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("acquire dispatch lock", err)
		}
		if !acquired {
			return nil, errors.NewLockUnavailableError(input.NotificationID)
		}
		defer func() {
			// the job context may already be done here
			if err := h.locker.ReleaseLock(context.Background(), key, token); err != nil {
				h.logger.Warn("failed to release dispatch lock", map[string]interface{}{
					"notificationId": input.NotificationID,
					"error":          err,
				})
			}
		}()
	}

	n, err := h.dispatcher.DispatchOnce(ctx, input.NotificationID)
	if err != nil {
		return nil, err
	}
	return toOutput(n), nil
}

func toOutput(n *models.Notification) *Output {
	out := &Output{
		NotificationID: n.ID,
		Status:         string(n.Status),
		RetryCount:     n.RetryCount,
		LastChannel:    string(n.LastChannel),
	}
	if n.SentAt != nil {
		out.SentAt = n.SentAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
