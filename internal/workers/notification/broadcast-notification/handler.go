// internal/workers/notification/broadcast-notification/handler.go
package broadcastnotification

import (
	"context"
	"encoding/json"
	"time"

	"message-notifier/internal/channels"
	"message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/common/metrics"
	"message-notifier/internal/common/observability"
	"message-notifier/internal/fanout"
	"message-notifier/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "notification.broadcast"
)

type RecipientLoader interface {
	GetRecipient(ctx context.Context, id string) (*models.Recipient, error)
}

type TargetSource interface {
	Targets(order []models.Channel) []channels.Target
}

type Handler struct {
	config       *Config
	recipients   RecipientLoader
	senders      TargetSource
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(config *Config, recipients RecipientLoader, senders TargetSource, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		recipients:   recipients,
		senders:      senders,
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
	h.obs.RecordBroadcast(ctx, fanout.Outcomes(output.Results))
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

// execute never fails because of a sender: every sender outcome is part of
// the report. Only an unknown recipient or a storage error fails the job.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	order := h.config.DefaultChannels
	if len(input.Channels) > 0 {
		parsed, err := models.ParseChannels(input.Channels)
		if err != nil {
			return nil, errors.NewInvalidInputError(err.Error())
		}
		order = parsed
	}

	recipient, err := h.recipients.GetRecipient(ctx, input.RecipientID)
	if err != nil {
		return nil, err
	}

	results := fanout.NewNotifier(h.senders.Targets(order), h.logger).
		NotifyAll(ctx, *recipient, input.Message)

	delivered := 0
	for _, r := range results {
		if r == fanout.ResultOK {
			delivered++
		}
	}

	return &Output{
		RecipientID: input.RecipientID,
		Results:     results,
		Delivered:   delivered,
	}, nil
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
