package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports failed jobs back to Zeebe: retryable codes fail the job
// with remaining retries, everything else is thrown as a BPMN error so the
// process model can route it.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Wrap(err)
	varsJSON, _ := json.Marshal(ToErrorVariables(stdErr))
	retries := h.retriesFor(stdErr, job.Retries)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"message":          stdErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	if retries > 0 {
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(int32(retries)).
			ErrorMessage(stdErr.Error())
		withVars, varErr := cmd.VariablesFromString(string(varsJSON))
		if varErr != nil {
			_, _ = cmd.Send(ctx)
			return
		}
		if _, sendErr := withVars.Send(ctx); sendErr != nil {
			h.logger.Error("failed to send fail job command", map[string]interface{}{"error": sendErr})
		}
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(string(stdErr.Code)).
		ErrorMessage(stdErr.Message)
	withVars, varErr := cmd.VariablesFromString(string(varsJSON))
	if varErr != nil {
		_, _ = cmd.Send(ctx)
		return
	}
	if _, sendErr := withVars.Send(ctx); sendErr != nil {
		h.logger.Error("failed to send throw error command", map[string]interface{}{"error": sendErr})
	}
}

// retriesFor never hands Zeebe more retries than the job still has.
func (h *ErrorHandler) retriesFor(stdErr *StandardError, remaining int32) int {
	if !stdErr.Retryable {
		return 0
	}
	retries := GetRetryCount(stdErr.Code)
	if remaining > 0 && int(remaining)-1 < retries {
		retries = int(remaining) - 1
	}
	if retries < 0 {
		return 0
	}
	return retries
}

// ToErrorVariables flattens err into process variables.
func ToErrorVariables(err *StandardError) map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    string(err.Code),
		"errorMessage": err.Message,
		"errorDetails": err.Details,
		"retryable":    err.Retryable,
		"timestamp":    err.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	for k, v := range err.Metadata {
		vars[k] = v
	}
	return vars
}
