// Package fanout broadcasts one message through every given sender and
// reports each outcome. It has no retry state and never stops early.
package fanout

import (
	"context"
	"strings"

	"message-notifier/internal/channels"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/common/metrics"
	"message-notifier/internal/models"
)

// Per-sender outcomes. Faults are reported as ResultErrorPrefix followed by
// the fault description.
const (
	ResultOK          = "OK"
	ResultFail        = "FAIL"
	ResultErrorPrefix = "ERROR: "
	ResultError       = "ERROR"
)

// Outcomes reduces a NotifyAll report to one of ResultOK, ResultFail or
// ResultError per sender, dropping the fault descriptions.
func Outcomes(results map[string]string) map[string]string {
	out := make(map[string]string, len(results))
	for name, result := range results {
		if strings.HasPrefix(result, ResultErrorPrefix) {
			out[name] = ResultError
			continue
		}
		out[name] = result
	}
	return out
}

type Notifier struct {
	targets []channels.Target
	logger  logger.Logger
}

func NewNotifier(targets []channels.Target, log logger.Logger) *Notifier {
	return &Notifier{
		targets: targets,
		logger:  log.WithFields(map[string]interface{}{"component": "fanout"}),
	}
}

// NotifyAll sends message through every target in order. When two targets
// share a name the later outcome is kept.
func (n *Notifier) NotifyAll(ctx context.Context, recipient models.Recipient, message string) map[string]string {
	results := make(map[string]string, len(n.targets))

	for _, t := range n.targets {
		ok, err := channels.SafeSend(ctx, t.Sender, recipient, message)
		switch {
		case err != nil:
			results[t.Name] = ResultErrorPrefix + err.Error()
			n.logger.Error("sender fault during broadcast", map[string]interface{}{
				"sender":      t.Name,
				"recipientId": recipient.ID,
				"error":       err,
			})
		case ok:
			results[t.Name] = ResultOK
		default:
			results[t.Name] = ResultFail
		}
		metrics.RecordAttempt(t.Name, ok)
	}

	n.logger.Info("broadcast finished", map[string]interface{}{
		"recipientId": recipient.ID,
		"results":     results,
	})
	return results
}
