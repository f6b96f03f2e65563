// internal/workers/notification/dispatch-notification/models.go
package dispatchnotification

import "message-notifier/internal/common/validation"

type Input struct {
	NotificationID string `json:"notificationId"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	RetryCount     int    `json:"retryCount"`
	LastChannel    string `json:"lastChannel,omitempty"`
	SentAt         string `json:"sentAt,omitempty"` // ISO 8601
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["notificationId"],
	"properties": {
		"notificationId": {"type": "string", "minLength": 1}
	}
}`)
