// internal/workers/notification/broadcast-notification/models.go
package broadcastnotification

import "message-notifier/internal/common/validation"

type Input struct {
	RecipientID string   `json:"recipientId"`
	Message     string   `json:"message"`
	Channels    []string `json:"channels,omitempty"`
}

type Output struct {
	RecipientID string            `json:"recipientId"`
	Results     map[string]string `json:"results"`
	Delivered   int               `json:"delivered"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["recipientId", "message"],
	"properties": {
		"recipientId": {"type": "string", "minLength": 1},
		"message": {"type": "string"},
		"channels": {
			"type": "array",
			"items": {"type": "string", "enum": ["email", "sms", "telegram"]}
		}
	}
}`)
