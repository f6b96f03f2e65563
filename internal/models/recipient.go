// internal/models/recipient.go
package models

import "strings"

// Recipient carries the delivery attributes of a registered user.
type Recipient struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	TelegramID  string `json:"telegramId,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
}

func (r Recipient) DisplayName() string {
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name == "" {
		return r.ID
	}
	return name
}

// PhoneLegs splits a phone attribute that may hold several comma separated
// numbers. Blank entries are dropped.
func (r Recipient) PhoneLegs() []string {
	var legs []string
	for _, p := range strings.Split(r.PhoneNumber, ",") {
		if p = strings.TrimSpace(p); p != "" {
			legs = append(legs, p)
		}
	}
	return legs
}
