package entity

import "time"

// NotificationDelivery records the outcome of one channel dispatch for one event
type NotificationDelivery struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	EventCode      string    `json:"event_code"`
	CaseID         int64     `json:"case_id"`
	Channel        string    `json:"channel"`
	TemplateCode   string    `json:"template_code"`
	Recipient      string    `json:"recipient"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	ProviderRef    string    `json:"provider_ref,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsFailure reports whether the delivery needs operator attention
func (d *NotificationDelivery) IsFailure() bool {
	return d.Status == DeliveryStatusFailed || d.Status == DeliveryStatusRenderFailed
}
