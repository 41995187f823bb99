package model

import "time"

// PaymentEvent входящий вебхук провайдера, пишется один раз по event id
type PaymentEvent struct {
	EventID     string     `json:"event_id"`
	Type        string     `json:"type"`
	Payload     []byte     `json:"-"`
	Status      string     `json:"status"` // received | processed | failed | ignored
	Error       *string    `json:"error,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
