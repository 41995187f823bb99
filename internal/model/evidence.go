package model

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceFile зашифрованное доказательство посещения
type EvidenceFile struct {
	ID          uuid.UUID `json:"id"`
	BookingID   int64     `json:"booking_id"`
	UploaderID  int64     `json:"uploader_id"`
	Party       Party     `json:"party"`
	ContentType string    `json:"content_type"`
	Nonce       []byte    `json:"-"`
	Ciphertext  []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
