package repository

import (
	"context"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/Freeeeeet/onlycation/internal/repository/base"
)

type EvidenceRepository struct {
	db base.DB
}

func NewEvidenceRepository(db base.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create сохраняет зашифрованный файл доказательства
func (r *EvidenceRepository) Create(ctx context.Context, f *model.EvidenceFile) error {
	query := `
		INSERT INTO evidence_files (id, booking_id, uploader_id, party, content_type, nonce, ciphertext)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, f.ID, f.BookingID, f.UploaderID, f.Party, f.ContentType, f.Nonce, f.Ciphertext).
		Scan(&f.CreatedAt)
	if err != nil {
		return wrapInsert("create evidence file", err)
	}
	return nil
}
