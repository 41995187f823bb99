package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "<1h anticipation", NewValidation("<1h anticipation").Error())
	assert.Equal(t, "start: must be an exact hour", NewFieldValidation("start", "must be an exact hour").Error())
	assert.Equal(t, "booking conflict: overlap", NewConflict("booking", "overlap").Error())
	assert.Equal(t, "price not found", NewNotFound("price").Error())
	assert.Equal(t, "forbidden", ForbiddenError{}.Error())
	assert.Equal(t, "payment processor create refund failed (card_declined): declined",
		ProcessorError{Op: "create refund", Code: "card_declined", Err: errors.New("declined")}.Error())
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	base := errors.New("stripe timeout")

	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"validation", NewValidation("bad"), IsValidation},
		{"conflict", NewConflict("payment", "already verified"), IsConflict},
		{"not found", NewNotFound("booking"), IsNotFound},
		{"forbidden", NewForbidden("not yours"), IsForbidden},
		{"processor", ProcessorError{Op: "transfer", Err: base}, IsProcessor},
		{"internal", InternalError{Err: base}, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.True(t, tt.is(wrapped))
			assert.False(t, tt.is(errors.New("plain")))
		})
	}

	assert.ErrorIs(t, fmt.Errorf("refund: %w", ProcessorError{Op: "refund", Err: base}), base)
}
