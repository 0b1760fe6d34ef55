package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		conflict   bool
		validation bool
		msg        string
	}{
		{
			name:     "not found",
			err:      NewNotFound("session", 1234),
			notFound: true,
			msg:      "session '1234' not found",
		},
		{
			name:     "conflict",
			err:      NewConflict("round %d is not running", 2),
			conflict: true,
			msg:      "conflict: round 2 is not running",
		},
		{
			name:       "validation",
			err:        NewValidation("text", "must be at most %d characters", 255),
			validation: true,
			msg:        "validation failed: text: must be at most 255 characters",
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("load session: %w", NewNotFound("session", 42)),
			notFound: true,
			msg:      "load session: session '42' not found",
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			msg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.notFound || tt.conflict || tt.validation, IsDomain(tt.err))
			assert.Equal(t, tt.msg, tt.err.Error())
		})
	}
}

func TestNotFoundWithoutID(t *testing.T) {
	assert.Equal(t, "player not found", (&NotFoundError{Resource: "player"}).Error())
}
