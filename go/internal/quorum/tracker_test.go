package quorum

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAllAgreed(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tr := NewTracker()
	tr.Reset([]uuid.UUID{a, b})
	assert.False(t, tr.AllAgreed())

	assert.True(t, tr.Signal(a))
	assert.False(t, tr.AllAgreed())

	assert.True(t, tr.Signal(b))
	assert.True(t, tr.AllAgreed())
}

func TestSignalIgnoresUnknownAndRepeats(t *testing.T) {
	a, stranger := uuid.New(), uuid.New()

	tr := NewTracker()
	tr.Reset([]uuid.UUID{a})

	assert.False(t, tr.Signal(stranger))
	assert.Equal(t, 0, tr.Signalled())

	assert.True(t, tr.Signal(a))
	assert.False(t, tr.Signal(a))
	assert.Equal(t, 1, tr.Signalled())
	assert.True(t, tr.AllAgreed())
}

func TestResetClearsSignals(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tr := NewTracker()
	tr.Reset([]uuid.UUID{a, b})
	tr.Signal(a)
	tr.Signal(b)
	assert.True(t, tr.AllAgreed())

	tr.Reset([]uuid.UUID{a, b})
	assert.Equal(t, 0, tr.Signalled())
	assert.Equal(t, 2, tr.Eligible())
	assert.False(t, tr.AllAgreed())
}

func TestEmptyEligibleSetNeverAgrees(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.AllAgreed())

	tr.Reset(nil)
	assert.False(t, tr.Signal(uuid.New()))
	assert.False(t, tr.AllAgreed())

	a := uuid.New()
	tr.Reset([]uuid.UUID{a})
	tr.Signal(a)
	tr.Remove(a)
	assert.False(t, tr.AllAgreed())
}

func TestRemoveUnblocksAgreement(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tr := NewTracker()
	tr.Reset([]uuid.UUID{a, b})
	tr.Signal(a)
	assert.False(t, tr.AllAgreed())

	tr.Remove(b)
	assert.True(t, tr.AllAgreed())
}
