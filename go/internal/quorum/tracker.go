// Package quorum tracks which players of a session want to advance the current phase.
package quorum

import (
	"github.com/google/uuid"
)

// Tracker holds the eligible players of one session and the subset that signalled to
// advance. It is not safe for concurrent use; the owning session serializes access.
type Tracker struct {
	eligible  map[uuid.UUID]struct{}
	signalled map[uuid.UUID]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		eligible:  make(map[uuid.UUID]struct{}),
		signalled: make(map[uuid.UUID]struct{}),
	}
}

// Reset replaces the eligible set and clears every signal.
func (t *Tracker) Reset(eligible []uuid.UUID) {
	t.eligible = make(map[uuid.UUID]struct{}, len(eligible))
	for _, id := range eligible {
		t.eligible[id] = struct{}{}
	}
	t.signalled = make(map[uuid.UUID]struct{}, len(eligible))
}

// Signal records that player wants to advance. Unknown players and repeated signals
// are ignored. It reports whether the signal was recorded.
func (t *Tracker) Signal(player uuid.UUID) bool {
	if _, ok := t.eligible[player]; !ok {
		return false
	}
	if _, ok := t.signalled[player]; ok {
		return false
	}
	t.signalled[player] = struct{}{}
	return true
}

// Remove drops a departed player from both sets so it cannot block agreement.
func (t *Tracker) Remove(player uuid.UUID) {
	delete(t.eligible, player)
	delete(t.signalled, player)
}

// AllAgreed reports whether every eligible player signalled. An empty eligible set
// never agrees, so a phase with no players left can only end by timeout.
func (t *Tracker) AllAgreed() bool {
	if len(t.eligible) == 0 {
		return false
	}
	if len(t.signalled) != len(t.eligible) {
		return false
	}
	for id := range t.eligible {
		if _, ok := t.signalled[id]; !ok {
			return false
		}
	}
	return true
}

// Eligible returns the number of eligible players.
func (t *Tracker) Eligible() int {
	return len(t.eligible)
}

// Signalled returns the number of players that signalled.
func (t *Tracker) Signalled() int {
	return len(t.signalled)
}
