package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a game session.
type SessionStatus string

const (
	SessionStatusOpen    SessionStatus = "OPEN"
	SessionStatusRunning SessionStatus = "RUNNING"
	SessionStatusClosed  SessionStatus = "CLOSED"
)

// RoundLength is the configured answering time of every round in a session.
type RoundLength string

const (
	RoundLengthShort  RoundLength = "SHORT"
	RoundLengthMedium RoundLength = "MEDIUM"
	RoundLengthLong   RoundLength = "LONG"
)

// Duration returns the answering countdown for the length, or 0 if unknown.
func (l RoundLength) Duration() time.Duration {
	switch l {
	case RoundLengthShort:
		return 30 * time.Second
	case RoundLengthMedium:
		return 60 * time.Second
	case RoundLengthLong:
		return 90 * time.Second
	default:
		return 0
	}
}

// Valid reports whether l is a known round length.
func (l RoundLength) Valid() bool {
	return l.Duration() > 0
}

// Session represents one game identified by a 4-digit pin.
type Session struct {
	Pin          int           `json:"pin"`
	HostID       uuid.UUID     `json:"host_id"`
	PlayerIDs    []uuid.UUID   `json:"player_ids"`
	RoundCount   int           `json:"round_count"`
	RoundLength  RoundLength   `json:"round_length"`
	Letters      []string      `json:"letters"`
	Categories   []string      `json:"categories"`
	CurrentRound int           `json:"current_round"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// HasPlayer reports whether id is a member of the session.
func (s *Session) HasPlayer(id uuid.UUID) bool {
	for _, p := range s.PlayerIDs {
		if p == id {
			return true
		}
	}
	return false
}

// RemovePlayer drops id from the member list. It reports whether id was a member.
func (s *Session) RemovePlayer(id uuid.UUID) bool {
	for i, p := range s.PlayerIDs {
		if p == id {
			s.PlayerIDs = append(s.PlayerIDs[:i:i], s.PlayerIDs[i+1:]...)
			return true
		}
	}
	return false
}

// IsActive reports whether the session is OPEN or RUNNING.
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusOpen || s.Status == SessionStatusRunning
}

// IsLastRound reports whether the current round is the final configured one.
func (s *Session) IsLastRound() bool {
	return s.CurrentRound == s.RoundCount
}

// HasCategory reports whether category is part of the session.
func (s *Session) HasCategory(category string) bool {
	return s.CategoryIndex(category) > 0
}

// CategoryIndex returns the 1-based position of category, or 0.
func (s *Session) CategoryIndex(category string) int {
	for i, c := range s.Categories {
		if c == category {
			return i + 1
		}
	}
	return 0
}

// Clone returns a deep copy so callers can mutate without aliasing repository state.
func (s *Session) Clone() *Session {
	c := *s
	c.PlayerIDs = append([]uuid.UUID(nil), s.PlayerIDs...)
	c.Letters = append([]string(nil), s.Letters...)
	c.Categories = append([]string(nil), s.Categories...)
	return &c
}
