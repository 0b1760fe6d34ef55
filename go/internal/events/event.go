// Package events defines the notifications pushed to every member of a session.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every session notification.
type Event struct {
	ID         string          `json:"id"`
	SessionPin int             `json:"session_pin"`
	Type       Type            `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
}

// Type identifies the payload carried by an Event.
type Type string

const (
	TypeLetterAssigned        Type = "letter-assigned"
	TypeRoundTimerTick        Type = "round-timer-tick"
	TypeRoundEnded            Type = "round-ended"
	TypeVotingTimerTick       Type = "voting-timer-tick"
	TypeVotingEnded           Type = "voting-ended"
	TypeResultTimerTick       Type = "result-timer-tick"
	TypeNextVote              Type = "next-vote"
	TypeScoreboard            Type = "scoreboard"
	TypeIntermissionTimerTick Type = "intermission-timer-tick"
	TypeWinners               Type = "winners"
	TypeMembershipChanged     Type = "membership-changed"
)

// New wraps payload in an envelope for the session.
func New(pin int, typ Type, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &Event{
		ID:         uuid.New().String(),
		SessionPin: pin,
		Type:       typ,
		Timestamp:  at,
		Data:       data,
	}, nil
}

// Decode unmarshals the event data into T.
func Decode[T any](ev *Event) (T, error) {
	var payload T
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode %s payload: %w", ev.Type, err)
	}
	return payload, nil
}

// Publisher delivers events to session members. Implementations must not block
// the caller on slow consumers; delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, ev *Event)
}

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev *Event) {
	for _, p := range f {
		p.Publish(ctx, ev)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, *Event) {}
