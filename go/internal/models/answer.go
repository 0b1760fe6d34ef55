package models

import (
	"github.com/google/uuid"
)

// MaxAnswerLength is the longest accepted answer text.
const MaxAnswerLength = 255

// Answer is one player's text for one category of one round.
type Answer struct {
	ID          uuid.UUID `json:"id"`
	SessionPin  int       `json:"session_pin"`
	RoundNumber int       `json:"round_number"`
	Category    string    `json:"category"`
	PlayerID    uuid.UUID `json:"player_id"`
	Text        string    `json:"text"`
}

// Vote is one player's validity judgment on another player's answer.
type Vote struct {
	AnswerID uuid.UUID `json:"answer_id"`
	VoterID  uuid.UUID `json:"voter_id"`
	Valid    bool      `json:"valid"`
}
