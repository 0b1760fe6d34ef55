package game

import (
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/orchestrator"
)

const (
	MaxRoundCount     = 26
	MaxUsernameLength = 32
)

// Config holds the session creation defaults.
type Config struct {
	DefaultCategories []string `yaml:"default_categories"`
	MaxCategories     int      `yaml:"max_categories"`
}

// DefaultConfig returns the built-in category list.
func DefaultConfig() Config {
	return Config{
		DefaultCategories: []string{"City", "Country", "River", "Animal", "Profession", "Name"},
		MaxCategories:     10,
	}
}

// RegisterPlayerRequest creates a player.
type RegisterPlayerRequest struct {
	Username string `json:"username"`
	Quote    string `json:"quote"`
}

// RegisteredPlayer is a new player together with its token.
type RegisteredPlayer struct {
	Player models.Player `json:"player"`
	Token  string        `json:"token"`
}

// CreateSessionRequest configures a new session.
type CreateSessionRequest struct {
	RoundCount  int                `json:"round_count"`
	RoundLength models.RoundLength `json:"round_length"`
	Categories  []string           `json:"categories"`
}

// SessionView is a session with its rounds and live phase.
type SessionView struct {
	Session models.Session         `json:"session"`
	Rounds  []models.Round         `json:"rounds"`
	Phase   *orchestrator.Snapshot `json:"phase,omitempty"`
}
