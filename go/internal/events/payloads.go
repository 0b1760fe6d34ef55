package events

// LetterAssignedPayload announces the start of a round.
type LetterAssignedPayload struct {
	RoundNumber    int    `json:"round_number"`
	Letter         string `json:"letter"`
	RoundLengthSec int    `json:"round_length_sec"`
}

// TimerTickPayload carries the remaining time of the active phase.
type TimerTickPayload struct {
	RoundNumber  int    `json:"round_number"`
	Category     string `json:"category,omitempty"`
	RemainingSec int    `json:"remaining_sec"`
}

// RoundEndedPayload is sent once when answering closes.
type RoundEndedPayload struct {
	RoundNumber int `json:"round_number"`
}

// VotingEndedPayload is sent when voting on a category closes.
type VotingEndedPayload struct {
	RoundNumber int    `json:"round_number"`
	Category    string `json:"category"`
}

// NextVotePayload names the category voted on next.
type NextVotePayload struct {
	RoundNumber   int    `json:"round_number"`
	Category      string `json:"category"`
	CategoryIndex int    `json:"category_index"`
}

// Standing is one player's position on a scoreboard.
type Standing struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// ScoreboardPayload is sent between rounds.
type ScoreboardPayload struct {
	RoundNumber int        `json:"round_number"`
	Standings   []Standing `json:"standings"`
}

// Winner is one player sharing the final top score.
type Winner struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Quote    string `json:"quote"`
}

// WinnersPayload is the last event of a session.
type WinnersPayload struct {
	Winners []Winner `json:"winners"`
}

// MembershipChangedPayload lists the current members after a join or leave.
type MembershipChangedPayload struct {
	HostUsername string   `json:"host_username"`
	Usernames    []string `json:"usernames"`
}
