package models

// RoundStatus defines the status of a single round.
type RoundStatus string

const (
	RoundStatusNotStarted RoundStatus = "NOT_STARTED"
	RoundStatusRunning    RoundStatus = "RUNNING"
	RoundStatusFinished   RoundStatus = "FINISHED"
)

// Round is one letter sub-game within a session.
type Round struct {
	SessionPin int         `json:"session_pin"`
	Number     int         `json:"number"`
	Letter     string      `json:"letter"`
	Status     RoundStatus `json:"status"`
}
