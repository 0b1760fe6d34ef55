// Package repository persists sessions, rounds, players, answers and votes.
//
// Two stores satisfy Store: Memory for single-process deployments and tests,
// and Postgres for durable storage. Lookups of missing entities return an
// *apperrors.NotFoundError; a player joining a second active session is
// rejected with an *apperrors.ConflictError.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/scatter/go/internal/models"
)

// Store is the full persistence surface. Consumers declare the subset they need.
type Store interface {
	FindSession(ctx context.Context, pin int) (*models.Session, error)
	SessionExists(ctx context.Context, pin int) (bool, error)
	CreateSession(ctx context.Context, s *models.Session, rounds []models.Round) error
	SaveSession(ctx context.Context, s *models.Session) error
	ActiveSessionForPlayer(ctx context.Context, playerID uuid.UUID) (int, bool, error)

	FindRound(ctx context.Context, pin, number int) (*models.Round, error)
	FindRoundsBySession(ctx context.Context, pin int) ([]models.Round, error)
	SaveRound(ctx context.Context, r *models.Round) error
	// SaveRoundStart persists a started round together with the session's new
	// current round, both or neither.
	SaveRoundStart(ctx context.Context, s *models.Session, r *models.Round) error

	FindPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	SavePlayer(ctx context.Context, p *models.Player) error
	FindAllPlayers(ctx context.Context) ([]models.Player, error)
	FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error)

	SaveAnswer(ctx context.Context, a *models.Answer) error
	FindAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error)
	FindAnswersByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Answer, error)
	FindAnswersByPlayerInSession(ctx context.Context, pin int, playerID uuid.UUID) ([]models.Answer, error)
	FindAnswersByRound(ctx context.Context, pin, number int) ([]models.Answer, error)

	SaveVote(ctx context.Context, v models.Vote) error
	FindVotesByAnswer(ctx context.Context, answerID uuid.UUID) ([]models.Vote, error)
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
