package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/sqlutil"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// sessionSettings is the JSONB shape of a session's creation settings.
type sessionSettings struct {
	RoundCount  int                `json:"round_count"`
	RoundLength models.RoundLength `json:"round_length"`
	Categories  []string           `json:"categories"`
}

// Postgres is a Store backed by database/sql and lib/pq.
type Postgres struct {
	db      *sql.DB
	queries *Queries
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, queries: NewQueries(db)}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func newTxQueries(tx *sql.Tx) *Queries {
	return NewQueries(tx)
}

func (p *Postgres) FindSession(ctx context.Context, pin int) (*models.Session, error) {
	row, err := p.queries.GetSession(ctx, int32(pin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("session", pin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	members, err := p.queries.ListMembers(ctx, int32(pin))
	if err != nil {
		return nil, fmt.Errorf("failed to list session members: %w", err)
	}
	return dbSessionToModel(row, members)
}

func (p *Postgres) SessionExists(ctx context.Context, pin int) (bool, error) {
	ok, err := p.queries.SessionExists(ctx, int32(pin))
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return ok, nil
}

// CreateSession inserts the session, its members and its rounds in one transaction.
func (p *Postgres) CreateSession(ctx context.Context, s *models.Session, rounds []models.Round) error {
	settings, err := json.Marshal(sessionSettings{
		RoundCount:  s.RoundCount,
		RoundLength: s.RoundLength,
		Categories:  s.Categories,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session settings: %w", err)
	}

	err = sqlutil.Run(ctx, p.db, newTxQueries, func(q *Queries) error {
		if err := q.InsertSession(ctx, sessionRow{
			Pin:          int32(s.Pin),
			HostID:       s.HostID,
			Letters:      s.Letters,
			Settings:     pqtype.NullRawMessage{RawMessage: settings, Valid: true},
			CurrentRound: int32(s.CurrentRound),
			Status:       string(s.Status),
			CreatedAt:    s.CreatedAt,
		}); err != nil {
			return err
		}
		if err := insertMembers(ctx, q, s); err != nil {
			return err
		}
		for _, r := range rounds {
			if err := q.InsertRound(ctx, roundRow{
				SessionPin: int32(r.SessionPin),
				Number:     int32(r.Number),
				Letter:     r.Letter,
				Status:     string(r.Status),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateWriteError(err, s.Pin)
	}
	return nil
}

// SaveSession updates the session row and rewrites its member list.
func (p *Postgres) SaveSession(ctx context.Context, s *models.Session) error {
	err := sqlutil.Run(ctx, p.db, newTxQueries, func(q *Queries) error {
		n, err := q.UpdateSession(ctx, int32(s.Pin), s.HostID, int32(s.CurrentRound), string(s.Status))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFound("session", s.Pin)
		}
		if err := q.DeleteMembers(ctx, int32(s.Pin)); err != nil {
			return err
		}
		return insertMembers(ctx, q, s)
	})
	if err != nil {
		return translateWriteError(err, s.Pin)
	}
	return nil
}

func insertMembers(ctx context.Context, q *Queries, s *models.Session) error {
	for i, id := range s.PlayerIDs {
		if err := q.InsertMember(ctx, int32(s.Pin), id, int32(i), s.IsActive()); err != nil {
			return err
		}
	}
	return nil
}

func translateWriteError(err error, pin int) error {
	if apperrors.IsDomain(err) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if pqErr.Constraint == "session_members_one_active" {
			return apperrors.NewConflict("a member of session %d already belongs to another active session", pin)
		}
		return apperrors.NewConflict("session %d already exists", pin)
	}
	return fmt.Errorf("failed to write session %d: %w", pin, err)
}

func (p *Postgres) ActiveSessionForPlayer(ctx context.Context, playerID uuid.UUID) (int, bool, error) {
	pin, err := p.queries.ActiveSessionForPlayer(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find active session: %w", err)
	}
	return int(pin), true, nil
}

func (p *Postgres) FindRound(ctx context.Context, pin, number int) (*models.Round, error) {
	row, err := p.queries.GetRound(ctx, int32(pin), int32(number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("round", number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	r := dbRoundToModel(row)
	return &r, nil
}

func (p *Postgres) FindRoundsBySession(ctx context.Context, pin int) ([]models.Round, error) {
	ok, err := p.SessionExists(ctx, pin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound("session", pin)
	}
	rows, err := p.queries.ListRounds(ctx, int32(pin))
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	out := make([]models.Round, 0, len(rows))
	for _, row := range rows {
		out = append(out, dbRoundToModel(row))
	}
	return out, nil
}

// SaveRoundStart updates the round status and the session's current round in
// one transaction.
func (p *Postgres) SaveRoundStart(ctx context.Context, s *models.Session, r *models.Round) error {
	err := sqlutil.Run(ctx, p.db, newTxQueries, func(q *Queries) error {
		n, err := q.UpdateRoundStatus(ctx, int32(r.SessionPin), int32(r.Number), string(r.Status))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFound("round", r.Number)
		}
		n, err = q.UpdateSession(ctx, int32(s.Pin), s.HostID, int32(s.CurrentRound), string(s.Status))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFound("session", s.Pin)
		}
		return nil
	})
	if err != nil {
		return translateWriteError(err, s.Pin)
	}
	return nil
}

func (p *Postgres) SaveRound(ctx context.Context, r *models.Round) error {
	n, err := p.queries.UpdateRoundStatus(ctx, int32(r.SessionPin), int32(r.Number), string(r.Status))
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFound("round", r.Number)
	}
	return nil
}

func (p *Postgres) FindPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row, err := p.queries.GetPlayer(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("player", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	player := dbPlayerToModel(row)
	return &player, nil
}

func (p *Postgres) SavePlayer(ctx context.Context, player *models.Player) error {
	err := p.queries.UpsertPlayer(ctx, playerRow{
		ID:        player.ID,
		Username:  player.Username,
		Quote:     sqlutil.ToNullString(player.Quote),
		CreatedAt: player.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	return nil
}

func (p *Postgres) FindAllPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := p.queries.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return dbPlayersToModels(rows), nil
}

func (p *Postgres) FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error) {
	rows, err := p.queries.ListSessionPlayers(ctx, int32(pin))
	if err != nil {
		return nil, fmt.Errorf("failed to list session players: %w", err)
	}
	return dbPlayersToModels(rows), nil
}

// SaveAnswer upserts the answer and sets a.ID to the stored ID.
func (p *Postgres) SaveAnswer(ctx context.Context, a *models.Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	id, err := p.queries.UpsertAnswer(ctx, answerRow{
		ID:          a.ID,
		SessionPin:  int32(a.SessionPin),
		RoundNumber: int32(a.RoundNumber),
		Category:    a.Category,
		PlayerID:    a.PlayerID,
		Text:        a.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	a.ID = id
	return nil
}

func (p *Postgres) FindAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	row, err := p.queries.GetAnswer(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("answer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	a := dbAnswerToModel(row)
	return &a, nil
}

func (p *Postgres) FindAnswersByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Answer, error) {
	rows, err := p.queries.ListAnswersByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return dbAnswersToModels(rows), nil
}

func (p *Postgres) FindAnswersByPlayerInSession(ctx context.Context, pin int, playerID uuid.UUID) ([]models.Answer, error) {
	rows, err := p.queries.ListAnswersByPlayerInSession(ctx, int32(pin), playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return dbAnswersToModels(rows), nil
}

func (p *Postgres) FindAnswersByRound(ctx context.Context, pin, number int) ([]models.Answer, error) {
	rows, err := p.queries.ListAnswersByRound(ctx, int32(pin), int32(number))
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return dbAnswersToModels(rows), nil
}

func (p *Postgres) SaveVote(ctx context.Context, v models.Vote) error {
	err := p.queries.UpsertVote(ctx, v.AnswerID, v.VoterID, v.Valid)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return apperrors.NewNotFound("answer", v.AnswerID)
	}
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

func (p *Postgres) FindVotesByAnswer(ctx context.Context, answerID uuid.UUID) ([]models.Vote, error) {
	rows, err := p.queries.ListVotesByAnswer(ctx, answerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	out := make([]models.Vote, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Vote{AnswerID: r.AnswerID, VoterID: r.VoterID, Valid: r.Valid})
	}
	return out, nil
}

func dbSessionToModel(row sessionRow, members []uuid.UUID) (*models.Session, error) {
	var settings sessionSettings
	if row.Settings.Valid {
		if err := json.Unmarshal(row.Settings.RawMessage, &settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session settings: %w", err)
		}
	}
	if settings.RoundCount == 0 {
		settings.RoundCount = len(row.Letters)
	}
	return &models.Session{
		Pin:          int(row.Pin),
		HostID:       row.HostID,
		PlayerIDs:    members,
		RoundCount:   settings.RoundCount,
		RoundLength:  settings.RoundLength,
		Letters:      row.Letters,
		Categories:   settings.Categories,
		CurrentRound: int(row.CurrentRound),
		Status:       models.SessionStatus(row.Status),
		CreatedAt:    row.CreatedAt,
	}, nil
}

func dbRoundToModel(row roundRow) models.Round {
	return models.Round{
		SessionPin: int(row.SessionPin),
		Number:     int(row.Number),
		Letter:     row.Letter,
		Status:     models.RoundStatus(row.Status),
	}
}

func dbPlayerToModel(row playerRow) models.Player {
	return models.Player{ID: row.ID, Username: row.Username, Quote: sqlutil.FromSqlString(row.Quote, ""), CreatedAt: row.CreatedAt}
}

func dbPlayersToModels(rows []playerRow) []models.Player {
	out := make([]models.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, dbPlayerToModel(r))
	}
	return out
}

func dbAnswerToModel(row answerRow) models.Answer {
	return models.Answer{
		ID:          row.ID,
		SessionPin:  int(row.SessionPin),
		RoundNumber: int(row.RoundNumber),
		Category:    row.Category,
		PlayerID:    row.PlayerID,
		Text:        row.Text,
	}
}

func dbAnswersToModels(rows []answerRow) []models.Answer {
	out := make([]models.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, dbAnswerToModel(r))
	}
	return out
}
