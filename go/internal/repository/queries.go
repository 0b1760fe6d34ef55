package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL statements used by Postgres.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type sessionRow struct {
	Pin          int32
	HostID       uuid.UUID
	Letters      []string
	Settings     pqtype.NullRawMessage
	CurrentRound int32
	Status       string
	CreatedAt    time.Time
}

const getSession = `-- name: GetSession :one
SELECT pin, host_id, letters, settings, current_round, status, created_at
FROM sessions WHERE pin = $1`

func (q *Queries) GetSession(ctx context.Context, pin int32) (sessionRow, error) {
	var r sessionRow
	err := q.db.QueryRowContext(ctx, getSession, pin).Scan(
		&r.Pin, &r.HostID, pq.Array(&r.Letters), &r.Settings, &r.CurrentRound, &r.Status, &r.CreatedAt,
	)
	return r, err
}

const sessionExists = `-- name: SessionExists :one
SELECT EXISTS (SELECT 1 FROM sessions WHERE pin = $1)`

func (q *Queries) SessionExists(ctx context.Context, pin int32) (bool, error) {
	var ok bool
	err := q.db.QueryRowContext(ctx, sessionExists, pin).Scan(&ok)
	return ok, err
}

const insertSession = `-- name: InsertSession :exec
INSERT INTO sessions (pin, host_id, letters, settings, current_round, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (q *Queries) InsertSession(ctx context.Context, r sessionRow) error {
	_, err := q.db.ExecContext(ctx, insertSession,
		r.Pin, r.HostID, pq.Array(r.Letters), r.Settings, r.CurrentRound, r.Status, r.CreatedAt,
	)
	return err
}

const updateSession = `-- name: UpdateSession :execrows
UPDATE sessions SET host_id = $2, current_round = $3, status = $4 WHERE pin = $1`

func (q *Queries) UpdateSession(ctx context.Context, pin int32, hostID uuid.UUID, currentRound int32, status string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateSession, pin, hostID, currentRound, status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listMembers = `-- name: ListMembers :many
SELECT player_id FROM session_members WHERE session_pin = $1 ORDER BY position`

func (q *Queries) ListMembers(ctx context.Context, pin int32) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, listMembers, pin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const deleteMembers = `-- name: DeleteMembers :exec
DELETE FROM session_members WHERE session_pin = $1`

func (q *Queries) DeleteMembers(ctx context.Context, pin int32) error {
	_, err := q.db.ExecContext(ctx, deleteMembers, pin)
	return err
}

const insertMember = `-- name: InsertMember :exec
INSERT INTO session_members (session_pin, player_id, position, active)
VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertMember(ctx context.Context, pin int32, playerID uuid.UUID, position int32, active bool) error {
	_, err := q.db.ExecContext(ctx, insertMember, pin, playerID, position, active)
	return err
}

const activeSessionForPlayer = `-- name: ActiveSessionForPlayer :one
SELECT session_pin FROM session_members WHERE player_id = $1 AND active`

func (q *Queries) ActiveSessionForPlayer(ctx context.Context, playerID uuid.UUID) (int32, error) {
	var pin int32
	err := q.db.QueryRowContext(ctx, activeSessionForPlayer, playerID).Scan(&pin)
	return pin, err
}

const getRound = `-- name: GetRound :one
SELECT session_pin, number, letter, status FROM rounds WHERE session_pin = $1 AND number = $2`

type roundRow struct {
	SessionPin int32
	Number     int32
	Letter     string
	Status     string
}

func (q *Queries) GetRound(ctx context.Context, pin, number int32) (roundRow, error) {
	var r roundRow
	err := q.db.QueryRowContext(ctx, getRound, pin, number).Scan(&r.SessionPin, &r.Number, &r.Letter, &r.Status)
	return r, err
}

const listRounds = `-- name: ListRounds :many
SELECT session_pin, number, letter, status FROM rounds WHERE session_pin = $1 ORDER BY number`

func (q *Queries) ListRounds(ctx context.Context, pin int32) ([]roundRow, error) {
	rows, err := q.db.QueryContext(ctx, listRounds, pin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roundRow
	for rows.Next() {
		var r roundRow
		if err := rows.Scan(&r.SessionPin, &r.Number, &r.Letter, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const insertRound = `-- name: InsertRound :exec
INSERT INTO rounds (session_pin, number, letter, status) VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertRound(ctx context.Context, r roundRow) error {
	_, err := q.db.ExecContext(ctx, insertRound, r.SessionPin, r.Number, r.Letter, r.Status)
	return err
}

const updateRoundStatus = `-- name: UpdateRoundStatus :execrows
UPDATE rounds SET status = $3 WHERE session_pin = $1 AND number = $2`

func (q *Queries) UpdateRoundStatus(ctx context.Context, pin, number int32, status string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRoundStatus, pin, number, status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const playerColumns = `id, username, quote, created_at`

func scanPlayers(rows *sql.Rows) ([]playerRow, error) {
	defer rows.Close()
	var out []playerRow
	for rows.Next() {
		var p playerRow
		if err := rows.Scan(&p.ID, &p.Username, &p.Quote, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type playerRow struct {
	ID        uuid.UUID
	Username  string
	Quote     sql.NullString
	CreatedAt time.Time
}

const getPlayer = `-- name: GetPlayer :one
SELECT ` + playerColumns + ` FROM players WHERE id = $1`

func (q *Queries) GetPlayer(ctx context.Context, id uuid.UUID) (playerRow, error) {
	var p playerRow
	err := q.db.QueryRowContext(ctx, getPlayer, id).Scan(&p.ID, &p.Username, &p.Quote, &p.CreatedAt)
	return p, err
}

const upsertPlayer = `-- name: UpsertPlayer :exec
INSERT INTO players (id, username, quote, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, quote = EXCLUDED.quote`

func (q *Queries) UpsertPlayer(ctx context.Context, p playerRow) error {
	_, err := q.db.ExecContext(ctx, upsertPlayer, p.ID, p.Username, p.Quote, p.CreatedAt)
	return err
}

const listPlayers = `-- name: ListPlayers :many
SELECT ` + playerColumns + ` FROM players ORDER BY created_at, id`

func (q *Queries) ListPlayers(ctx context.Context) ([]playerRow, error) {
	rows, err := q.db.QueryContext(ctx, listPlayers)
	if err != nil {
		return nil, err
	}
	return scanPlayers(rows)
}

const listSessionPlayers = `-- name: ListSessionPlayers :many
SELECT p.id, p.username, p.quote, p.created_at
FROM session_members m JOIN players p ON p.id = m.player_id
WHERE m.session_pin = $1 ORDER BY m.position`

func (q *Queries) ListSessionPlayers(ctx context.Context, pin int32) ([]playerRow, error) {
	rows, err := q.db.QueryContext(ctx, listSessionPlayers, pin)
	if err != nil {
		return nil, err
	}
	return scanPlayers(rows)
}

type answerRow struct {
	ID          uuid.UUID
	SessionPin  int32
	RoundNumber int32
	Category    string
	PlayerID    uuid.UUID
	Text        string
}

const answerColumns = `id, session_pin, round_number, category, player_id, text`

func scanAnswers(rows *sql.Rows) ([]answerRow, error) {
	defer rows.Close()
	var out []answerRow
	for rows.Next() {
		var a answerRow
		if err := rows.Scan(&a.ID, &a.SessionPin, &a.RoundNumber, &a.Category, &a.PlayerID, &a.Text); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const upsertAnswer = `-- name: UpsertAnswer :one
INSERT INTO answers (id, session_pin, round_number, category, player_id, text)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_pin, round_number, category, player_id) DO UPDATE SET text = EXCLUDED.text
RETURNING id`

func (q *Queries) UpsertAnswer(ctx context.Context, a answerRow) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRowContext(ctx, upsertAnswer,
		a.ID, a.SessionPin, a.RoundNumber, a.Category, a.PlayerID, a.Text,
	).Scan(&id)
	return id, err
}

const getAnswer = `-- name: GetAnswer :one
SELECT ` + answerColumns + ` FROM answers WHERE id = $1`

func (q *Queries) GetAnswer(ctx context.Context, id uuid.UUID) (answerRow, error) {
	var a answerRow
	err := q.db.QueryRowContext(ctx, getAnswer, id).Scan(
		&a.ID, &a.SessionPin, &a.RoundNumber, &a.Category, &a.PlayerID, &a.Text,
	)
	return a, err
}

const listAnswersByPlayer = `-- name: ListAnswersByPlayer :many
SELECT ` + answerColumns + ` FROM answers WHERE player_id = $1 ORDER BY created_at, id`

func (q *Queries) ListAnswersByPlayer(ctx context.Context, playerID uuid.UUID) ([]answerRow, error) {
	rows, err := q.db.QueryContext(ctx, listAnswersByPlayer, playerID)
	if err != nil {
		return nil, err
	}
	return scanAnswers(rows)
}

const listAnswersByPlayerInSession = `-- name: ListAnswersByPlayerInSession :many
SELECT ` + answerColumns + ` FROM answers WHERE session_pin = $1 AND player_id = $2 ORDER BY created_at, id`

func (q *Queries) ListAnswersByPlayerInSession(ctx context.Context, pin int32, playerID uuid.UUID) ([]answerRow, error) {
	rows, err := q.db.QueryContext(ctx, listAnswersByPlayerInSession, pin, playerID)
	if err != nil {
		return nil, err
	}
	return scanAnswers(rows)
}

const listAnswersByRound = `-- name: ListAnswersByRound :many
SELECT ` + answerColumns + ` FROM answers WHERE session_pin = $1 AND round_number = $2 ORDER BY created_at, id`

func (q *Queries) ListAnswersByRound(ctx context.Context, pin, number int32) ([]answerRow, error) {
	rows, err := q.db.QueryContext(ctx, listAnswersByRound, pin, number)
	if err != nil {
		return nil, err
	}
	return scanAnswers(rows)
}

const upsertVote = `-- name: UpsertVote :exec
INSERT INTO votes (answer_id, voter_id, valid) VALUES ($1, $2, $3)
ON CONFLICT (answer_id, voter_id) DO UPDATE SET valid = EXCLUDED.valid`

func (q *Queries) UpsertVote(ctx context.Context, answerID, voterID uuid.UUID, valid bool) error {
	_, err := q.db.ExecContext(ctx, upsertVote, answerID, voterID, valid)
	return err
}

const listVotesByAnswer = `-- name: ListVotesByAnswer :many
SELECT answer_id, voter_id, valid FROM votes WHERE answer_id = $1`

type voteRow struct {
	AnswerID uuid.UUID
	VoterID  uuid.UUID
	Valid    bool
}

func (q *Queries) ListVotesByAnswer(ctx context.Context, answerID uuid.UUID) ([]voteRow, error) {
	rows, err := q.db.QueryContext(ctx, listVotesByAnswer, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []voteRow
	for rows.Next() {
		var v voteRow
		if err := rows.Scan(&v.AnswerID, &v.VoterID, &v.Valid); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
