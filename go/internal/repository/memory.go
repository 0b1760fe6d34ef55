package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/models"
)

type answerKey struct {
	pin      int
	round    int
	category string
	player   uuid.UUID
}

// Memory is an in-process Store. Every read returns a copy.
type Memory struct {
	mu sync.RWMutex

	sessions map[int]*models.Session
	rounds   map[int]map[int]models.Round

	players     map[uuid.UUID]models.Player
	playerOrder []uuid.UUID

	answers     map[uuid.UUID]models.Answer
	answerOrder []uuid.UUID
	answerKeys  map[answerKey]uuid.UUID

	votes map[uuid.UUID][]models.Vote
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:   make(map[int]*models.Session),
		rounds:     make(map[int]map[int]models.Round),
		players:    make(map[uuid.UUID]models.Player),
		answers:    make(map[uuid.UUID]models.Answer),
		answerKeys: make(map[answerKey]uuid.UUID),
		votes:      make(map[uuid.UUID][]models.Vote),
	}
}

func (m *Memory) FindSession(_ context.Context, pin int) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[pin]
	if !ok {
		return nil, apperrors.NewNotFound("session", pin)
	}
	return s.Clone(), nil
}

func (m *Memory) SessionExists(_ context.Context, pin int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[pin]
	return ok, nil
}

// CreateSession stores a new session together with all of its rounds.
func (m *Memory) CreateSession(_ context.Context, s *models.Session, rounds []models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.Pin]; ok {
		return apperrors.NewConflict("session %d already exists", s.Pin)
	}
	if err := m.checkMembershipLocked(s); err != nil {
		return err
	}

	m.sessions[s.Pin] = s.Clone()
	byNumber := make(map[int]models.Round, len(rounds))
	for _, r := range rounds {
		byNumber[r.Number] = r
	}
	m.rounds[s.Pin] = byNumber
	return nil
}

// SaveSession replaces an existing session.
func (m *Memory) SaveSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.Pin]; !ok {
		return apperrors.NewNotFound("session", s.Pin)
	}
	if err := m.checkMembershipLocked(s); err != nil {
		return err
	}
	m.sessions[s.Pin] = s.Clone()
	return nil
}

// checkMembershipLocked rejects s if one of its members is in another active session.
func (m *Memory) checkMembershipLocked(s *models.Session) error {
	if !s.IsActive() {
		return nil
	}
	for pin, other := range m.sessions {
		if pin == s.Pin || !other.IsActive() {
			continue
		}
		for _, id := range s.PlayerIDs {
			if other.HasPlayer(id) {
				return apperrors.NewConflict("player %s already belongs to session %d", id, pin)
			}
		}
	}
	return nil
}

func (m *Memory) ActiveSessionForPlayer(_ context.Context, playerID uuid.UUID) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for pin, s := range m.sessions {
		if s.IsActive() && s.HasPlayer(playerID) {
			return pin, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) FindRound(_ context.Context, pin, number int) (*models.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rounds[pin][number]
	if !ok {
		return nil, apperrors.NewNotFound("round", number)
	}
	return &r, nil
}

// FindRoundsBySession returns the session's rounds ordered by number.
func (m *Memory) FindRoundsBySession(_ context.Context, pin int) ([]models.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[pin]; !ok {
		return nil, apperrors.NewNotFound("session", pin)
	}
	out := make([]models.Round, 0, len(m.rounds[pin]))
	for _, r := range m.rounds[pin] {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b models.Round) int { return a.Number - b.Number })
	return out, nil
}

// SaveRoundStart writes r and the session's current round and status under one lock.
func (m *Memory) SaveRoundStart(_ context.Context, s *models.Session, r *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.Pin]
	if !ok {
		return apperrors.NewNotFound("session", s.Pin)
	}
	rounds := m.rounds[s.Pin]
	if _, ok := rounds[r.Number]; !ok || r.SessionPin != s.Pin {
		return apperrors.NewNotFound("round", r.Number)
	}

	rounds[r.Number] = *r
	updated := stored.Clone()
	updated.CurrentRound = s.CurrentRound
	updated.Status = s.Status
	m.sessions[s.Pin] = updated
	return nil
}

func (m *Memory) SaveRound(_ context.Context, r *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rounds, ok := m.rounds[r.SessionPin]
	if !ok {
		return apperrors.NewNotFound("session", r.SessionPin)
	}
	if _, ok := rounds[r.Number]; !ok {
		return apperrors.NewNotFound("round", r.Number)
	}
	rounds[r.Number] = *r
	return nil
}

func (m *Memory) FindPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[id]
	if !ok {
		return nil, apperrors.NewNotFound("player", id)
	}
	return &p, nil
}

// SavePlayer inserts or updates a player.
func (m *Memory) SavePlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[p.ID]; !ok {
		m.playerOrder = append(m.playerOrder, p.ID)
	}
	m.players[p.ID] = *p
	return nil
}

// FindAllPlayers returns every player in registration order.
func (m *Memory) FindAllPlayers(_ context.Context) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Player, 0, len(m.playerOrder))
	for _, id := range m.playerOrder {
		out = append(out, m.players[id])
	}
	return out, nil
}

// FindAllPlayersInSession returns the session's members in join order.
func (m *Memory) FindAllPlayersInSession(_ context.Context, pin int) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[pin]
	if !ok {
		return nil, apperrors.NewNotFound("session", pin)
	}
	out := make([]models.Player, 0, len(s.PlayerIDs))
	for _, id := range s.PlayerIDs {
		p, ok := m.players[id]
		if !ok {
			return nil, apperrors.NewNotFound("player", id)
		}
		out = append(out, p)
	}
	return out, nil
}

// SaveAnswer upserts the answer for (session, round, category, player).
// On update a.ID is set to the stored answer's ID.
func (m *Memory) SaveAnswer(_ context.Context, a *models.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := answerKey{pin: a.SessionPin, round: a.RoundNumber, category: a.Category, player: a.PlayerID}
	if id, ok := m.answerKeys[key]; ok {
		a.ID = id
		m.answers[id] = *a
		return nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.answerKeys[key] = a.ID
	m.answerOrder = append(m.answerOrder, a.ID)
	m.answers[a.ID] = *a
	return nil
}

func (m *Memory) FindAnswer(_ context.Context, id uuid.UUID) (*models.Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.answers[id]
	if !ok {
		return nil, apperrors.NewNotFound("answer", id)
	}
	return &a, nil
}

func (m *Memory) FindAnswersByPlayer(_ context.Context, playerID uuid.UUID) ([]models.Answer, error) {
	return m.filterAnswers(func(a models.Answer) bool { return a.PlayerID == playerID }), nil
}

func (m *Memory) FindAnswersByPlayerInSession(_ context.Context, pin int, playerID uuid.UUID) ([]models.Answer, error) {
	return m.filterAnswers(func(a models.Answer) bool {
		return a.SessionPin == pin && a.PlayerID == playerID
	}), nil
}

func (m *Memory) FindAnswersByRound(_ context.Context, pin, number int) ([]models.Answer, error) {
	return m.filterAnswers(func(a models.Answer) bool {
		return a.SessionPin == pin && a.RoundNumber == number
	}), nil
}

func (m *Memory) filterAnswers(keep func(models.Answer) bool) []models.Answer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Answer
	for _, id := range m.answerOrder {
		if a := m.answers[id]; keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// SaveVote upserts the vote of (answer, voter).
func (m *Memory) SaveVote(_ context.Context, v models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.answers[v.AnswerID]; !ok {
		return apperrors.NewNotFound("answer", v.AnswerID)
	}
	votes := m.votes[v.AnswerID]
	for i := range votes {
		if votes[i].VoterID == v.VoterID {
			votes[i] = v
			return nil
		}
	}
	m.votes[v.AnswerID] = append(votes, v)
	return nil
}

func (m *Memory) FindVotesByAnswer(_ context.Context, answerID uuid.UUID) ([]models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.votes[answerID]), nil
}
