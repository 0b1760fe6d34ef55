// Package scoring aggregates votes into answer, player and session scores.
package scoring

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/scatter/go/internal/models"
)

// Repository defines what the engine needs from persistence.
type Repository interface {
	FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error)
	FindAllPlayers(ctx context.Context) ([]models.Player, error)
	FindAnswersByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Answer, error)
	FindAnswersByPlayerInSession(ctx context.Context, pin int, playerID uuid.UUID) ([]models.Answer, error)
	FindVotesByAnswer(ctx context.Context, answerID uuid.UUID) ([]models.Vote, error)
}

// ScoreEntry is one row of a scoreboard or leaderboard.
type ScoreEntry struct {
	PlayerID uuid.UUID `json:"player_id"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
}

// Winner is a player sharing the top score of a session.
type Winner struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Quote    string `json:"quote"`
}

// Engine computes scores on demand; nothing it returns is stored.
type Engine struct {
	repo Repository
	rule Rule
}

// NewEngine creates a scoring engine.
func NewEngine(repo Repository, rule Rule) *Engine {
	return &Engine{repo: repo, rule: rule}
}

// Rule returns the answer scoring rule in use.
func (e *Engine) Rule() Rule {
	return e.rule
}

// ScoreAnswer scores one answer's votes.
func (e *Engine) ScoreAnswer(votes []models.Vote) int {
	return e.rule.ScoreAnswer(votes)
}

// ScoreSession returns the total score of every member of the session.
func (e *Engine) ScoreSession(ctx context.Context, pin int) (map[uuid.UUID]int, error) {
	entries, err := e.sessionEntries(ctx, pin)
	if err != nil {
		return nil, err
	}
	scores := make(map[uuid.UUID]int, len(entries))
	for _, entry := range entries {
		scores[entry.PlayerID] = entry.Score
	}
	return scores, nil
}

// Scoreboard returns the session's players ranked by score, ties in membership order.
func (e *Engine) Scoreboard(ctx context.Context, pin int) ([]ScoreEntry, error) {
	entries, err := e.sessionEntries(ctx, pin)
	if err != nil {
		return nil, err
	}
	return Rank(entries), nil
}

// Winners returns every player sharing the session's highest score.
func (e *Engine) Winners(ctx context.Context, pin int) ([]Winner, error) {
	players, err := e.repo.FindAllPlayersInSession(ctx, pin)
	if err != nil {
		return nil, fmt.Errorf("failed to load session players: %w", err)
	}
	entries, err := e.entriesFor(ctx, players, func(ctx context.Context, id uuid.UUID) ([]models.Answer, error) {
		return e.repo.FindAnswersByPlayerInSession(ctx, pin, id)
	})
	if err != nil {
		return nil, err
	}

	quotes := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		quotes[p.ID] = p.Quote
	}

	top := TopScorers(entries)
	winners := make([]Winner, 0, len(top))
	for _, entry := range top {
		winners = append(winners, Winner{
			Username: entry.Username,
			Score:    entry.Score,
			Quote:    quotes[entry.PlayerID],
		})
	}
	return winners, nil
}

// Leaderboard ranks every player by the score accumulated over all sessions.
// Ties are ordered by username.
func (e *Engine) Leaderboard(ctx context.Context) ([]ScoreEntry, error) {
	players, err := e.repo.FindAllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	players = slices.Clone(players)
	slices.SortStableFunc(players, func(a, b models.Player) int {
		return strings.Compare(a.Username, b.Username)
	})

	entries, err := e.entriesFor(ctx, players, e.repo.FindAnswersByPlayer)
	if err != nil {
		return nil, err
	}
	return Rank(entries), nil
}

func (e *Engine) sessionEntries(ctx context.Context, pin int) ([]ScoreEntry, error) {
	players, err := e.repo.FindAllPlayersInSession(ctx, pin)
	if err != nil {
		return nil, fmt.Errorf("failed to load session players: %w", err)
	}
	return e.entriesFor(ctx, players, func(ctx context.Context, id uuid.UUID) ([]models.Answer, error) {
		return e.repo.FindAnswersByPlayerInSession(ctx, pin, id)
	})
}

func (e *Engine) entriesFor(
	ctx context.Context,
	players []models.Player,
	answersOf func(context.Context, uuid.UUID) ([]models.Answer, error),
) ([]ScoreEntry, error) {
	entries := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		answers, err := answersOf(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load answers of player %s: %w", p.ID, err)
		}

		total := 0
		for _, a := range answers {
			if strings.TrimSpace(a.Text) == "" {
				continue
			}
			votes, err := e.repo.FindVotesByAnswer(ctx, a.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load votes of answer %s: %w", a.ID, err)
			}
			total += e.rule.ScoreAnswer(votes)
		}

		entries = append(entries, ScoreEntry{PlayerID: p.ID, Username: p.Username, Score: total})
	}
	return entries, nil
}

// Rank sorts a copy of entries by score descending, keeping the input order for ties.
func Rank(entries []ScoreEntry) []ScoreEntry {
	ranked := slices.Clone(entries)
	slices.SortStableFunc(ranked, func(a, b ScoreEntry) int {
		return b.Score - a.Score
	})
	return ranked
}

// TopScorers returns every entry with the maximum score in input order.
func TopScorers(entries []ScoreEntry) []ScoreEntry {
	if len(entries) == 0 {
		return []ScoreEntry{}
	}
	best := entries[0].Score
	for _, e := range entries[1:] {
		best = max(best, e.Score)
	}
	top := make([]ScoreEntry, 0, 1)
	for _, e := range entries {
		if e.Score == best {
			top = append(top, e)
		}
	}
	return top
}
