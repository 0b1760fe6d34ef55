package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/scatter/go/internal/models"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) FindAllPlayersInSession(ctx context.Context, pin int) ([]models.Player, error) {
	args := m.Called(ctx, pin)
	return args.Get(0).([]models.Player), args.Error(1)
}

func (m *mockRepository) FindAllPlayers(ctx context.Context) ([]models.Player, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Player), args.Error(1)
}

func (m *mockRepository) FindAnswersByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Answer, error) {
	args := m.Called(ctx, playerID)
	return args.Get(0).([]models.Answer), args.Error(1)
}

func (m *mockRepository) FindAnswersByPlayerInSession(ctx context.Context, pin int, playerID uuid.UUID) ([]models.Answer, error) {
	args := m.Called(ctx, pin, playerID)
	return args.Get(0).([]models.Answer), args.Error(1)
}

func (m *mockRepository) FindVotesByAnswer(ctx context.Context, answerID uuid.UUID) ([]models.Vote, error) {
	args := m.Called(ctx, answerID)
	return args.Get(0).([]models.Vote), args.Error(1)
}

type fixture struct {
	repo    *mockRepository
	players []models.Player
}

// newFixture wires three players in session 1234 with the given number of
// majority-valid answers each.
func newFixture(validAnswers ...int) *fixture {
	f := &fixture{repo: &mockRepository{}}
	names := []string{"ana", "bo", "cy"}
	for i, n := range validAnswers {
		p := models.Player{ID: uuid.New(), Username: names[i], Quote: names[i] + " wins"}
		f.players = append(f.players, p)

		var answers []models.Answer
		for j := 0; j < n; j++ {
			a := models.Answer{ID: uuid.New(), SessionPin: 1234, PlayerID: p.ID, Text: "word"}
			answers = append(answers, a)
			f.repo.On("FindVotesByAnswer", mock.Anything, a.ID).Return(votes(2, 0), nil)
		}
		blank := models.Answer{ID: uuid.New(), SessionPin: 1234, PlayerID: p.ID, Text: "  "}
		answers = append(answers, blank)

		f.repo.On("FindAnswersByPlayerInSession", mock.Anything, 1234, p.ID).Return(answers, nil)
		f.repo.On("FindAnswersByPlayer", mock.Anything, p.ID).Return(answers, nil)
	}
	f.repo.On("FindAllPlayersInSession", mock.Anything, 1234).Return(f.players, nil)
	return f
}

func TestScoreSession(t *testing.T) {
	f := newFixture(1, 3, 0)
	engine := NewEngine(f.repo, DefaultRule())

	scores, err := engine.ScoreSession(context.Background(), 1234)
	require.NoError(t, err)

	want := map[uuid.UUID]int{
		f.players[0].ID: 10,
		f.players[1].ID: 30,
		f.players[2].ID: 0,
	}
	if diff := cmp.Diff(want, scores); diff != "" {
		t.Errorf("ScoreSession() mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreboardSortedDescending(t *testing.T) {
	f := newFixture(1, 3, 1)
	engine := NewEngine(f.repo, DefaultRule())

	board, err := engine.Scoreboard(context.Background(), 1234)
	require.NoError(t, err)

	got := make([]string, 0, len(board))
	for _, e := range board {
		got = append(got, e.Username)
	}
	assert.Equal(t, []string{"bo", "ana", "cy"}, got)
	assert.Equal(t, 30, board[0].Score)
}

func TestWinnersIncludesEveryTopScorer(t *testing.T) {
	f := newFixture(2, 1, 2)
	engine := NewEngine(f.repo, DefaultRule())

	winners, err := engine.Winners(context.Background(), 1234)
	require.NoError(t, err)

	want := []Winner{
		{Username: "ana", Score: 20, Quote: "ana wins"},
		{Username: "cy", Score: 20, Quote: "cy wins"},
	}
	if diff := cmp.Diff(want, winners); diff != "" {
		t.Errorf("Winners() mismatch (-want +got):\n%s", diff)
	}
}

func TestWinnersEmptySession(t *testing.T) {
	repo := &mockRepository{}
	repo.On("FindAllPlayersInSession", mock.Anything, 1).Return([]models.Player{}, nil)

	winners, err := NewEngine(repo, DefaultRule()).Winners(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestLeaderboardCoversAllPlayers(t *testing.T) {
	f := newFixture(1, 2)
	reversed := []models.Player{f.players[1], f.players[0]}
	f.repo.On("FindAllPlayers", mock.Anything).Return(reversed, nil)

	board, err := NewEngine(f.repo, DefaultRule()).Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bo", board[0].Username)
	assert.Equal(t, 20, board[0].Score)
	assert.Equal(t, "ana", board[1].Username)
}

func TestScoreSessionPropagatesRepositoryError(t *testing.T) {
	repo := &mockRepository{}
	boom := errors.New("boom")
	repo.On("FindAllPlayersInSession", mock.Anything, 9).Return([]models.Player(nil), boom)

	_, err := NewEngine(repo, DefaultRule()).ScoreSession(context.Background(), 9)
	assert.ErrorIs(t, err, boom)
}

func TestTopScorers(t *testing.T) {
	assert.Empty(t, TopScorers(nil))

	entries := []ScoreEntry{{Username: "a", Score: 3}, {Username: "b", Score: 5}, {Username: "c", Score: 5}}
	top := TopScorers(entries)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Username)
	assert.Equal(t, "c", top[1].Username)
}
