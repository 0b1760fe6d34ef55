package game

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/identity"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/orchestrator"
	"github.com/mcdev12/scatter/go/internal/repository"
	"github.com/mcdev12/scatter/go/internal/scoring"
)

// takenPins reports the first n pins it is asked about as taken.
type takenPins struct {
	*repository.Memory
	n      int
	probed []int
}

func (r *takenPins) SessionExists(ctx context.Context, pin int) (bool, error) {
	r.probed = append(r.probed, pin)
	if len(r.probed) <= r.n {
		return true, nil
	}
	return r.Memory.SessionExists(ctx, pin)
}

type fixture struct {
	app   *App
	orch  *orchestrator.Orchestrator
	repo  *repository.Memory
	clock clockwork.Clock
}

func newFixture(t *testing.T, repo Repository, mem *repository.Memory) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	engine := scoring.NewEngine(mem, scoring.DefaultRule())
	orch := orchestrator.NewOrchestrator(mem, events.Discard{}, identity.UUIDResolver{}, engine, clock, orchestrator.DefaultConfig())
	t.Cleanup(orch.Shutdown)

	app := NewApp(repo, orch, engine, identity.UUIDResolver{}, clock, DefaultConfig(), rand.New(rand.NewPCG(1, 2)))
	return &fixture{app: app, orch: orch, repo: mem, clock: clock}
}

func (f *fixture) register(t *testing.T, name string) *RegisteredPlayer {
	t.Helper()
	p, err := f.app.RegisterPlayer(context.Background(), RegisterPlayerRequest{Username: name, Quote: name + " was here"})
	require.NoError(t, err)
	return p
}

func TestCreateSession(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()
	host := f.register(t, "ana")

	sess, err := f.app.CreateSession(ctx, host.Token, CreateSessionRequest{
		RoundCount:  3,
		RoundLength: models.RoundLengthMedium,
		Categories:  []string{"City", " Animal "},
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sess.Pin, 1000)
	assert.LessOrEqual(t, sess.Pin, 9999)
	assert.Equal(t, host.Player.ID, sess.HostID)
	assert.Equal(t, []uuid.UUID{host.Player.ID}, sess.PlayerIDs)
	assert.Equal(t, []string{"City", "Animal"}, sess.Categories)
	assert.Equal(t, models.SessionStatusOpen, sess.Status)
	assert.Equal(t, 0, sess.CurrentRound)
	require.Len(t, sess.Letters, 3)

	rounds, err := mem.FindRoundsBySession(ctx, sess.Pin)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	seen := map[string]bool{}
	for i, r := range rounds {
		assert.Equal(t, i+1, r.Number)
		assert.Equal(t, sess.Letters[i], r.Letter)
		assert.Equal(t, models.RoundStatusNotStarted, r.Status)
		assert.Regexp(t, "^[A-Z]$", r.Letter)
		seen[r.Letter] = true
	}
	assert.Len(t, seen, 3)

	_, tracked := f.orch.Snapshot(sess.Pin)
	assert.False(t, tracked, "sessions get timer state only once they are acted on")

	_, err = f.app.CreateSession(ctx, host.Token, CreateSessionRequest{RoundCount: 1, RoundLength: models.RoundLengthShort})
	assert.True(t, apperrors.IsConflict(err), "host already in an open session")
}

func TestCreateSessionUsesDefaultCategories(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)
	host := f.register(t, "ana")

	sess, err := f.app.CreateSession(context.Background(), host.Token, CreateSessionRequest{
		RoundCount:  26,
		RoundLength: models.RoundLengthLong,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DefaultCategories, sess.Categories)
	assert.Len(t, sess.Letters, 26)
}

func TestCreateSessionValidation(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)
	host := f.register(t, "ana")

	tooMany := make([]string, DefaultConfig().MaxCategories+1)
	for i := range tooMany {
		tooMany[i] = string(rune('a' + i))
	}

	tests := []struct {
		name string
		req  CreateSessionRequest
	}{
		{name: "no rounds", req: CreateSessionRequest{RoundCount: 0, RoundLength: models.RoundLengthShort}},
		{name: "too many rounds", req: CreateSessionRequest{RoundCount: 27, RoundLength: models.RoundLengthShort}},
		{name: "unknown length", req: CreateSessionRequest{RoundCount: 1, RoundLength: "FOREVER"}},
		{name: "too many categories", req: CreateSessionRequest{RoundCount: 1, RoundLength: models.RoundLengthShort, Categories: tooMany}},
		{name: "blank category", req: CreateSessionRequest{RoundCount: 1, RoundLength: models.RoundLengthShort, Categories: []string{"City", " "}}},
		{name: "duplicate category", req: CreateSessionRequest{RoundCount: 1, RoundLength: models.RoundLengthShort, Categories: []string{"City", "city"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.app.CreateSession(context.Background(), host.Token, tt.req)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}

	_, ok, err := mem.ActiveSessionForPlayer(context.Background(), host.Player.ID)
	require.NoError(t, err)
	assert.False(t, ok, "failed creates must not leave a session behind")
}

func TestCreateSessionUnknownHost(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)

	req := CreateSessionRequest{RoundCount: 1, RoundLength: models.RoundLengthShort}
	_, err := f.app.CreateSession(context.Background(), "not-a-token", req)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.app.CreateSession(context.Background(), uuid.NewString(), req)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateSessionRedrawsTakenPins(t *testing.T) {
	mem := repository.NewMemory()
	repo := &takenPins{Memory: mem, n: 3}
	f := newFixture(t, repo, mem)
	host := f.register(t, "ana")

	sess, err := f.app.CreateSession(context.Background(), host.Token, CreateSessionRequest{
		RoundCount:  1,
		RoundLength: models.RoundLengthShort,
	})
	require.NoError(t, err)
	require.Len(t, repo.probed, 4)
	assert.Equal(t, repo.probed[3], sess.Pin)
}

func TestRegisterPlayerValidation(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()

	_, err := f.app.RegisterPlayer(ctx, RegisterPlayerRequest{Username: "  "})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.app.RegisterPlayer(ctx, RegisterPlayerRequest{Username: "this-name-is-definitely-longer-than-32"})
	assert.True(t, apperrors.IsValidation(err))

	p := f.register(t, "bo")
	id, ok := identity.UUIDResolver{}.ResolvePlayer(ctx, p.Token)
	require.True(t, ok)
	assert.Equal(t, p.Player.ID, id)
}

func TestMembersAndQueries(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()
	ana := f.register(t, "ana")
	bo := f.register(t, "bo")

	sess, err := f.app.CreateSession(ctx, ana.Token, CreateSessionRequest{
		RoundCount:  1,
		RoundLength: models.RoundLengthShort,
		Categories:  []string{"City"},
	})
	require.NoError(t, err)
	require.NoError(t, f.app.JoinSession(ctx, sess.Pin, bo.Token))

	members, err := f.app.GetMembers(ctx, sess.Pin)
	require.NoError(t, err)
	assert.Equal(t, "ana", members.HostUsername)
	assert.Equal(t, []string{"ana", "bo"}, members.Usernames)

	categories, err := f.app.GetCategories(ctx, sess.Pin)
	require.NoError(t, err)
	assert.Equal(t, []string{"City"}, categories)

	require.NoError(t, f.app.StartSession(ctx, sess.Pin))
	require.NoError(t, f.app.StartRound(ctx, sess.Pin, 1))
	_, err = f.app.SubmitAnswer(ctx, sess.Pin, bo.Token, 1, "City", "Berlin")
	require.NoError(t, err)

	answers, err := f.app.GetAnswers(ctx, sess.Pin, 1)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "Berlin", answers[0].Text)

	view, err := f.app.GetSession(ctx, sess.Pin)
	require.NoError(t, err)
	require.NotNil(t, view.Phase)
	assert.Equal(t, orchestrator.PhaseAnswering, view.Phase.Phase)
	assert.Equal(t, models.RoundStatusRunning, view.Rounds[0].Status)

	board, err := f.app.GetScoreboard(ctx, sess.Pin)
	require.NoError(t, err)
	assert.Len(t, board, 2)

	_, err = f.app.GetWinners(ctx, 4242)
	assert.True(t, apperrors.IsNotFound(err))

	leaders, err := f.app.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Len(t, leaders, 2)
}
