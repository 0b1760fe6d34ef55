package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/identity"
	"github.com/mcdev12/scatter/go/internal/models"
	"github.com/mcdev12/scatter/go/internal/repository"
	"github.com/mcdev12/scatter/go/internal/scoring"
)

const (
	testPin  = 1234
	otherPin = 5678
)

var errStoreDown = errors.New("store unavailable")

// faultyStore wraps the in-memory repository and can make a session or round
// disappear, or make round starts fail to persist.
type faultyStore struct {
	*repository.Memory

	mu             sync.Mutex
	goneSessions   map[int]bool
	goneRounds     map[int]bool
	failRoundStart bool
}

func newFaultyStore(m *repository.Memory) *faultyStore {
	return &faultyStore{Memory: m, goneSessions: map[int]bool{}, goneRounds: map[int]bool{}}
}

func (f *faultyStore) dropSession(pin int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goneSessions[pin] = true
}

func (f *faultyStore) dropRounds(pin int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goneRounds[pin] = true
}

func (f *faultyStore) failRoundStarts() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRoundStart = true
}

// heal clears every injected fault.
func (f *faultyStore) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goneSessions = map[int]bool{}
	f.goneRounds = map[int]bool{}
	f.failRoundStart = false
}

func (f *faultyStore) FindSession(ctx context.Context, pin int) (*models.Session, error) {
	f.mu.Lock()
	gone := f.goneSessions[pin]
	f.mu.Unlock()
	if gone {
		return nil, apperrors.NewNotFound("session", pin)
	}
	return f.Memory.FindSession(ctx, pin)
}

func (f *faultyStore) FindRound(ctx context.Context, pin, number int) (*models.Round, error) {
	f.mu.Lock()
	gone := f.goneRounds[pin]
	f.mu.Unlock()
	if gone {
		return nil, apperrors.NewNotFound("round", number)
	}
	return f.Memory.FindRound(ctx, pin, number)
}

func (f *faultyStore) SaveRoundStart(ctx context.Context, s *models.Session, r *models.Round) error {
	f.mu.Lock()
	fail := f.failRoundStart
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Memory.SaveRoundStart(ctx, s, r)
}

// flakyScorer panics on Scoreboard once armed.
type flakyScorer struct {
	Scorer
	panics atomic.Bool
}

func (f *flakyScorer) Scoreboard(ctx context.Context, pin int) ([]scoring.ScoreEntry, error) {
	if f.panics.Load() {
		panic("scoreboard exploded")
	}
	return f.Scorer.Scoreboard(ctx, pin)
}

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) Publish(_ context.Context, ev *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) countFor(pin int, typ events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.SessionPin == pin && ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) totalFor(pin int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.SessionPin == pin {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ events.Type) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i]
		}
	}
	return nil
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	repo    *repository.Memory
	store   *faultyStore
	scorer  *flakyScorer
	rec     *recorder
	clock   clockwork.Clock
	o       *Orchestrator
	players []models.Player
}

// newHarness creates session testPin with the given rounds, categories and players.
// The fake clock is never advanced unless a test does so, so phases move only
// through h.tick.
func newHarness(t *testing.T, roundCount int, categories []string, names ...string) *harness {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemory()

	h := &harness{t: t, ctx: ctx, repo: repo, store: newFaultyStore(repo), rec: &recorder{}}
	h.players = h.addSession(testPin, roundCount, categories, names...)

	h.clock = clockwork.NewFakeClock()
	h.scorer = &flakyScorer{Scorer: scoring.NewEngine(repo, scoring.DefaultRule())}
	h.o = h.newOrchestrator()
	t.Cleanup(h.o.Shutdown)
	return h
}

// newOrchestrator builds an orchestrator over the harness store, as a restarted
// process would.
func (h *harness) newOrchestrator() *Orchestrator {
	return NewOrchestrator(h.store, h.rec, identity.UUIDResolver{}, h.scorer, h.clock, DefaultConfig())
}

// addSession creates an OPEN session at pin with fresh players and returns them.
func (h *harness) addSession(pin, roundCount int, categories []string, names ...string) []models.Player {
	h.t.Helper()
	players := make([]models.Player, 0, len(names))
	for _, n := range names {
		p := models.Player{ID: uuid.New(), Username: n, Quote: n + " rules"}
		require.NoError(h.t, h.repo.SavePlayer(h.ctx, &p))
		players = append(players, p)
	}

	letters := []string{"K", "L", "M", "N", "O", "P"}[:roundCount]
	sess := &models.Session{
		Pin:         pin,
		HostID:      players[0].ID,
		RoundCount:  roundCount,
		RoundLength: models.RoundLengthShort,
		Letters:     letters,
		Categories:  categories,
		Status:      models.SessionStatusOpen,
	}
	for _, p := range players {
		sess.PlayerIDs = append(sess.PlayerIDs, p.ID)
	}
	rounds := make([]models.Round, 0, roundCount)
	for i, l := range letters {
		rounds = append(rounds, models.Round{SessionPin: pin, Number: i + 1, Letter: l, Status: models.RoundStatusNotStarted})
	}
	require.NoError(h.t, h.repo.CreateSession(h.ctx, sess, rounds))
	return players
}

func (h *harness) token(i int) string {
	return h.players[i].ID.String()
}

// tick delivers n ticks to the session's current timer.
func (h *harness) tick(n int) {
	h.t.Helper()
	h.tickPin(testPin, n)
}

func (h *harness) tickPin(pin, n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		st := h.o.lookup(pin)
		if st == nil {
			return
		}
		st.mu.Lock()
		gen := st.gen
		st.mu.Unlock()
		h.o.onTick(st, gen)
	}
}

func (h *harness) phase() Phase {
	snap, ok := h.o.Snapshot(testPin)
	if !ok {
		return PhaseClosed
	}
	return snap.Phase
}

func (h *harness) round(n int) *models.Round {
	h.t.Helper()
	r, err := h.repo.FindRound(h.ctx, testPin, n)
	require.NoError(h.t, err)
	return r
}

func (h *harness) session() *models.Session {
	h.t.Helper()
	s, err := h.repo.FindSession(h.ctx, testPin)
	require.NoError(h.t, err)
	return s
}

func (h *harness) startRunning() {
	h.t.Helper()
	require.NoError(h.t, h.o.StartSession(h.ctx, testPin))
	require.NoError(h.t, h.o.StartRound(h.ctx, testPin, 1))
}

func (h *harness) skipAll() {
	h.t.Helper()
	for i := range h.players {
		require.NoError(h.t, h.o.RequestSkip(h.ctx, testPin, h.token(i)))
	}
}
