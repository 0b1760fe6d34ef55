package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/events"
	"github.com/mcdev12/scatter/go/internal/ticker"
)

const tickTimeout = 5 * time.Second

// enterPhase replaces the session's timer with a fresh one for phase. Must be
// called with st.mu held.
func (o *Orchestrator) enterPhase(st *sessionState, phase Phase, ticks, category int) {
	o.stopTimer(st)

	st.phase = phase
	st.remaining = ticks
	st.category = category
	gen := st.gen
	st.ticker = ticker.Start(o.clock, o.cfg.TickInterval, func() {
		o.onTick(st, gen)
	})

	log.Debug().
		Int("session_pin", st.pin).
		Str("phase", string(phase)).
		Int("category", category).
		Int("ticks", ticks).
		Msg("phase entered")
}

// stopTimer cancels the active timer. Ticks already queued for it are discarded
// because the generation no longer matches. Must be called with st.mu held.
func (o *Orchestrator) stopTimer(st *sessionState) {
	st.ticker.Stop()
	st.ticker = nil
	st.gen++
}

// onTick runs one step of the session's active phase.
func (o *Orchestrator) onTick(st *sessionState, gen uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen != gen {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.halt(st, fmt.Errorf("panic in %s tick: %v", st.phase, r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if err := o.step(ctx, st); err != nil {
		o.halt(st, err)
	}
}

func (o *Orchestrator) step(ctx context.Context, st *sessionState) error {
	switch st.phase {
	case PhaseAnswering:
		return o.tickAnswering(ctx, st)
	case PhaseVoting:
		return o.tickVoting(ctx, st)
	case PhaseResults:
		return o.tickResults(ctx, st)
	case PhaseIntermission:
		return o.tickIntermission(ctx, st)
	default:
		// a tick with no timed phase means the timer outlived its phase
		o.stopTimer(st)
		return nil
	}
}

// halt ends the session's timer chain after an inconsistency found mid-tick.
func (o *Orchestrator) halt(st *sessionState, err error) {
	log.Error().
		Err(err).
		Int("session_pin", st.pin).
		Str("phase", string(st.phase)).
		Msg("session timer halted")
	o.stopTimer(st)
	st.phase = PhaseIdle
}

// publish sends a session event. Delivery failures never affect the phase.
func (o *Orchestrator) publish(ctx context.Context, pin int, typ events.Type, payload any) {
	ev, err := events.New(pin, typ, o.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Int("session_pin", pin).Str("event_type", string(typ)).Msg("failed to build event")
		return
	}
	o.publisher.Publish(ctx, ev)
}
