package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []*Event
}

func (r *recorder) Publish(_ context.Context, ev *Event) {
	r.got = append(r.got, ev)
}

func TestNewAndDecode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev, err := New(1234, TypeLetterAssigned, at, LetterAssignedPayload{RoundNumber: 2, Letter: "Q", RoundLengthSec: 60})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1234, ev.SessionPin)
	assert.Equal(t, at, ev.Timestamp)
	assert.JSONEq(t, `{"round_number":2,"letter":"Q","round_length_sec":60}`, string(ev.Data))

	payload, err := Decode[LetterAssignedPayload](ev)
	require.NoError(t, err)
	assert.Equal(t, "Q", payload.Letter)
}

func TestNewRejectsUnmarshalablePayload(t *testing.T) {
	_, err := New(1, TypeWinners, time.Now(), make(chan int))
	assert.Error(t, err)
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	ev := &Event{Type: TypeRoundEnded}

	Fanout{a, Discard{}, b}.Publish(context.Background(), ev)

	assert.Equal(t, []*Event{ev}, a.got)
	assert.Equal(t, []*Event{ev}, b.got)
}
