package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/opcode"
	"github.com/zurustar/mission-vm/pkg/scoreboard"
	"github.com/zurustar/mission-vm/pkg/vm"
	"go.uber.org/goleak"
)

const oneShot = `[1]
Idle Test
(2,2,0)PLAYER 0
10 (2,2,0)TRIGGER 20 0
(0,0,0)TARGET 100
-1
20 SCORE 100
DONOWT
`

const repeating = `[2]
Forever
(2,2,0)PLAYER 0
10 1(2,2,0)TRIGGER 20 0
-1
20 DONOWT
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T, src string, opts ...Option) *Session {
	t.Helper()
	missions := mission.NewParser(mission.WithLogger(quietLogger())).Parse([]byte(src))
	require.Len(t, missions, 1)
	s, err := New(missions[0], append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return s
}

type countingObserver struct {
	started, commands, ticks int
}

func (o *countingObserver) ThreadStarted(int) { o.started++ }
func (o *countingObserver) ThreadFinished(int) {}
func (o *countingObserver) CommandExecuted(opcode.Cmd) { o.commands++ }
func (o *countingObserver) Anomaly(vm.ErrorType) {}
func (o *countingObserver) TickCompleted(int, time.Duration) { o.ticks++ }

func TestNew_NilMission(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestStep(t *testing.T) {
	obs := &countingObserver{}
	s := newSession(t, oneShot, WithObserver(obs), WithCampaign("test"))

	assert.False(t, s.Idle(), "armed trigger keeps the session alive")
	s.Step(50 * time.Millisecond)

	assert.Equal(t, uint64(1), s.Tick())
	assert.Equal(t, 50*time.Millisecond, s.Elapsed())
	assert.Equal(t, 100, s.World().Score())
	assert.True(t, s.Idle())

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 2, obs.commands)
	assert.Equal(t, 1, obs.ticks)

	rec := s.Record(scoreboard.OutcomeIdle)
	assert.Equal(t, "test", rec.Campaign)
	assert.Equal(t, 1, rec.MissionID)
	assert.Equal(t, "Idle Test", rec.MissionName)
	assert.Equal(t, 100, rec.Score)
	assert.Equal(t, 100, rec.Target)
	assert.Equal(t, uint64(1), rec.Ticks)
	assert.Equal(t, 50*time.Millisecond, rec.Duration)
}

func TestStop(t *testing.T) {
	s := newSession(t, repeating)
	s.Stop()
	s.Stop()

	s.Step(time.Millisecond)
	assert.Equal(t, uint64(0), s.Tick())
	assert.False(t, s.Engine().Running())
}

func TestLogAttrs(t *testing.T) {
	s := newSession(t, repeating)
	s.Step(time.Millisecond)

	attrs := s.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "mission", attrs[0].Key)
	assert.Equal(t, int64(2), attrs[0].Value.Int64())
	assert.Equal(t, "tick", attrs[1].Key)
	assert.Equal(t, uint64(1), attrs[1].Value.Uint64())
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("idle", func(t *testing.T) {
		s := newSession(t, oneShot)
		outcome := s.Run(context.Background(), RunOptions{TickInterval: time.Millisecond})
		assert.Equal(t, scoreboard.OutcomeIdle, outcome)
		assert.Equal(t, uint64(1), s.Tick())
	})

	t.Run("tick limit", func(t *testing.T) {
		s := newSession(t, repeating)
		outcome := s.Run(context.Background(), RunOptions{TickInterval: time.Millisecond, MaxTicks: 5})
		assert.Equal(t, scoreboard.OutcomeTickLimit, outcome)
		assert.Equal(t, uint64(5), s.Tick())
	})

	t.Run("timeout", func(t *testing.T) {
		s := newSession(t, repeating)
		outcome := s.Run(context.Background(), RunOptions{TickInterval: time.Millisecond, Timeout: 20 * time.Millisecond})
		assert.Equal(t, scoreboard.OutcomeTimeout, outcome)
	})

	t.Run("interrupted", func(t *testing.T) {
		s := newSession(t, repeating)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		outcome := s.Run(ctx, RunOptions{TickInterval: time.Hour})
		assert.Equal(t, scoreboard.OutcomeInterrupted, outcome)
		assert.Equal(t, uint64(0), s.Tick())
	})
}
