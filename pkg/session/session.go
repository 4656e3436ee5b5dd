// Package session drives one mission against the headless world: trigger
// polling, engine updates and the fixed-rate runner.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/scoreboard"
	"github.com/zurustar/mission-vm/pkg/vm"
	"github.com/zurustar/mission-vm/pkg/world"
)

// Session owns the world and the engine of one running mission.
// Step and Run must be called from a single goroutine; Tick and LogAttrs
// may be called from anywhere.
type Session struct {
	campaign string
	mission  *mission.Mission
	world    *world.World
	engine   *vm.Engine
	log      *slog.Logger
	observer vm.Observer

	tick    atomic.Uint64
	elapsed time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithObserver forwards engine events to o.
func WithObserver(o vm.Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithCampaign records the campaign the mission came from.
func WithCampaign(name string) Option {
	return func(s *Session) {
		s.campaign = name
	}
}

// New builds the world, runs the init section and returns a session ready
// to step.
func New(m *mission.Mission, opts ...Option) (*Session, error) {
	if m == nil {
		return nil, errors.New("mission is nil")
	}
	s := &Session{mission: m, log: logger.GetLogger()}
	for _, opt := range opts {
		opt(s)
	}

	s.world = world.New(
		world.WithLogger(s.log),
		world.WithBriefingHandler(func(id int) {
			s.log.Info("Briefing", "mission", m.ID, "briefing", id)
		}),
	)

	engineOpts := []vm.Option{vm.WithLogger(s.log)}
	if s.observer != nil {
		engineOpts = append(engineOpts, vm.WithObserver(s.observer))
	}
	s.engine = vm.New(m, engineOpts...)
	if err := s.engine.Initialize(s.world); err != nil {
		return nil, fmt.Errorf("failed to initialize mission %d: %w", m.ID, err)
	}

	s.log.Info("Session started",
		"mission", m.ID,
		"name", m.DisplayName(),
		"map", m.Map,
		"triggers", len(s.world.Triggers()))
	return s, nil
}

// Mission returns the running mission.
func (s *Session) Mission() *mission.Mission { return s.mission }

// World returns the host world.
func (s *Session) World() *world.World { return s.world }

// Engine returns the engine.
func (s *Session) Engine() *vm.Engine { return s.engine }

// Campaign returns the campaign name given by WithCampaign.
func (s *Session) Campaign() string { return s.campaign }

// Tick returns the number of completed steps.
func (s *Session) Tick() uint64 { return s.tick.Load() }

// Elapsed returns the game time simulated so far.
func (s *Session) Elapsed() time.Duration { return s.elapsed }

// Step polls every trigger against the player position, then services
// the engine's threads once.
func (s *Session) Step(elapsed time.Duration) {
	if !s.engine.Running() {
		return
	}
	s.world.PollTriggers()
	s.engine.Update(elapsed)
	s.elapsed += elapsed
	s.tick.Add(1)
}

// Idle reports whether nothing can happen any more without outside help:
// no thread is alive and no trigger is armed.
func (s *Session) Idle() bool {
	return s.engine.ActiveThreads() == 0 && !s.world.HasArmedTriggers()
}

// Stop ends the engine. Stopping twice is harmless.
func (s *Session) Stop() {
	if !s.engine.Running() {
		return
	}
	if err := s.engine.Stop(); err != nil {
		s.log.Warn("Failed to stop engine", "error", err)
	}
}

// LogAttrs returns the attributes attached to every log record while the
// session runs.
func (s *Session) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("mission", s.mission.ID),
		slog.Uint64("tick", s.Tick()),
	}
}

// Record summarises the session for the scoreboard.
func (s *Session) Record(outcome scoreboard.Outcome) *scoreboard.Session {
	return &scoreboard.Session{
		Campaign:    s.campaign,
		MissionID:   s.mission.ID,
		MissionName: s.mission.DisplayName(),
		Score:       s.world.Score(),
		Target:      s.world.TargetScore(),
		Ticks:       s.Tick(),
		Duration:    s.elapsed,
		Outcome:     outcome,
	}
}

// RunOptions controls Run.
type RunOptions struct {
	TickInterval time.Duration // game time per step and wall-clock pacing
	MaxTicks     uint64        // 0 means unlimited
	Timeout      time.Duration // 0 means unlimited
}

// Run steps the session at a fixed rate until it goes idle, reaches the
// tick limit, times out or ctx is cancelled.
func (s *Session) Run(ctx context.Context, opts RunOptions) scoreboard.Outcome {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = time.Second / 30
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	outcome := s.loop(ctx, ticker.C, interval, opts.MaxTicks)
	s.log.Info("Session finished",
		"mission", s.mission.ID,
		"outcome", string(outcome),
		"ticks", s.Tick(),
		"score", s.world.Score(),
		"target", s.world.TargetScore())
	return outcome
}

func (s *Session) loop(ctx context.Context, tick <-chan time.Time, interval time.Duration, maxTicks uint64) scoreboard.Outcome {
	for {
		if maxTicks > 0 && s.Tick() >= maxTicks {
			return scoreboard.OutcomeTickLimit
		}
		if s.Idle() {
			return scoreboard.OutcomeIdle
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return scoreboard.OutcomeTimeout
			}
			return scoreboard.OutcomeInterrupted
		case <-tick:
			s.Step(interval)
		}
	}
}
