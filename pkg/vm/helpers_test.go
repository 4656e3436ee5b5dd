package vm

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/opcode"
)

// fakeHost records every call the engine makes.
type fakeHost struct {
	nextHandle Handle
	vehicles   map[Handle]mission.Coord
	characters map[Handle]bool // handle -> is player
	doors      map[Handle]bool // handle -> open
	exploded   []Handle
	triggers   []*Trigger
	briefings  []int
	score      int
	target     int
	wrecked    bool

	player     geom.XY
	inVehicle  Handle
	hasVehicle bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		nextHandle: 1,
		vehicles:   make(map[Handle]mission.Coord),
		characters: make(map[Handle]bool),
		doors:      make(map[Handle]bool),
		player:     geom.XY{X: -100, Y: -100},
	}
}

func (h *fakeHost) handle() Handle {
	n := h.nextHandle
	h.nextHandle++
	return n
}

func (h *fakeHost) SpawnVehicle(pos mission.Coord, _ int) Handle {
	n := h.handle()
	h.vehicles[n] = pos
	return n
}

func (h *fakeHost) SpawnCharacter(_ mission.Coord, _ int, player bool) Handle {
	n := h.handle()
	h.characters[n] = player
	return n
}

func (h *fakeHost) SpawnDoor(_ mission.Coord, _ int) Handle {
	n := h.handle()
	h.doors[n] = false
	return n
}

func (h *fakeHost) AddTrigger(t *Trigger) { h.triggers = append(h.triggers, t) }
func (h *fakeHost) SetDoorOpen(door Handle, open bool) { h.doors[door] = open }
func (h *fakeHost) Explode(v Handle) { h.exploded = append(h.exploded, v) }
func (h *fakeHost) Score() int { return h.score }
func (h *fakeHost) AddScore(delta int) { h.score += delta }
func (h *fakeHost) TargetScore() int { return h.target }
func (h *fakeHost) SetTargetScore(score int) { h.target = score }
func (h *fakeHost) ShowBriefing(id int) { h.briefings = append(h.briefings, id) }
func (h *fakeHost) SetTrainWrecked(w bool) { h.wrecked = w }
func (h *fakeHost) TrainWrecked() bool { return h.wrecked }
func (h *fakeHost) PlayerPosition() geom.XY { return h.player }

func (h *fakeHost) PlayerVehicle() (Handle, bool) {
	return h.inVehicle, h.hasVehicle
}

func (h *fakeHost) pollTriggers() {
	for _, t := range h.triggers {
		t.Poll(h.player)
	}
}

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	started   []int
	finished  int
	commands  []opcode.Cmd
	anomalies []ErrorType
	ticks     int
}

func (o *recordingObserver) ThreadStarted(label int) { o.started = append(o.started, label) }
func (o *recordingObserver) ThreadFinished(int) { o.finished++ }
func (o *recordingObserver) CommandExecuted(c opcode.Cmd) { o.commands = append(o.commands, c) }
func (o *recordingObserver) Anomaly(t ErrorType) { o.anomalies = append(o.anomalies, t) }
func (o *recordingObserver) TickCompleted(int, time.Duration) { o.ticks++ }

type testEngine struct {
	*Engine
	host *fakeHost
	obs  *recordingObserver
	logs *bytes.Buffer
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// parseMission parses src and fails the test unless it yields exactly one clean mission.
func parseMission(t *testing.T, src string) *mission.Mission {
	t.Helper()
	p := mission.NewParser(mission.WithLogger(quietLogger()))
	missions := p.Parse([]byte(src))
	if len(p.Anomalies()) != 0 {
		t.Fatalf("unexpected parse anomalies: %v", p.Anomalies())
	}
	if len(missions) != 1 {
		t.Fatalf("expected 1 mission, got %d", len(missions))
	}
	return missions[0]
}

// newTestEngine parses src, builds an engine with a fake host and initializes it.
func newTestEngine(t *testing.T, src string) *testEngine {
	t.Helper()
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	obs := &recordingObserver{}
	e := New(parseMission(t, src), WithLogger(log), WithObserver(obs))
	host := newFakeHost()
	if err := e.Initialize(host); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return &testEngine{Engine: e, host: host, obs: obs, logs: &logs}
}

// cursors returns the cursor of every alive thread.
func (te *testEngine) cursors() []int {
	var out []int
	for _, t := range te.Threads() {
		out = append(out, t.Cursor)
	}
	return out
}

func (te *testEngine) anomalyCount(errType ErrorType) int {
	n := 0
	for _, a := range te.obs.anomalies {
		if a == errType {
			n++
		}
	}
	return n
}

const tick = 100 * time.Millisecond
