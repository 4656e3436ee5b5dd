package vm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/opcode"
)

// Engine lifecycle states.
const (
	StateIdle        = "idle"
	StateInitialized = "initialized"
	StateStopped     = "stopped"
)

const (
	triggerInitialize = "initialize"
	triggerStop       = "stop"
)

// Thread is a cooperative execution cursor over the command list.
type Thread struct {
	ID     int
	Label  int // label the thread was started at
	Cursor int
	Alive  bool

	wait   Condition
	resume int
}

// Waiting reports whether the thread is suspended on a condition.
func (t *Thread) Waiting() bool { return t.wait != nil }

// Condition returns the pending wait condition.
func (t *Thread) Condition() Condition { return t.wait }

// Engine executes one mission.
// All methods must be called from the goroutine driving Update.
type Engine struct {
	mission *mission.Mission
	refs    *References
	host    Host

	threads []*Thread
	nextID  int
	tick    uint64

	initHandlers    map[opcode.Cmd]initHandler
	commandHandlers map[opcode.Cmd]commandHandler

	fsm      *stateless.StateMachine
	log      *slog.Logger
	observer Observer
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithObserver attaches an execution observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an engine for m. Nothing runs until Initialize.
func New(m *mission.Mission, opts ...Option) *Engine {
	e := &Engine{
		mission:         m,
		refs:            NewReferences(),
		nextID:          1,
		initHandlers:    newInitHandlers(),
		commandHandlers: newCommandHandlers(),
		log:             logger.GetLogger(),
		observer:        nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.fsm = stateless.NewStateMachine(StateIdle)
	e.fsm.Configure(StateIdle).
		Permit(triggerInitialize, StateInitialized).
		Permit(triggerStop, StateStopped)
	e.fsm.Configure(StateInitialized).
		Permit(triggerStop, StateStopped)
	e.fsm.Configure(StateStopped).
		OnEntry(func(_ context.Context, _ ...any) error {
			for _, t := range e.threads {
				t.Alive = false
			}
			e.threads = nil
			return nil
		})

	return e
}

// Mission returns the mission being executed.
func (e *Engine) Mission() *mission.Mission { return e.mission }

// References returns the label table.
func (e *Engine) References() *References { return e.refs }

// Host returns the host world set by Initialize.
func (e *Engine) Host() Host { return e.host }

// State returns the lifecycle state.
func (e *Engine) State() string {
	s, _ := e.fsm.MustState().(string)
	return s
}

// Tick returns the number of completed Update calls.
func (e *Engine) Tick() uint64 { return e.tick }

// Initialize runs every init line once, in source order, and builds the
// reference table. It may be called only once.
func (e *Engine) Initialize(host Host) error {
	if host == nil {
		return NewRuntimeError(ErrorInvalidState, "host is nil")
	}
	if err := e.fsm.Fire(triggerInitialize); err != nil {
		return NewRuntimeError(ErrorInvalidState, fmt.Sprintf("cannot initialize in state %s: %v", e.State(), err))
	}
	e.host = host

	for _, line := range e.mission.Init {
		cmd, ok := opcode.Lookup(line.Op, opcode.SectionInit)
		handler := e.initHandlers[cmd]
		if !ok || handler == nil {
			e.anomaly(NewUnknownOpcodeError(line.Op).WithLine(line.Line))
			continue
		}
		obj, created := handler(e, line)
		if !created || line.Label == 0 {
			continue
		}
		if err := e.refs.BindObject(line.Label, obj); err != nil {
			e.anomaly(asRuntimeError(err).WithLine(line.Line))
		}
	}

	for i, line := range e.mission.Commands {
		if err := e.refs.BindPosition(line.Label, i); err != nil {
			e.anomaly(asRuntimeError(err).WithLine(line.Line))
		}
	}
	e.refs.Freeze()

	e.log.Info("Mission initialized",
		"mission", e.mission.ID,
		"objects", len(e.refs.objects),
		"labels", len(e.refs.positions))
	return nil
}

// Stop ends all threads. The engine cannot be restarted.
func (e *Engine) Stop() error {
	if err := e.fsm.Fire(triggerStop); err != nil {
		return NewRuntimeError(ErrorInvalidState, fmt.Sprintf("cannot stop in state %s: %v", e.State(), err))
	}
	e.log.Info("Mission stopped", "mission", e.mission.ID, "tick", e.tick)
	return nil
}

// Running reports whether Update does anything.
func (e *Engine) Running() bool {
	return e.State() == StateInitialized
}

// StartThread starts a new thread at the line carrying label.
// The thread first runs on the next Update pass.
func (e *Engine) StartThread(label int) bool {
	if !e.Running() {
		e.log.Debug("Thread start ignored", "label", label, "state", e.State())
		return false
	}
	idx, err := e.refs.Position(label)
	if err != nil {
		e.anomaly(asRuntimeError(err))
		return false
	}

	t := &Thread{ID: e.nextID, Label: label, Cursor: idx, Alive: true}
	e.nextID++
	e.threads = append(e.threads, t)
	e.observer.ThreadStarted(label)
	e.log.Debug("Thread started", "thread", t.ID, "label", label, "cursor", idx)
	return true
}

// ActiveThreads returns the number of alive threads.
func (e *Engine) ActiveThreads() int {
	n := 0
	for _, t := range e.threads {
		if t.Alive {
			n++
		}
	}
	return n
}

// Threads returns a copy of the alive threads in creation order.
func (e *Engine) Threads() []Thread {
	out := make([]Thread, 0, len(e.threads))
	for _, t := range e.threads {
		if t.Alive {
			out = append(out, *t)
		}
	}
	return out
}

// Update services every alive thread once. Threads run until they jump,
// wait or end; plain fallthrough does not yield.
func (e *Engine) Update(elapsed time.Duration) {
	if !e.Running() {
		e.log.Debug("Update ignored", "state", e.State())
		return
	}

	// threads started during this pass wait for the next one
	pass := make([]*Thread, len(e.threads))
	copy(pass, e.threads)

	for _, t := range pass {
		if !t.Alive {
			continue
		}
		e.service(t, elapsed)
	}

	e.sweep()
	e.tick++
	e.observer.TickCompleted(e.ActiveThreads(), elapsed)
}

func (e *Engine) service(t *Thread, elapsed time.Duration) {
	if t.wait != nil {
		if !t.wait.Poll(e.host, elapsed) {
			return
		}
		resume := t.resume
		t.wait, t.resume = nil, 0
		e.log.Debug("Thread resumed", "thread", t.ID, "cursor", t.Cursor, "label", resume)
		if e.apply(t, Jump(resume), -1) {
			return
		}
	}
	e.run(t)
}

func (e *Engine) run(t *Thread) {
	cmds := e.mission.Commands
	for t.Alive {
		if t.Cursor < 0 || t.Cursor >= len(cmds) {
			e.log.Debug("Thread ran past the last line", "thread", t.ID)
			e.finish(t)
			return
		}

		line := cmds[t.Cursor]
		cmd, ok := opcode.Lookup(line.Op, opcode.SectionCommand)
		handler := e.commandHandlers[cmd]
		if !ok || handler == nil {
			e.anomaly(NewUnknownOpcodeError(line.Op).WithLine(line.Line))
			e.finish(t)
			return
		}

		res := handler(e, t, line)
		e.observer.CommandExecuted(cmd)
		if e.apply(t, res, line.Line) {
			return
		}
	}
}

// apply moves the cursor according to res and reports whether the thread yields.
func (e *Engine) apply(t *Thread, res Result, line int) bool {
	if d := res.ScoreDelta(); d != 0 {
		e.host.AddScore(d)
	}

	switch res.Flow() {
	case FlowTerminate:
		e.finish(t)
		return true

	case FlowWait:
		t.wait, t.resume = res.Condition(), res.Label()
		return true

	case FlowLabel:
		idx, err := e.refs.Position(res.Label())
		if err != nil {
			e.anomaly(asRuntimeError(err).WithLine(line))
			t.Cursor++
			return false
		}
		t.Cursor = idx
		return true

	case FlowRelative:
		target := t.Cursor + res.Offset()
		if target < 0 || target >= len(e.mission.Commands) {
			e.anomaly(NewBadJumpError(target, len(e.mission.Commands)).WithLine(line))
			e.finish(t)
			return true
		}
		t.Cursor = target
		return true

	default:
		t.Cursor++
		return false
	}
}

func (e *Engine) finish(t *Thread) {
	t.Alive = false
	t.wait = nil
	e.observer.ThreadFinished(t.ID)
	e.log.Debug("Thread finished", "thread", t.ID, "cursor", t.Cursor)
}

// sweep drops dead threads by identity, keeping creation order.
func (e *Engine) sweep() {
	remaining := e.threads[:0]
	for _, t := range e.threads {
		if t.Alive {
			remaining = append(remaining, t)
		}
	}
	for i := len(remaining); i < len(e.threads); i++ {
		e.threads[i] = nil
	}
	e.threads = remaining
}

func (e *Engine) anomaly(err *RuntimeError) {
	e.observer.Anomaly(err.Type)
	attrs := []any{"mission", e.mission.ID, "type", string(err.Type), "error", err.Message}
	if err.Line >= 0 {
		attrs = append(attrs, "line", err.Line)
	}
	if err.Type == ErrorUnknownOpcode {
		e.log.Debug("Script anomaly", attrs...)
		return
	}
	e.log.Warn("Script anomaly", attrs...)
}

func asRuntimeError(err error) *RuntimeError {
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	return NewRuntimeError(ErrorInvalidState, err.Error())
}
