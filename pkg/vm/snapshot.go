package vm

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// Snapshot is the serializable state of a running engine.
// Objects are identified by their labels; host entities by their handles.
type Snapshot struct {
	Mission  int                  `cbor:"1,keyasint"`
	Tick     uint64               `cbor:"2,keyasint"`
	NextID   int                  `cbor:"3,keyasint"`
	Threads  []ThreadState        `cbor:"4,keyasint,omitempty"`
	Counters map[int]int          `cbor:"5,keyasint,omitempty"`
	Dummies  map[int]DummyState   `cbor:"6,keyasint,omitempty"`
	Triggers map[int]TriggerState `cbor:"7,keyasint,omitempty"`
	Score    int                  `cbor:"8,keyasint"`
	Target   int                  `cbor:"9,keyasint"`
	Wrecked  bool                 `cbor:"10,keyasint,omitempty"`
}

// ThreadState is one saved thread.
type ThreadState struct {
	ID     int        `cbor:"1,keyasint"`
	Label  int        `cbor:"2,keyasint"`
	Cursor int        `cbor:"3,keyasint"`
	Wait   *WaitState `cbor:"4,keyasint,omitempty"`
}

// Wait kinds.
const (
	WaitCountdown    = "countdown"
	WaitEnterVehicle = "enter_vehicle"
)

// WaitState is a saved wait condition and its continuation label.
type WaitState struct {
	Kind      string        `cbor:"1,keyasint"`
	Remaining time.Duration `cbor:"2,keyasint,omitempty"`
	Vehicle   Handle        `cbor:"3,keyasint,omitempty"`
	Resume    int           `cbor:"4,keyasint,omitempty"`
}

// DummyState is the content of a dummy slot.
// Ref is set when the held object is itself a labelled object.
type DummyState struct {
	Kind   Kind   `cbor:"1,keyasint"`
	Handle Handle `cbor:"2,keyasint,omitempty"`
	Ref    int    `cbor:"3,keyasint,omitempty"`
}

// TriggerState is the arming state of a trigger.
type TriggerState struct {
	Disabled bool `cbor:"1,keyasint,omitempty"`
	Inside   bool `cbor:"2,keyasint,omitempty"`
}

// Capture builds a Snapshot of the current state.
func (e *Engine) Capture() (*Snapshot, error) {
	if !e.Running() {
		return nil, NewRuntimeError(ErrorInvalidState, fmt.Sprintf("cannot snapshot in state %s", e.State()))
	}

	s := &Snapshot{
		Mission:  e.mission.ID,
		Tick:     e.tick,
		NextID:   e.nextID,
		Counters: make(map[int]int),
		Dummies:  make(map[int]DummyState),
		Triggers: make(map[int]TriggerState),
		Score:    e.host.Score(),
		Target:   e.host.TargetScore(),
		Wrecked:  e.host.TrainWrecked(),
	}

	for _, t := range e.threads {
		if !t.Alive {
			continue
		}
		ts := ThreadState{ID: t.ID, Label: t.Label, Cursor: t.Cursor}
		if t.wait != nil {
			ws, err := waitState(t.wait)
			if err != nil {
				return nil, err
			}
			ws.Resume = t.resume
			ts.Wait = ws
		}
		s.Threads = append(s.Threads, ts)
	}

	for label, obj := range e.refs.objects {
		switch obj.Kind() {
		case KindCounter:
			s.Counters[label] = obj.counter.Value()
		case KindTrigger:
			s.Triggers[label] = TriggerState{Disabled: obj.trigger.disabled, Inside: obj.trigger.inside}
		case KindDummy:
			held, ok := obj.dummy.Get()
			if !ok {
				continue
			}
			ds := DummyState{Kind: held.Kind()}
			if h, ok := held.Handle(); ok {
				ds.Handle = h
			} else if ref, ok := e.refs.labelOf(held); ok {
				ds.Ref = ref
			} else {
				continue
			}
			s.Dummies[label] = ds
		}
	}
	return s, nil
}

// Snapshot encodes the current state as canonical CBOR.
func (e *Engine) Snapshot() ([]byte, error) {
	s, err := e.Capture()
	if err != nil {
		return nil, err
	}
	data, err := snapshotEncMode.Marshal(s)
	if err != nil {
		return nil, NewRuntimeError(ErrorSnapshot, fmt.Sprintf("failed to encode snapshot: %v", err))
	}
	return data, nil
}

// Restore replaces the running state with a snapshot taken from an engine
// running the same mission. The engine must be initialized.
func (e *Engine) Restore(data []byte) error {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("failed to decode snapshot: %v", err))
	}
	return e.Apply(&s)
}

// Apply restores a decoded Snapshot.
func (e *Engine) Apply(s *Snapshot) error {
	if !e.Running() {
		return NewRuntimeError(ErrorInvalidState, fmt.Sprintf("cannot restore in state %s", e.State()))
	}
	if s.Mission != e.mission.ID {
		return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("snapshot is for mission %d, engine runs %d", s.Mission, e.mission.ID))
	}

	threads := make([]*Thread, 0, len(s.Threads))
	for _, ts := range s.Threads {
		if ts.Cursor < 0 || ts.Cursor >= len(e.mission.Commands) {
			return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("thread %d cursor %d out of range", ts.ID, ts.Cursor))
		}
		t := &Thread{ID: ts.ID, Label: ts.Label, Cursor: ts.Cursor, Alive: true}
		if ts.Wait != nil {
			cond, err := ts.Wait.condition()
			if err != nil {
				return err
			}
			t.wait, t.resume = cond, ts.Wait.Resume
		}
		threads = append(threads, t)
	}

	// resolve every target before touching any state so a failed restore
	// leaves the engine as it was
	type counterValue struct {
		c *Counter
		v int
	}
	type triggerValue struct {
		t  *Trigger
		ts TriggerState
	}
	type dummyValue struct {
		d   *Dummy
		obj Object
		set bool
	}

	counters := make([]counterValue, 0, len(s.Counters))
	for label, v := range s.Counters {
		c, err := e.refs.Counter(label)
		if err != nil {
			return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("counter: %v", err))
		}
		counters = append(counters, counterValue{c, v})
	}
	triggers := make([]triggerValue, 0, len(s.Triggers))
	for label, ts := range s.Triggers {
		t, err := e.refs.Trigger(label)
		if err != nil {
			return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("trigger: %v", err))
		}
		triggers = append(triggers, triggerValue{t, ts})
	}
	for label := range s.Dummies {
		if _, err := e.refs.Dummy(label); err != nil {
			return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("dummy: %v", err))
		}
	}
	var dummies []dummyValue
	for _, label := range e.refs.ObjectLabels() {
		d, err := e.refs.Dummy(label)
		if err != nil {
			continue
		}
		ds, ok := s.Dummies[label]
		switch {
		case !ok:
			dummies = append(dummies, dummyValue{d: d})
		case ds.Ref != 0:
			obj, err := e.refs.Object(ds.Ref)
			if err != nil {
				return NewRuntimeError(ErrorSnapshot, fmt.Sprintf("dummy %d: %v", label, err))
			}
			dummies = append(dummies, dummyValue{d, obj, true})
		default:
			dummies = append(dummies, dummyValue{d, EntityObject(ds.Kind, ds.Handle), true})
		}
	}

	for _, cv := range counters {
		cv.c.restore(cv.v)
	}
	for _, tv := range triggers {
		tv.t.disabled, tv.t.inside = tv.ts.Disabled, tv.ts.Inside
	}
	for _, dv := range dummies {
		if dv.set {
			dv.d.Set(dv.obj)
		} else {
			dv.d.Clear()
		}
	}

	e.threads = threads
	e.nextID = s.NextID
	e.tick = s.Tick
	e.host.AddScore(s.Score - e.host.Score())
	e.host.SetTargetScore(s.Target)
	e.host.SetTrainWrecked(s.Wrecked)

	e.log.Info("Snapshot restored", "mission", s.Mission, "tick", s.Tick, "threads", len(threads))
	return nil
}

func waitState(c Condition) (*WaitState, error) {
	switch c := c.(type) {
	case *Countdown:
		return &WaitState{Kind: WaitCountdown, Remaining: c.Remaining}, nil
	case *EnterVehicle:
		return &WaitState{Kind: WaitEnterVehicle, Vehicle: c.Vehicle}, nil
	default:
		return nil, NewRuntimeError(ErrorSnapshot, fmt.Sprintf("unsupported wait condition %T", c))
	}
}

func (w *WaitState) condition() (Condition, error) {
	switch w.Kind {
	case WaitCountdown:
		return &Countdown{Remaining: w.Remaining}, nil
	case WaitEnterVehicle:
		return &EnterVehicle{Vehicle: w.Vehicle}, nil
	default:
		return nil, NewRuntimeError(ErrorSnapshot, fmt.Sprintf("unknown wait kind %q", w.Kind))
	}
}
