package vm

import (
	"time"

	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/opcode"
)

// initHandler runs one init line and returns the object it created, if any.
type initHandler func(e *Engine, line mission.InitLine) (Object, bool)

// commandHandler runs one command line for thread t.
type commandHandler func(e *Engine, t *Thread, line mission.CommandLine) Result

func newInitHandlers() map[opcode.Cmd]initHandler {
	return map[opcode.Cmd]initHandler{
		opcode.Player:  initPlayer,
		opcode.Car:     initCar,
		opcode.Ped:     initPed,
		opcode.Door:    initDoor,
		opcode.Counter: initCounter,
		opcode.Dummy:   initDummy,
		opcode.Trigger: initTrigger,
		opcode.Target:  initTarget,
	}
}

func newCommandHandlers() map[opcode.Cmd]commandHandler {
	return map[opcode.Cmd]commandHandler{
		opcode.DoNowt:     cmdDoNowt,
		opcode.Brief:      cmdBrief,
		opcode.PBrief:     cmdPBrief,
		opcode.Goto:       cmdGoto,
		opcode.Skip:       cmdSkip,
		opcode.Startup:    cmdStartup,
		opcode.Compare:    cmdCompare,
		opcode.IncCount:   cmdIncCount,
		opcode.DecCount:   cmdDecCount,
		opcode.SetCount:   cmdSetCount,
		opcode.Survive:    cmdSurvive,
		opcode.Steal:      cmdSteal,
		opcode.StoreCar:   cmdStoreCar,
		opcode.CheckCar:   cmdCheckCar,
		opcode.Explode:    cmdExplode,
		opcode.OpenDoor:   cmdOpenDoor,
		opcode.CloseDoor:  cmdCloseDoor,
		opcode.Score:      cmdScore,
		opcode.SetTarget:  cmdSetTarget,
		opcode.ScoreCheck: cmdScoreCheck,
		opcode.TrainWreck: cmdTrainWreck,
		opcode.CheckTrain: cmdCheckTrain,
		opcode.Disable:    cmdDisable,
		opcode.Enable:     cmdEnable,
	}
}

// Init section

func initPlayer(e *Engine, line mission.InitLine) (Object, bool) {
	h := e.host.SpawnCharacter(line.Pos, line.Param(0), true)
	return EntityObject(KindCharacter, h), true
}

func initCar(e *Engine, line mission.InitLine) (Object, bool) {
	h := e.host.SpawnVehicle(line.Pos, line.Param(0))
	return EntityObject(KindVehicle, h), true
}

func initPed(e *Engine, line mission.InitLine) (Object, bool) {
	h := e.host.SpawnCharacter(line.Pos, line.Param(0), false)
	return EntityObject(KindCharacter, h), true
}

func initDoor(e *Engine, line mission.InitLine) (Object, bool) {
	h := e.host.SpawnDoor(line.Pos, line.Param(0))
	return EntityObject(KindDoor, h), true
}

func initCounter(_ *Engine, line mission.InitLine) (Object, bool) {
	return CounterObject(NewCounter(line.Param(0))), true
}

func initDummy(_ *Engine, _ mission.InitLine) (Object, bool) {
	return DummyObject(&Dummy{}), true
}

// initTrigger: p1 = thread label, p2 = radius. The reset flag makes the
// trigger fire on every entry instead of once.
func initTrigger(e *Engine, line mission.InitLine) (Object, bool) {
	label := line.Param(0)
	t := NewTriggerAround(line.Pos, line.Param(1))
	t.Label = label
	t.SetRepeat(line.Reset)
	t.OnEnter(func() {
		e.log.Debug("Trigger fired", "label", label)
		e.StartThread(label)
	})
	e.host.AddTrigger(t)
	return TriggerObject(t), true
}

func initTarget(e *Engine, line mission.InitLine) (Object, bool) {
	e.host.SetTargetScore(line.Param(0))
	return Object{}, false
}

// Command section

func cmdDoNowt(_ *Engine, _ *Thread, _ mission.CommandLine) Result {
	return Code(-1)
}

func cmdBrief(e *Engine, _ *Thread, line mission.CommandLine) Result {
	e.host.ShowBriefing(line.Params[4])
	return Fallthrough()
}

func cmdPBrief(e *Engine, _ *Thread, line mission.CommandLine) Result {
	e.host.ShowBriefing(line.Params[0])
	return Fallthrough()
}

func cmdGoto(_ *Engine, _ *Thread, line mission.CommandLine) Result {
	return Jump(line.Params[0])
}

func cmdSkip(_ *Engine, _ *Thread, line mission.CommandLine) Result {
	return Skip(line.Params[0])
}

func cmdStartup(e *Engine, _ *Thread, line mission.CommandLine) Result {
	e.StartThread(line.Params[0])
	return Fallthrough()
}

// cmdCompare: an unresolved or non-counter reference takes the false branch.
func cmdCompare(e *Engine, _ *Thread, line mission.CommandLine) Result {
	p := line.Params
	c, err := e.refs.Counter(p[0])
	if err != nil {
		e.anomaly(asRuntimeError(err).WithLine(line.Line))
		return Jump(p[3])
	}
	if c.Value() == p[1] {
		return Jump(p[2])
	}
	return Jump(p[3])
}

func cmdIncCount(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if c := e.counter(line); c != nil {
		c.Add(1)
	}
	return Fallthrough()
}

func cmdDecCount(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if c := e.counter(line); c != nil {
		c.Add(-1)
	}
	return Fallthrough()
}

func cmdSetCount(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if c := e.counter(line); c != nil {
		c.Set(line.Params[1])
	}
	return Fallthrough()
}

func cmdSurvive(_ *Engine, _ *Thread, line mission.CommandLine) Result {
	d := time.Duration(line.Params[0]) * time.Millisecond
	return Await(&Countdown{Remaining: d}, line.Params[1])
}

// cmdSteal: an unresolved vehicle skips the wait.
func cmdSteal(e *Engine, _ *Thread, line mission.CommandLine) Result {
	h, ok := e.vehicle(line)
	if !ok {
		return Fallthrough()
	}
	return Await(&EnterVehicle{Vehicle: h}, line.Params[1])
}

func cmdStoreCar(e *Engine, _ *Thread, line mission.CommandLine) Result {
	d, err := e.refs.Dummy(line.Params[0])
	if err != nil {
		e.anomaly(asRuntimeError(err).WithLine(line.Line))
		return Fallthrough()
	}
	if h, ok := e.host.PlayerVehicle(); ok {
		d.Set(EntityObject(KindVehicle, h))
	} else {
		d.Clear()
	}
	return Fallthrough()
}

func cmdCheckCar(e *Engine, _ *Thread, line mission.CommandLine) Result {
	p := line.Params
	h, ok := e.vehicle(line)
	if !ok {
		return Jump(p[2])
	}
	if pv, in := e.host.PlayerVehicle(); in && pv == h {
		return Jump(p[1])
	}
	return Jump(p[2])
}

func cmdExplode(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if h, ok := e.vehicle(line); ok {
		e.host.Explode(h)
	}
	return Fallthrough()
}

func cmdOpenDoor(e *Engine, _ *Thread, line mission.CommandLine) Result {
	return e.setDoor(line, true)
}

func cmdCloseDoor(e *Engine, _ *Thread, line mission.CommandLine) Result {
	return e.setDoor(line, false)
}

func cmdScore(_ *Engine, _ *Thread, line mission.CommandLine) Result {
	return Score(line.Params[0]).Merge(Code(line.Params[1]))
}

func cmdSetTarget(e *Engine, _ *Thread, line mission.CommandLine) Result {
	e.host.SetTargetScore(line.Params[0])
	return Fallthrough()
}

func cmdScoreCheck(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if e.host.Score() >= e.host.TargetScore() {
		return Jump(line.Params[0])
	}
	return Jump(line.Params[1])
}

func cmdTrainWreck(e *Engine, _ *Thread, _ mission.CommandLine) Result {
	e.host.SetTrainWrecked(true)
	return Fallthrough()
}

func cmdCheckTrain(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if e.host.TrainWrecked() {
		return Jump(line.Params[0])
	}
	return Jump(line.Params[1])
}

func cmdDisable(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if t := e.trigger(line); t != nil {
		t.Disable()
	}
	return Fallthrough()
}

func cmdEnable(e *Engine, _ *Thread, line mission.CommandLine) Result {
	if t := e.trigger(line); t != nil {
		t.Enable()
	}
	return Fallthrough()
}

// lookup helpers: p1 is the referenced label; misses are logged here

func (e *Engine) counter(line mission.CommandLine) *Counter {
	c, err := e.refs.Counter(line.Params[0])
	if err != nil {
		e.anomaly(asRuntimeError(err).WithLine(line.Line))
		return nil
	}
	return c
}

func (e *Engine) trigger(line mission.CommandLine) *Trigger {
	t, err := e.refs.Trigger(line.Params[0])
	if err != nil {
		e.anomaly(asRuntimeError(err).WithLine(line.Line))
		return nil
	}
	return t
}

func (e *Engine) vehicle(line mission.CommandLine) (Handle, bool) {
	h, err := e.refs.Vehicle(line.Params[0])
	if err != nil {
		e.anomaly(asRuntimeError(err).WithLine(line.Line))
		return 0, false
	}
	return h, true
}

func (e *Engine) setDoor(line mission.CommandLine, open bool) Result {
	h, err := e.refs.Door(line.Params[0])
	if err != nil {
		e.anomaly(asRuntimeError(err).WithLine(line.Line))
		return Fallthrough()
	}
	e.host.SetDoorOpen(h, open)
	return Fallthrough()
}
