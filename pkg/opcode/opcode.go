// Package opcode defines the instruction set understood by the mission VM.
// This package is the foundation that both the mission loader and the VM depend on.
// The loader only checks the token shape; the VM resolves names against this catalogue.
package opcode

// Cmd represents a mission opcode.
// The string value is the token exactly as it appears in mission files.
type Cmd string

// Section tells where an opcode may appear in a mission block.
type Section int

const (
	// SectionInit opcodes run once, before any command, and may create objects.
	SectionInit Section = iota
	// SectionCommand opcodes are executed by script threads.
	SectionCommand
)

// String returns a human readable section name.
func (s Section) String() string {
	switch s {
	case SectionInit:
		return "init"
	case SectionCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Init section opcodes.
// Args are positional: p1..p5 after the coordinate triple.
const (
	// Player spawns the player character at the line's coordinates.
	// Args: [model]
	Player Cmd = "PLAYER"

	// Car spawns a parked vehicle.
	// Args: [model]
	Car Cmd = "CAR"

	// Ped spawns a pedestrian.
	// Args: [model]
	Ped Cmd = "PED"

	// Door places a door.
	// Args: [kind]
	Door Cmd = "DOOR"

	// Counter creates a labelled integer counter.
	// Args: [initial]
	Counter Cmd = "COUNTER"

	// Dummy creates an empty object slot.
	// Args: []
	Dummy Cmd = "DUMMY"

	// Trigger creates an area trigger that starts a thread when the player enters it.
	// Args: [threadLabel, radius]
	Trigger Cmd = "TRIGGER"

	// Target sets the mission's target score.
	// Args: [score]
	Target Cmd = "TARGET"
)

// Command section opcodes.
// Every command line carries exactly five parameters; unused ones are 0.
const (
	// DoNowt ends the executing thread.
	DoNowt Cmd = "DONOWT"

	// Brief shows a briefing message.
	// Args: [_, _, _, _, messageID]
	Brief Cmd = "BRIEF"

	// PBrief shows a pager message.
	// Args: [messageID]
	PBrief Cmd = "P_BRIEF"

	// Goto jumps to a label.
	// Args: [label]
	Goto Cmd = "GOTO"

	// Skip moves the cursor by a relative offset.
	// Args: [offset]
	Skip Cmd = "SKIP"

	// Startup starts a new thread at a label; the current thread continues.
	// Args: [label]
	Startup Cmd = "STARTUP"

	// Compare branches on a counter value.
	// Args: [counter, value, trueLabel, falseLabel]
	Compare Cmd = "COMPARE"

	// IncCount increments a counter.
	// Args: [counter]
	IncCount Cmd = "INC_COUNT"

	// DecCount decrements a counter.
	// Args: [counter]
	DecCount Cmd = "DEC_COUNT"

	// SetCount assigns a counter.
	// Args: [counter, value]
	SetCount Cmd = "SET_COUNT"

	// Survive waits for a number of milliseconds.
	// Args: [millis, label]
	Survive Cmd = "SURVIVE"

	// Steal waits until the player sits in the referenced vehicle.
	// Args: [vehicleOrDummy, label]
	Steal Cmd = "STEAL"

	// StoreCar remembers the player's current vehicle in a dummy.
	// Args: [dummy]
	StoreCar Cmd = "STORE_CAR"

	// CheckCar branches on whether the player sits in the referenced vehicle.
	// Args: [vehicleOrDummy, trueLabel, falseLabel]
	CheckCar Cmd = "CHECK_CAR"

	// Explode blows up the referenced vehicle.
	// Args: [vehicleOrDummy]
	Explode Cmd = "EXPLODE"

	// OpenDoor opens a door.
	// Args: [door]
	OpenDoor Cmd = "OPEN_DOOR"

	// CloseDoor closes a door.
	// Args: [door]
	CloseDoor Cmd = "CLOSE_DOOR"

	// Score adds to the player's score, then continues at next
	// (0 falls through, -1 ends the thread).
	// Args: [delta, next]
	Score Cmd = "SCORE"

	// SetTarget replaces the target score.
	// Args: [score]
	SetTarget Cmd = "SET_TARGET"

	// ScoreCheck branches on score >= target.
	// Args: [trueLabel, falseLabel]
	ScoreCheck Cmd = "SCORE_CHECK"

	// TrainWreck raises the train-wreck flag.
	TrainWreck Cmd = "TRAIN_WRECK"

	// CheckTrain branches on the train-wreck flag.
	// Args: [trueLabel, falseLabel]
	CheckTrain Cmd = "CHECK_TRAIN"

	// Disable disarms a trigger.
	// Args: [trigger]
	Disable Cmd = "DISABLE"

	// Enable re-arms a trigger.
	// Args: [trigger]
	Enable Cmd = "ENABLE"
)

// Info describes one catalogue entry.
type Info struct {
	Cmd     Cmd
	Section Section
	Summary string
}

// catalogue is the closed instruction set. Order is documentation order.
var catalogue = []Info{
	{Player, SectionInit, "spawn player"},
	{Car, SectionInit, "spawn vehicle"},
	{Ped, SectionInit, "spawn pedestrian"},
	{Door, SectionInit, "place door"},
	{Counter, SectionInit, "create counter"},
	{Dummy, SectionInit, "create dummy"},
	{Trigger, SectionInit, "create area trigger"},
	{Target, SectionInit, "set target score"},

	{DoNowt, SectionCommand, "end thread"},
	{Brief, SectionCommand, "briefing message"},
	{PBrief, SectionCommand, "pager message"},
	{Goto, SectionCommand, "jump to label"},
	{Skip, SectionCommand, "relative jump"},
	{Startup, SectionCommand, "start thread"},
	{Compare, SectionCommand, "branch on counter"},
	{IncCount, SectionCommand, "increment counter"},
	{DecCount, SectionCommand, "decrement counter"},
	{SetCount, SectionCommand, "assign counter"},
	{Survive, SectionCommand, "countdown wait"},
	{Steal, SectionCommand, "wait for player in vehicle"},
	{StoreCar, SectionCommand, "remember player vehicle"},
	{CheckCar, SectionCommand, "branch on player vehicle"},
	{Explode, SectionCommand, "explode vehicle"},
	{OpenDoor, SectionCommand, "open door"},
	{CloseDoor, SectionCommand, "close door"},
	{Score, SectionCommand, "add score"},
	{SetTarget, SectionCommand, "set target score"},
	{ScoreCheck, SectionCommand, "branch on score"},
	{TrainWreck, SectionCommand, "raise train wreck flag"},
	{CheckTrain, SectionCommand, "branch on train wreck flag"},
	{Disable, SectionCommand, "disarm trigger"},
	{Enable, SectionCommand, "re-arm trigger"},
}

var byName = func() map[Cmd]Info {
	m := make(map[Cmd]Info, len(catalogue))
	for _, info := range catalogue {
		m[info.Cmd] = info
	}
	return m
}()

// Lookup resolves an opcode token.
// The section must match; an init opcode used on a command line is not found.
func Lookup(name string, section Section) (Cmd, bool) {
	info, ok := byName[Cmd(name)]
	if !ok || info.Section != section {
		return "", false
	}
	return info.Cmd, true
}

// All returns the catalogue entries of a section in documentation order.
func All(section Section) []Info {
	var out []Info
	for _, info := range catalogue {
		if info.Section == section {
			out = append(out, info)
		}
	}
	return out
}
