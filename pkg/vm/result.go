package vm

import (
	"fmt"
)

// Flow is the continuation a command asks for.
type Flow int

const (
	// FlowFallthrough advances by one and keeps executing in the same tick.
	FlowFallthrough Flow = iota
	// FlowRelative moves the cursor by an offset and yields.
	FlowRelative
	// FlowLabel moves the cursor to a labelled line and yields.
	FlowLabel
	// FlowWait suspends the thread on its line until a condition holds.
	FlowWait
	// FlowTerminate ends the thread.
	FlowTerminate
)

func (f Flow) String() string {
	switch f {
	case FlowFallthrough:
		return "fallthrough"
	case FlowRelative:
		return "relative"
	case FlowLabel:
		return "label"
	case FlowWait:
		return "wait"
	case FlowTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Result is what a command handler returns.
type Result struct {
	flow   Flow
	offset int
	label  int
	cond   Condition
	score  int
}

// Fallthrough advances to the next line without yielding.
func Fallthrough() Result { return Result{} }

// Jump continues at the line carrying label. Label 0 is never a real label
// and means fallthrough.
func Jump(label int) Result {
	if label == 0 {
		return Fallthrough()
	}
	return Result{flow: FlowLabel, label: label}
}

// Skip moves the cursor by n lines. Skip(1) is a plain fallthrough.
func Skip(n int) Result {
	if n == 1 {
		return Fallthrough()
	}
	return Result{flow: FlowRelative, offset: n}
}

// Terminate ends the executing thread.
func Terminate() Result { return Result{flow: FlowTerminate} }

// Await suspends the thread until cond holds, then continues at label
// (or the next line when label is 0).
func Await(cond Condition, label int) Result {
	if cond == nil {
		return Jump(label)
	}
	return Result{flow: FlowWait, cond: cond, label: label}
}

// Score adds delta to the player's score and falls through.
func Score(delta int) Result { return Result{score: delta} }

// Code converts the bare integer convention: -1 terminates, 0 falls
// through, anything else jumps to that label.
func Code(n int) Result {
	switch n {
	case -1:
		return Terminate()
	case 0:
		return Fallthrough()
	default:
		return Jump(n)
	}
}

// Merge combines two results. Score deltas add up, termination wins over
// everything, otherwise a continuation in o replaces the one in r.
func (r Result) Merge(o Result) Result {
	out := r
	out.score += o.score
	switch {
	case r.flow == FlowTerminate:
	case o.flow != FlowFallthrough:
		out.flow, out.offset, out.label, out.cond = o.flow, o.offset, o.label, o.cond
	}
	return out
}

// Flow returns the continuation kind.
func (r Result) Flow() Flow { return r.flow }

// Label returns the jump or resume label.
func (r Result) Label() int { return r.label }

// Offset returns the relative jump distance.
func (r Result) Offset() int { return r.offset }

// Condition returns the wait condition, if any.
func (r Result) Condition() Condition { return r.cond }

// ScoreDelta returns the score change carried by the result.
func (r Result) ScoreDelta() int { return r.score }

func (r Result) String() string {
	s := r.flow.String()
	switch r.flow {
	case FlowRelative:
		s = fmt.Sprintf("%s(%+d)", s, r.offset)
	case FlowLabel, FlowWait:
		s = fmt.Sprintf("%s(%d)", s, r.label)
	}
	if r.score != 0 {
		s = fmt.Sprintf("%s score%+d", s, r.score)
	}
	return s
}
