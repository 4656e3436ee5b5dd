package vm

import "fmt"

// Kind tags the variant held by an Object.
type Kind int

const (
	KindNone Kind = iota
	KindCounter
	KindDummy
	KindTrigger
	KindVehicle
	KindCharacter
	KindDoor
)

var kindNames = [...]string{
	KindNone:      "none",
	KindCounter:   "counter",
	KindDummy:     "dummy",
	KindTrigger:   "trigger",
	KindVehicle:   "vehicle",
	KindCharacter: "character",
	KindDoor:      "door",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Handle is an opaque reference to an entity owned by the host world.
type Handle int

// Object is whatever an init line created and registered under its label.
// The zero value is the empty object.
type Object struct {
	kind    Kind
	handle  Handle
	counter *Counter
	dummy   *Dummy
	trigger *Trigger
}

// CounterObject wraps a counter.
func CounterObject(c *Counter) Object {
	return Object{kind: KindCounter, counter: c}
}

// DummyObject wraps a dummy.
func DummyObject(d *Dummy) Object {
	return Object{kind: KindDummy, dummy: d}
}

// TriggerObject wraps a trigger.
func TriggerObject(t *Trigger) Object {
	return Object{kind: KindTrigger, trigger: t}
}

// EntityObject wraps a host entity (vehicle, character or door).
func EntityObject(kind Kind, h Handle) Object {
	return Object{kind: kind, handle: h}
}

// Kind returns the variant tag.
func (o Object) Kind() Kind { return o.kind }

// IsZero reports whether o is the empty object.
func (o Object) IsZero() bool { return o.kind == KindNone }

// Handle returns the host handle of an entity object.
func (o Object) Handle() (Handle, bool) {
	switch o.kind {
	case KindVehicle, KindCharacter, KindDoor:
		return o.handle, true
	default:
		return 0, false
	}
}

// Counter returns the wrapped counter.
func (o Object) Counter() (*Counter, bool) { return o.counter, o.kind == KindCounter }

// Dummy returns the wrapped dummy.
func (o Object) Dummy() (*Dummy, bool) { return o.dummy, o.kind == KindDummy }

// Trigger returns the wrapped trigger.
func (o Object) Trigger() (*Trigger, bool) { return o.trigger, o.kind == KindTrigger }

func (o Object) String() string {
	switch o.kind {
	case KindVehicle, KindCharacter, KindDoor:
		return fmt.Sprintf("%s#%d", o.kind, o.handle)
	case KindCounter:
		return fmt.Sprintf("counter(%d)", o.counter.Value())
	default:
		return o.kind.String()
	}
}
