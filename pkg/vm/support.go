package vm

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/zurustar/mission-vm/pkg/mission"
)

// Counter is an integer that notifies listeners when its value changes.
type Counter struct {
	value     int
	listeners []func(old, new int)
}

// NewCounter creates a counter holding v.
func NewCounter(v int) *Counter {
	return &Counter{value: v}
}

// Value returns the current value.
func (c *Counter) Value() int { return c.value }

// Set assigns v and reports whether the value changed.
// Listeners are called only on change.
func (c *Counter) Set(v int) bool {
	if v == c.value {
		return false
	}
	old := c.value
	c.value = v
	for _, fn := range c.listeners {
		fn(old, v)
	}
	return true
}

// Add adjusts the value by delta.
func (c *Counter) Add(delta int) bool {
	return c.Set(c.value + delta)
}

// OnChange registers a listener.
func (c *Counter) OnChange(fn func(old, new int)) {
	c.listeners = append(c.listeners, fn)
}

// restore assigns without notifying.
func (c *Counter) restore(v int) { c.value = v }

// Dummy is an inert slot passing an object from one command to a later one.
type Dummy struct {
	value Object
}

// Get returns the stored object, if any.
func (d *Dummy) Get() (Object, bool) {
	return d.value, !d.value.IsZero()
}

// Set stores o.
func (d *Dummy) Set(o Object) { d.value = o }

// Clear empties the slot.
func (d *Dummy) Clear() { d.value = Object{} }

// Trigger is an axis-aligned area that runs its callbacks when the player
// enters it. The area is half-open: the maximum edges are outside.
type Trigger struct {
	area     geom.Envelope
	min, max geom.XY
	repeat   bool
	disabled bool
	inside   bool

	// Label is the thread label started on entry, kept for diagnostics.
	Label int

	callbacks []func()
}

// NewTrigger creates a trigger covering [lo, hi). It fails when a corner
// is NaN or infinite.
func NewTrigger(lo, hi geom.XY) (*Trigger, error) {
	area, err := geom.NewEnvelope([]geom.XY{lo, hi})
	if err != nil {
		return nil, fmt.Errorf("invalid trigger area: %w", err)
	}
	return &Trigger{area: area, min: lo, max: hi, repeat: true}, nil
}

// NewTriggerAround creates a trigger covering the blocks within radius of pos.
func NewTriggerAround(pos mission.Coord, radius int) *Trigger {
	if radius < 0 {
		radius = -radius
	}
	lo := geom.XY{X: float64(pos.X - radius), Y: float64(pos.Y - radius)}
	hi := geom.XY{X: float64(pos.X + radius + 1), Y: float64(pos.Y + radius + 1)}
	t, err := NewTrigger(lo, hi)
	if err != nil {
		// block coordinates are integers and always finite
		panic(err)
	}
	return t
}

// Area returns the trigger's bounding envelope.
func (t *Trigger) Area() geom.Envelope { return t.area }

// Bounds returns the lower and upper corners of the area.
func (t *Trigger) Bounds() (lo, hi geom.XY) { return t.min, t.max }

// Contains reports whether xy lies inside the area.
func (t *Trigger) Contains(xy geom.XY) bool {
	return t.area.Contains(xy) && xy.X < t.max.X && xy.Y < t.max.Y
}

// SetRepeat controls whether the trigger re-arms after firing.
// A one-shot trigger disables itself after the first entry.
func (t *Trigger) SetRepeat(repeat bool) { t.repeat = repeat }

// OnEnter registers a callback run on every firing.
func (t *Trigger) OnEnter(fn func()) {
	t.callbacks = append(t.callbacks, fn)
}

// Disable disarms the trigger.
func (t *Trigger) Disable() { t.disabled = true }

// Enable re-arms the trigger.
func (t *Trigger) Enable() { t.disabled = false }

// Disabled reports whether the trigger is disarmed.
func (t *Trigger) Disabled() bool { return t.disabled }

// Poll tests the player position and fires on the transition from outside to
// inside. It reports whether the trigger fired.
func (t *Trigger) Poll(player geom.XY) bool {
	inside := t.Contains(player)
	entered := inside && !t.inside
	t.inside = inside
	if !entered || t.disabled {
		return false
	}
	t.Fire()
	if !t.repeat {
		t.disabled = true
	}
	return true
}

// Fire runs every callback in registration order.
func (t *Trigger) Fire() {
	for _, fn := range t.callbacks {
		fn()
	}
}
