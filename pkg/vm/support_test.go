package vm

import (
	"math"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/mission-vm/pkg/mission"
)

func TestCounter_NotifiesOnlyOnChange(t *testing.T) {
	c := NewCounter(3)
	calls := 0
	c.OnChange(func(old, new int) {
		calls++
		assert.NotEqual(t, old, new)
	})

	assert.False(t, c.Set(3))
	assert.Equal(t, 0, calls)

	assert.True(t, c.Set(4))
	assert.Equal(t, 1, calls)

	assert.False(t, c.Add(0))
	assert.True(t, c.Add(-4))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Value())

	c.restore(9)
	assert.Equal(t, 2, calls, "restore is silent")
	assert.Equal(t, 9, c.Value())
}

func TestDummy(t *testing.T) {
	d := &Dummy{}
	_, ok := d.Get()
	assert.False(t, ok)

	d.Set(EntityObject(KindVehicle, 4))
	obj, ok := d.Get()
	assert.True(t, ok)
	h, _ := obj.Handle()
	assert.Equal(t, Handle(4), h)

	d.Clear()
	_, ok = d.Get()
	assert.False(t, ok)
}

func TestTrigger_HalfOpenArea(t *testing.T) {
	tr := NewTriggerAround(mission.Coord{X: 10, Y: 20}, 2)

	tests := []struct {
		xy   geom.XY
		want bool
	}{
		{geom.XY{X: 8, Y: 18}, true},
		{geom.XY{X: 12.9, Y: 22.9}, true},
		{geom.XY{X: 13, Y: 20}, false},
		{geom.XY{X: 10, Y: 23}, false},
		{geom.XY{X: 7.9, Y: 20}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Contains(tt.xy), "%v", tt.xy)
	}
}

func TestTrigger_NegativeRadius(t *testing.T) {
	tr := NewTriggerAround(mission.Coord{X: 0, Y: 0}, -1)
	assert.True(t, tr.Contains(geom.XY{X: -1, Y: -1}))
	assert.True(t, tr.Contains(geom.XY{X: 1.5, Y: 1.5}))

	lo, hi := tr.Bounds()
	assert.Equal(t, geom.XY{X: -1, Y: -1}, lo)
	assert.Equal(t, geom.XY{X: 2, Y: 2}, hi)
}

func TestTrigger_PollIsEdgeTriggered(t *testing.T) {
	tr, err := NewTrigger(geom.XY{X: 0, Y: 0}, geom.XY{X: 2, Y: 2})
	require.NoError(t, err)
	fired := 0
	tr.OnEnter(func() { fired++ })
	tr.OnEnter(func() { fired += 10 })

	in := geom.XY{X: 1, Y: 1}
	out := geom.XY{X: 5, Y: 5}

	assert.True(t, tr.Poll(in))
	assert.False(t, tr.Poll(in))
	assert.Equal(t, 11, fired)

	tr.Poll(out)
	tr.Disable()
	assert.False(t, tr.Poll(in))
	assert.True(t, tr.Disabled())

	// re-enabling while inside waits for the next entry
	tr.Enable()
	assert.False(t, tr.Poll(in))
	tr.Poll(out)
	assert.True(t, tr.Poll(in))
	assert.Equal(t, 22, fired)
}

func TestNewTrigger_Area(t *testing.T) {
	tr, err := NewTrigger(geom.XY{X: 1, Y: 2}, geom.XY{X: 4, Y: 6})
	require.NoError(t, err)

	lo, hi, ok := tr.Area().MinMaxXYs()
	require.True(t, ok)
	assert.Equal(t, geom.XY{X: 1, Y: 2}, lo)
	assert.Equal(t, geom.XY{X: 4, Y: 6}, hi)

	_, err = NewTrigger(geom.XY{X: math.NaN(), Y: 0}, geom.XY{X: 1, Y: 1})
	assert.Error(t, err)
	_, err = NewTrigger(geom.XY{X: 0, Y: 0}, geom.XY{X: math.Inf(1), Y: 1})
	assert.Error(t, err)
}

func TestTrigger_OneShot(t *testing.T) {
	tr, err := NewTrigger(geom.XY{X: 0, Y: 0}, geom.XY{X: 1, Y: 1})
	require.NoError(t, err)
	tr.SetRepeat(false)

	assert.True(t, tr.Poll(geom.XY{X: 0.5, Y: 0.5}))
	assert.True(t, tr.Disabled())
	tr.Poll(geom.XY{X: 3, Y: 3})
	assert.False(t, tr.Poll(geom.XY{X: 0.5, Y: 0.5}))
}

func TestObject_Variants(t *testing.T) {
	var zero Object
	assert.True(t, zero.IsZero())
	assert.Equal(t, "none", zero.String())

	c := NewCounter(2)
	obj := CounterObject(c)
	got, ok := obj.Counter()
	assert.True(t, ok)
	assert.Same(t, c, got)
	_, ok = obj.Dummy()
	assert.False(t, ok)
	_, ok = obj.Handle()
	assert.False(t, ok)
	assert.Equal(t, "counter(2)", obj.String())

	door := EntityObject(KindDoor, 7)
	assert.Equal(t, "door#7", door.String())
	_, ok = door.Trigger()
	assert.False(t, ok)

	assert.Equal(t, "kind(42)", Kind(42).String())
}
