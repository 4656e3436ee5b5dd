package vm

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotMission = `[3]
5 (1,1,0)CAR 3
6 (0,0,0)DUMMY
7 (0,0,0)COUNTER 2
8 (0,0,0)DUMMY
10 1(5,5,0)TRIGGER 40 0
-1
1 INC_COUNT 7
STORE_CAR 6
DISABLE 10
SURVIVE 1000 2
2 SCORE 10
DONOWT
3 STEAL 5 0
SCORE 1
DONOWT
40 DONOWT
`

func runSnapshotMission(t *testing.T) *testEngine {
	t.Helper()
	te := newTestEngine(t, snapshotMission)
	car, err := te.References().Vehicle(5)
	require.NoError(t, err)
	te.host.inVehicle, te.host.hasVehicle = car, true

	d, err := te.References().Dummy(8)
	require.NoError(t, err)
	c, err := te.References().Counter(7)
	require.NoError(t, err)
	d.Set(CounterObject(c))

	require.True(t, te.StartThread(1))
	te.Update(tick)
	te.host.inVehicle, te.host.hasVehicle = 0, false
	require.True(t, te.StartThread(3))
	te.Update(tick)
	te.Update(tick)
	return te
}

func TestSnapshot_RoundTrip(t *testing.T) {
	src := runSnapshotMission(t)

	data, err := src.Snapshot()
	require.NoError(t, err)

	dst := newTestEngine(t, snapshotMission)
	require.NoError(t, dst.Restore(data))

	want, err := src.Capture()
	require.NoError(t, err)
	got, err := dst.Capture()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, uint64(3), got.Tick)
	assert.Equal(t, 3, got.Counters[7])
	assert.True(t, got.Triggers[10].Disabled)
	require.Len(t, got.Threads, 2)
	assert.Equal(t, WaitCountdown, got.Threads[0].Wait.Kind)
	assert.Equal(t, 2, got.Threads[0].Wait.Resume)
	assert.Equal(t, WaitEnterVehicle, got.Threads[1].Wait.Kind)
	assert.Equal(t, 7, got.Dummies[8].Ref)

	// both engines continue identically
	for i := 0; i < 10; i++ {
		src.Update(tick)
		dst.Update(tick)
	}
	assert.Equal(t, src.host.score, dst.host.score)
	assert.Equal(t, 10, dst.host.score)
	assert.Equal(t, src.ActiveThreads(), dst.ActiveThreads())
}

func TestSnapshot_Deterministic(t *testing.T) {
	a, err := runSnapshotMission(t).Snapshot()
	require.NoError(t, err)
	b, err := runSnapshotMission(t).Snapshot()
	require.NoError(t, err)
	assert.Equal(t, a, b, "canonical encoding")
}

func TestRestore_Errors(t *testing.T) {
	te := newTestEngine(t, snapshotMission)

	err := te.Restore([]byte{0xff, 0x00})
	assert.True(t, IsErrorType(err, ErrorSnapshot))

	other, err := cbor.Marshal(&Snapshot{Mission: 99})
	require.NoError(t, err)
	assert.True(t, IsErrorType(te.Restore(other), ErrorSnapshot))

	badCursor, err := cbor.Marshal(&Snapshot{Mission: 3, Threads: []ThreadState{{ID: 1, Cursor: 500}}})
	require.NoError(t, err)
	assert.True(t, IsErrorType(te.Restore(badCursor), ErrorSnapshot))

	badWait, err := cbor.Marshal(&Snapshot{Mission: 3, Threads: []ThreadState{{ID: 1, Wait: &WaitState{Kind: "moon"}}}})
	require.NoError(t, err)
	assert.True(t, IsErrorType(te.Restore(badWait), ErrorSnapshot))

	idle := New(parseMission(t, snapshotMission), WithLogger(quietLogger()))
	_, err = idle.Snapshot()
	assert.True(t, IsErrorType(err, ErrorInvalidState))
	assert.True(t, IsErrorType(idle.Apply(&Snapshot{Mission: 3}), ErrorInvalidState))
}

func TestRestore_FailureLeavesStateUntouched(t *testing.T) {
	te := newTestEngine(t, snapshotMission)
	c, err := te.References().Counter(7)
	require.NoError(t, err)
	d, err := te.References().Dummy(8)
	require.NoError(t, err)
	d.Set(CounterObject(c))
	tr, err := te.References().Trigger(10)
	require.NoError(t, err)

	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"trigger label names a counter", &Snapshot{
			Mission:  3,
			Counters: map[int]int{7: 99},
			Triggers: map[int]TriggerState{7: {Disabled: true}},
		}},
		{"dummy ref unresolved", &Snapshot{
			Mission:  3,
			Counters: map[int]int{7: 99},
			Triggers: map[int]TriggerState{10: {Disabled: true}},
			Dummies:  map[int]DummyState{8: {Kind: KindCounter, Ref: 99}},
		}},
		{"dummy label names a counter", &Snapshot{
			Mission:  3,
			Counters: map[int]int{7: 99},
			Dummies:  map[int]DummyState{7: {Kind: KindVehicle, Handle: 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := te.Apply(tt.snap)
			assert.True(t, IsErrorType(err, ErrorSnapshot))

			assert.Equal(t, 2, c.Value())
			assert.False(t, tr.Disabled())
			held, ok := d.Get()
			require.True(t, ok)
			got, ok := held.Counter()
			require.True(t, ok)
			assert.Same(t, c, got)
		})
	}
}
