package vm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based tests for the scheduler and its support objects.

// TestProperty_CounterNotifications checks that listeners fire exactly once
// per actual value change.
func TestProperty_CounterNotifications(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("notifications equal value changes", prop.ForAll(
		func(initial int, values []int) bool {
			c := NewCounter(initial)
			calls := 0
			c.OnChange(func(int, int) { calls++ })

			want := 0
			prev := initial
			for _, v := range values {
				if v != prev {
					want++
				}
				prev = v
				c.Set(v)
			}
			return calls == want && c.Value() == prev
		},
		gen.IntRange(-3, 3),
		gen.SliceOf(gen.IntRange(-3, 3)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_PositionIndex checks that every labelled command line is
// addressable by its label and that jumping there lands on it.
func TestProperty_PositionIndex(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("label resolves to its line index", prop.ForAll(
		func(labelled []bool) bool {
			var b strings.Builder
			b.WriteString("[1]\n-1\n")
			want := map[int]int{}
			for i, has := range labelled {
				if has {
					label := 100 + i
					want[label] = i
					fmt.Fprintf(&b, "%d SCORE %d\n", label, i)
				} else {
					fmt.Fprintf(&b, "SCORE %d\n", i)
				}
			}

			te := newTestEngine(t, b.String())
			if len(te.References().PositionLabels()) != len(want) {
				return false
			}
			for label, idx := range want {
				got, err := te.References().Position(label)
				if err != nil || got != idx {
					return false
				}
				// a started thread sits on exactly that line
				if !te.StartThread(label) {
					return false
				}
				threads := te.Threads()
				if threads[len(threads)-1].Cursor != idx {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_FallthroughDoesNotYield checks that a straight run of
// fallthrough commands completes within one tick.
func TestProperty_FallthroughDoesNotYield(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("straight-line code runs in a single update", prop.ForAll(
		func(deltas []int) bool {
			var b strings.Builder
			b.WriteString("[1]\n-1\n1 DONOWT\n")
			sum := 0
			for _, d := range deltas {
				fmt.Fprintf(&b, "SCORE %d\n", d)
				sum += d
			}

			te := newTestEngine(t, b.String())
			if len(deltas) == 0 {
				return true
			}
			// start past the DONOWT at index 0
			te.threads = append(te.threads, &Thread{ID: 99, Cursor: 1, Alive: true})
			te.Update(tick)
			return te.host.score == sum && te.ActiveThreads() == 0
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
