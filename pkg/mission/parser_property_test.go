package mission

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based tests for the mission parser.

type genCommand struct {
	Label  int
	Op     string
	Params []int
}

func (c genCommand) render() string {
	var b strings.Builder
	if c.Label != 0 {
		fmt.Fprintf(&b, "%d ", c.Label)
	}
	b.WriteString(c.Op)
	for _, p := range c.Params {
		fmt.Fprintf(&b, " %d", p)
	}
	return b.String()
}

func genCommandLine() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 999),
		gen.OneConstOf("GOTO", "BRIEF", "DONOWT", "INC_COUNT", "SURVIVE"),
		gen.SliceOfN(5, gen.IntRange(-5000, 5000)),
		gen.IntRange(0, 5),
	).Map(func(v []interface{}) genCommand {
		params := v[2].([]int)
		return genCommand{
			Label:  v[0].(int),
			Op:     v[1].(string),
			Params: params[:v[3].(int)],
		}
	})
}

// TestProperty_CommandLinesRoundTrip checks that rendered command lines parse
// back in order, with missing trailing parameters set to zero.
func TestProperty_CommandLinesRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every command line survives parsing in source order", prop.ForAll(
		func(cmds []genCommand) bool {
			lines := []string{"[1]", "-1"}
			for _, c := range cmds {
				lines = append(lines, c.render())
			}

			p := quietParser()
			missions := p.Parse([]byte(strings.Join(lines, "\r\n")))
			if len(missions) != 1 || len(p.Anomalies()) != 0 {
				return false
			}
			got := missions[0].Commands
			if len(got) != len(cmds) {
				return false
			}
			for i, c := range cmds {
				if got[i].Label != c.Label || got[i].Op != c.Op {
					return false
				}
				for j := 0; j < CommandParams; j++ {
					want := 0
					if j < len(c.Params) {
						want = c.Params[j]
					}
					if got[i].Params[j] != want {
						return false
					}
				}
				if got[i].Line != i+3 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genCommandLine()),
	))

	properties.Property("comments never leak into parsed lines", prop.ForAll(
		func(cmds []genCommand, note string) bool {
			var b strings.Builder
			b.WriteString("[1]\n-1\n")
			for _, c := range cmds {
				// '}' would close early, so the note never contains it
				fmt.Fprintf(&b, "%s {%s}\n", c.render(), note)
			}

			p := quietParser()
			missions := p.Parse([]byte(b.String()))
			return len(missions) == 1 &&
				len(missions[0].Commands) == len(cmds) &&
				len(p.Anomalies()) == 0
		},
		gen.SliceOf(genCommandLine()),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_ParserNeverPanics feeds arbitrary text and checks that the
// parser only ever reports anomalies.
func TestProperty_ParserNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary input parses without panic", prop.ForAll(
		func(s string) bool {
			p := quietParser()
			missions := p.Parse([]byte(s))
			for _, m := range missions {
				for _, c := range m.Commands {
					if c.Op == "" {
						return false
					}
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
