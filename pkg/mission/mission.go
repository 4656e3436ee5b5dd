// Package mission parses mission script files into structured missions.
//
// A mission file is a sequence of blocks. Each block opens with a bracketed
// numeric id, carries a few free-form header lines, a list of init lines,
// a sentinel line "-1" and finally the command lines executed by the VM:
//
//	[1]
//	Bank Job                  { display name }
//	NYC.CMP                   { map file }
//	0 0 0 0 0 0 0 0           { metadata }
//	10 1(5,5,0)TRIGGER 20 0
//	-1
//	20 BRIEF 0 0 0 0 99
//	21 DONOWT 0 0 0 0 0
//
// Comments run from '{' to the next '}' and do not nest.
package mission

import "fmt"

// MetaFields is the number of numeric header fields of a mission.
const MetaFields = 8

// CommandParams is the fixed parameter count of a command line.
const CommandParams = 5

// Coord is a map position in blocks.
type Coord struct {
	X, Y, Z int
}

// String formats the coordinate the way mission files write it.
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Mission is one scripted scenario.
type Mission struct {
	ID       int
	Name     string
	Map      string
	Meta     [MetaFields]int
	Init     []InitLine
	Commands []CommandLine
}

// InitLine is a one-time setup statement.
// Label 0 means the line is unlabelled.
type InitLine struct {
	Label  int
	Reset  bool
	Pos    Coord
	Op     string
	Params []int
	Line   int
}

// Param returns the i-th parameter (zero based), or 0 when absent.
func (l InitLine) Param(i int) int {
	if i < 0 || i >= len(l.Params) {
		return 0
	}
	return l.Params[i]
}

// CommandLine is an executable statement addressed by its index in Mission.Commands.
// Label 0 means the line is unlabelled.
type CommandLine struct {
	Label  int
	Op     string
	Params [CommandParams]int
	Line   int
}

// DisplayName returns the mission name, or a placeholder built from the id.
func (m *Mission) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("Mission %d", m.ID)
}

// Find returns the mission with the given id.
func Find(missions []*Mission, id int) (*Mission, bool) {
	for _, m := range missions {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}
