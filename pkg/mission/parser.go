package mission

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/zurustar/mission-vm/pkg/logger"
)

var (
	missionIDPattern = regexp.MustCompile(`^\[(\d+)\]$`)

	initPattern = regexp.MustCompile(
		`^(?:(\d+)\s+)?(?:(1)\s*)?\(\s*(-?\d+)\s*[,.]\s*(-?\d+)\s*[,.]\s*(-?\d+)\s*\)\s*([A-Z_][A-Z0-9_]*)((?:\s+-?\d+){0,5})$`)

	commandPattern = regexp.MustCompile(
		`^(?:(\d+)\s+)?([A-Z_][A-Z0-9_]*)((?:\s+-?\d+){0,5})$`)

	metaPattern = regexp.MustCompile(`^-?\d+(?:\s+-?\d+){7}$`)

	mapPattern = regexp.MustCompile(`^[^\s.]+\.[A-Za-z0-9]{1,3}$`)

	// a line with a leading label or a coordinate group is a broken init
	// line, never a mission name
	initAttemptPattern = regexp.MustCompile(`^-?\d|\(`)
)

// Anomaly is a line that matched none of the recognised shapes.
type Anomaly struct {
	Line   int
	Text   string
	Reason string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("line %d: %s: %q", a.Line, a.Reason, a.Text)
}

// Parser turns raw mission bytes into missions.
// It never fails on content: unrecognised lines are logged and dropped.
type Parser struct {
	log       *slog.Logger
	anomalies []Anomaly

	missions    []*Mission
	current     *Mission
	commandMode bool
	headerOpen  bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{log: logger.GetLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse is a convenience wrapper around NewParser().Parse.
func Parse(data []byte) []*Mission {
	return NewParser().Parse(data)
}

// ParseReader reads everything from r and parses it.
// Only read errors are returned.
func (p *Parser) ParseReader(r io.Reader) ([]*Mission, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission data: %w", err)
	}
	return p.Parse(data), nil
}

// Anomalies returns the lines dropped by the last Parse call.
func (p *Parser) Anomalies() []Anomaly {
	return p.anomalies
}

// Parse scans data in a single pass and returns every mission block found.
func (p *Parser) Parse(data []byte) []*Mission {
	p.reset()

	var (
		line      []byte
		lineNo    = 1
		inComment bool
	)

	flush := func() {
		p.classify(string(line), lineNo)
		line = line[:0]
		lineNo++
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\r' || c == '\n':
			flush()
			if c == '\r' && i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
		case inComment:
			// the first '}' closes, whatever '{' came before it
			if c == '}' {
				inComment = false
			}
		case c == '{':
			inComment = true
		default:
			line = append(line, c)
		}
	}
	if len(line) > 0 {
		flush()
	}

	if inComment {
		p.log.Warn("Unterminated comment at end of mission data")
	}

	p.log.Debug("Mission data parsed", "missions", len(p.missions), "anomalies", len(p.anomalies))
	return p.missions
}

func (p *Parser) reset() {
	p.anomalies = nil
	p.missions = nil
	p.current = nil
	p.commandMode = false
	p.headerOpen = false
}

func (p *Parser) classify(raw string, lineNo int) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	if m := missionIDPattern.FindStringSubmatch(text); m != nil {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			p.anomaly(lineNo, text, "mission id out of range")
			return
		}
		p.current = &Mission{ID: id}
		p.missions = append(p.missions, p.current)
		p.commandMode = false
		p.headerOpen = true
		return
	}

	if p.current == nil {
		p.anomaly(lineNo, text, "line outside mission block")
		return
	}

	if p.commandMode {
		if cmd, ok := parseCommand(text, lineNo); ok {
			p.current.Commands = append(p.current.Commands, cmd)
			return
		}
		p.anomaly(lineNo, text, "invalid command line")
		return
	}

	if text == "-1" {
		p.commandMode = true
		p.headerOpen = false
		return
	}

	if init, ok := parseInit(text, lineNo); ok {
		p.current.Init = append(p.current.Init, init)
		p.headerOpen = false
		return
	}

	if p.headerOpen && p.header(text) {
		return
	}

	p.anomaly(lineNo, text, "invalid init line")
}

// header fills mission metadata from a free-form header line.
func (p *Parser) header(text string) bool {
	switch {
	case metaPattern.MatchString(text):
		for i, f := range strings.Fields(text) {
			v, err := strconv.Atoi(f)
			if err != nil {
				return false
			}
			p.current.Meta[i] = v
		}
		return true
	case mapPattern.MatchString(text):
		p.current.Map = text
		return true
	case p.current.Name == "" && !initAttemptPattern.MatchString(text):
		p.current.Name = text
		return true
	default:
		return false
	}
}

func (p *Parser) anomaly(lineNo int, text, reason string) {
	a := Anomaly{Line: lineNo, Text: text, Reason: reason}
	p.anomalies = append(p.anomalies, a)
	p.log.Warn("Invalid mission line dropped", "line", lineNo, "text", text, "reason", reason)
}

func parseInit(text string, lineNo int) (InitLine, bool) {
	m := initPattern.FindStringSubmatch(text)
	if m == nil {
		return InitLine{}, false
	}

	label, ok := optionalInt(m[1])
	if !ok {
		return InitLine{}, false
	}
	var pos [3]int
	for i := range pos {
		v, err := strconv.Atoi(m[3+i])
		if err != nil {
			return InitLine{}, false
		}
		pos[i] = v
	}
	params, ok := parseInts(m[7])
	if !ok {
		return InitLine{}, false
	}

	return InitLine{
		Label:  label,
		Reset:  m[2] == "1",
		Pos:    Coord{X: pos[0], Y: pos[1], Z: pos[2]},
		Op:     m[6],
		Params: params,
		Line:   lineNo,
	}, true
}

func parseCommand(text string, lineNo int) (CommandLine, bool) {
	m := commandPattern.FindStringSubmatch(text)
	if m == nil {
		return CommandLine{}, false
	}

	label, ok := optionalInt(m[1])
	if !ok {
		return CommandLine{}, false
	}
	params, ok := parseInts(m[3])
	if !ok {
		return CommandLine{}, false
	}

	cmd := CommandLine{Label: label, Op: m[2], Line: lineNo}
	copy(cmd.Params[:], params)
	return cmd, true
}

func optionalInt(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	v, err := strconv.Atoi(s)
	return v, err == nil
}

func parseInts(s string) ([]int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, true
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
