package protocol

// Protocol is newline-delimited UTF-8 text.
//
//   Client → Server:
//     first line        = player name
//     "(move, x, y)"    = steer the whole team toward (x,y)
//     "(split, x, y)"   = steer toward (x,y) and split every cube big enough
//   Server → Client:
//     one cube record per line, see CubeRecord
//
// Anything else a client sends after its name is a protocol violation.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"agcubio-server/world"
)

// ErrInvalidRequest is returned for any line that is not a move or split command.
var ErrInvalidRequest = errors.New("invalid request")

// Verb identifies a client command.
type Verb string

const (
	VerbMove  Verb = "move"
	VerbSplit Verb = "split"
)

// Command is a decoded client request.
type Command struct {
	Verb   Verb
	Target world.Point
}

var commandPattern = regexp.MustCompile(`^\((move|split),\s*(-?\d+(?:\.\d+)?),\s*(-?\d+(?:\.\d+)?)\)$`)

// ParseCommand decodes one request line.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(line, "\x00", ""))
	m := commandPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidRequest, line)
	}
	x, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: x in %q: %v", ErrInvalidRequest, line, err)
	}
	y, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: y in %q: %v", ErrInvalidRequest, line, err)
	}
	return Command{Verb: Verb(m[1]), Target: world.Point{X: x, Y: y}}, nil
}

// FormatCommand renders a command the way clients send it, newline included.
func FormatCommand(v Verb, x, y int) string {
	return fmt.Sprintf("(%s, %d, %d)\n", v, x, y)
}
