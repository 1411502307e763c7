package protocol

import (
	"fmt"
	"strings"
)

// MaxLineLength caps one line, four receive packets' worth.
const MaxLineLength = 4096

// ErrLineTooLong is returned by Push when a line outgrows MaxLineLength.
// It is a protocol violation.
var ErrLineTooLong = fmt.Errorf("%w: line too long", ErrInvalidRequest)

// Framer splits a byte stream into newline-terminated lines, carrying a
// trailing partial line over to the next Push.
type Framer struct {
	partial string
}

// Push appends data to the stream and returns every line it completes.
// NUL bytes and carriage returns are dropped; blank lines are skipped.
// A line longer than MaxLineLength, finished or not, is discarded along
// with the partial buffer and reported as ErrLineTooLong; the lines
// completed before it are still returned.
func (f *Framer) Push(data []byte) ([]string, error) {
	text := f.partial + strings.ReplaceAll(string(data), "\x00", "")
	parts := strings.Split(text, "\n")
	f.partial = parts[len(parts)-1]

	lines := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimRight(p, "\r")
		if len(p) > MaxLineLength {
			f.partial = ""
			return lines, tooLong(len(p))
		}
		if p == "" {
			continue
		}
		lines = append(lines, p)
	}
	if len(f.partial) > MaxLineLength {
		n := len(f.partial)
		f.partial = ""
		return lines, tooLong(n)
	}
	return lines, nil
}

func tooLong(n int) error {
	return fmt.Errorf("%w (%d bytes, limit %d)", ErrLineTooLong, n, MaxLineLength)
}

// Pending returns the buffered partial line.
func (f *Framer) Pending() string {
	return f.partial
}
