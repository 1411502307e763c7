package protocol

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"agcubio-server/world"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"(move, 10, 20)", Command{Verb: VerbMove, Target: world.Point{X: 10, Y: 20}}},
		{"(split, -5, 7)", Command{Verb: VerbSplit, Target: world.Point{X: -5, Y: 7}}},
		{"(move, 1.5, 2.25)\r", Command{Verb: VerbMove, Target: world.Point{X: 1.5, Y: 2.25}}},
		{"(move,3,4)\x00\x00", Command{Verb: VerbMove, Target: world.Point{X: 3, Y: 4}}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q) error: %v", tt.line, err)
		}
		if got != tt.want {
			t.Fatalf("ParseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseCommandRejectsJunk(t *testing.T) {
	for _, line := range []string{
		"(jump, 1, 2)",
		"(move, 1)",
		"move 1 2",
		"(move, a, b)",
		"",
		"(split, 1, 2) trailing",
	} {
		_, err := ParseCommand(line)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("ParseCommand(%q) err = %v, want ErrInvalidRequest", line, err)
		}
	}
}

func TestFormatCommandRoundTrips(t *testing.T) {
	line := FormatCommand(VerbSplit, 12, -3)
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("formatted command %q lacks newline", line)
	}
	got, err := ParseCommand(line)
	if err != nil {
		t.Fatalf("parse formatted command: %v", err)
	}
	if got.Verb != VerbSplit || got.Target != (world.Point{X: 12, Y: -3}) {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestFramerCarriesPartialLines(t *testing.T) {
	var f Framer
	got, err := f.Push([]byte("(move, 1, 2)\n(spl"))
	if err != nil || !slices.Equal(got, []string{"(move, 1, 2)"}) {
		t.Fatalf("first push = %q, %v", got, err)
	}
	if f.Pending() != "(spl" {
		t.Fatalf("pending = %q", f.Pending())
	}
	got, err = f.Push([]byte("it, 3, 4)\r\n\n\x00\x00"))
	if err != nil || !slices.Equal(got, []string{"(split, 3, 4)"}) {
		t.Fatalf("second push = %q, %v", got, err)
	}
	if f.Pending() != "" {
		t.Fatalf("pending after NUL padding = %q", f.Pending())
	}
}

func TestFramerRejectsEndlessLine(t *testing.T) {
	var f Framer
	chunk := []byte(strings.Repeat("a", 1024))
	var err error
	for i := 0; i < 8 && err == nil; i++ {
		_, err = f.Push(chunk)
	}
	if !errors.Is(err, ErrLineTooLong) || !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
	if len(f.Pending()) > MaxLineLength {
		t.Fatalf("framer kept %d pending bytes", len(f.Pending()))
	}
}

func TestFramerRejectsLongCompleteLine(t *testing.T) {
	var f Framer
	data := "(move, 1, 2)\n" + strings.Repeat("b", MaxLineLength+1) + "\n(move, 3, 4)\n"
	got, err := f.Push([]byte(data))
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
	if !slices.Equal(got, []string{"(move, 1, 2)"}) {
		t.Fatalf("lines before the long one = %q", got)
	}
}

func TestEncodeCubeWireNames(t *testing.T) {
	c := world.NewPlayer(7, "bob", world.Point{X: 1.5, Y: 2}, -1, 500)
	line, err := EncodeCube(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, key := range []string{`"loc_x":1.5`, `"loc_y":2`, `"argb_color":-1`, `"uid":7`, `"team_id":7`, `"food":false`, `"Name":"bob"`, `"Mass":500`} {
		if !strings.Contains(line, key) {
			t.Fatalf("encoded line %q missing %s", line, key)
		}
	}
	if strings.Count(line, "\n") != 1 || !strings.HasSuffix(line, "\n") {
		t.Fatalf("encoded line %q should end with exactly one newline", line)
	}
}

func TestDecodeCubesDropsBadRecords(t *testing.T) {
	good, _ := EncodeCube(world.NewFood(3, world.Point{X: 4, Y: 5}, 0))
	other, _ := EncodeCube(world.NewPlayer(9, "x", world.Point{}, 0, 20))

	var f Framer
	cubes := DecodeCubes(&f, []byte(good+"{not json}\n"+other[:10]))
	if len(cubes) != 1 || cubes[0].UID != 3 || !cubes[0].IsFood {
		t.Fatalf("first batch = %+v", cubes)
	}
	cubes = DecodeCubes(&f, []byte(other[10:]))
	if len(cubes) != 1 || cubes[0].UID != 9 || cubes[0].Mass != 20 {
		t.Fatalf("second batch = %+v", cubes)
	}
}
