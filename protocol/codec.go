package protocol

import (
	"encoding/json"
	"fmt"
	"log"

	"agcubio-server/world"
)

// CubeRecord is the wire form of a cube. Field names match what existing
// clients parse; destination, virus flag and split time stay server-side.
// {"loc_x":1.0,"loc_y":2.0,"argb_color":-1,"uid":7,"team_id":7,"food":false,"Name":"bob","Mass":500}
type CubeRecord struct {
	X      float64 `json:"loc_x"`
	Y      float64 `json:"loc_y"`
	Color  int32   `json:"argb_color"`
	UID    int     `json:"uid"`
	TeamID int     `json:"team_id"`
	Food   bool    `json:"food"`
	Name   string  `json:"Name"`
	Mass   float64 `json:"Mass"`
}

// ToRecord converts a cube to its wire form.
func ToRecord(c *world.Cube) CubeRecord {
	return CubeRecord{
		X:      c.X,
		Y:      c.Y,
		Color:  c.Color,
		UID:    c.UID,
		TeamID: c.TeamID,
		Food:   c.IsFood,
		Name:   c.Name,
		Mass:   c.Mass,
	}
}

// Cube rebuilds a cube from its wire form.
func (r CubeRecord) Cube() *world.Cube {
	at := world.Point{X: r.X, Y: r.Y}
	return &world.Cube{
		UID:         r.UID,
		TeamID:      r.TeamID,
		X:           r.X,
		Y:           r.Y,
		Destination: at,
		Mass:        r.Mass,
		Color:       r.Color,
		Name:        r.Name,
		IsFood:      r.Food,
	}
}

// EncodeCube serializes c to a single newline-terminated line.
func EncodeCube(c *world.Cube) (string, error) {
	b, err := json.Marshal(ToRecord(c))
	if err != nil {
		return "", fmt.Errorf("encode cube %d: %w", c.UID, err)
	}
	return string(b) + "\n", nil
}

// DecodeCube parses one record line.
func DecodeCube(line string) (*world.Cube, error) {
	var r CubeRecord
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, fmt.Errorf("decode cube: %w", err)
	}
	return r.Cube(), nil
}

// DecodeCubes feeds data through f and decodes every completed line. A line
// that fails to decode is logged and dropped; the rest of the batch is kept.
func DecodeCubes(f *Framer, data []byte) []*world.Cube {
	lines, err := f.Push(data)
	if err != nil {
		log.Printf("dropping cube record: %v", err)
	}
	cubes := make([]*world.Cube, 0, len(lines))
	for _, line := range lines {
		c, err := DecodeCube(line)
		if err != nil {
			log.Printf("dropping bad cube record %q: %v", line, err)
			continue
		}
		cubes = append(cubes, c)
	}
	return cubes
}
