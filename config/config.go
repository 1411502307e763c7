// Package config holds the gameplay and server options.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Options is every tunable of a game server. JSON field names follow the
// options files already in circulation.
type Options struct {
	Width  int `json:"Width"`
	Height int `json:"Height"`

	// Heartbeat is the nominal tick interval.
	Heartbeat time.Duration `json:"-"`
	// HeartbeatMS is the on-disk form of Heartbeat.
	HeartbeatMS int `json:"HeartbeatMS"`

	PlayerStartMass       float64 `json:"PlayerStartMass"`
	PlayerMinimumAtrophy  float64 `json:"PlayerMinimumAtrophy"`
	PlayerAtrophyRate     float64 `json:"PlayerAtrophyRate"`
	PlayerEatenRatio      float64 `json:"PlayerEatenRatio"`
	PlayerSpeed           float64 `json:"PlayerSpeed"`
	MaxSplits             int     `json:"MaxSplits"`
	MinimumSplitMass      float64 `json:"MinimumSplitMass"`
	NoMergeSeconds        float64 `json:"NoMergeSeconds"`
	TeamRepulsionStrength float64 `json:"TeamRepulsionStrength"`

	MaxFoodCount    int `json:"MaxFoodCount"`
	NewFoodPerBeat  int `json:"NewFoodPerBeat"`
	MaxVirusCount   int `json:"MaxVirusCount"`
	NewVirusPerBeat int `json:"NewVirusPerBeat"`

	GamePortNumber int `json:"GamePortNumber"`
	WebPortNumber  int `json:"WebPortNumber"`

	// StatsDSN is the SQLite file for finished sessions. Empty keeps them in memory.
	StatsDSN string `json:"StatsDSN"`
}

// Default returns the stock game options.
func Default() Options {
	return Options{
		Width:                 1000,
		Height:                1000,
		Heartbeat:             50 * time.Millisecond,
		HeartbeatMS:           50,
		PlayerStartMass:       500,
		PlayerMinimumAtrophy:  200,
		PlayerAtrophyRate:     0.00005,
		PlayerEatenRatio:      0.5,
		PlayerSpeed:           2,
		MaxSplits:             10,
		MinimumSplitMass:      100,
		NoMergeSeconds:        10,
		TeamRepulsionStrength: 3,
		MaxFoodCount:          5000,
		NewFoodPerBeat:        10,
		MaxVirusCount:         20,
		NewVirusPerBeat:       2,
		GamePortNumber:        11000,
		WebPortNumber:         11100,
		StatsDSN:              "agcubio-stats.db",
	}
}

// NoMerge returns NoMergeSeconds as a duration.
func (o Options) NoMerge() time.Duration {
	return time.Duration(o.NoMergeSeconds * float64(time.Second))
}

// Validate reports the first option that cannot drive a simulation.
func (o Options) Validate() error {
	switch {
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("world size %dx%d must be positive", o.Width, o.Height)
	case o.Heartbeat <= 0:
		return fmt.Errorf("heartbeat %v must be positive", o.Heartbeat)
	case o.PlayerStartMass <= 0:
		return fmt.Errorf("player start mass %v must be positive", o.PlayerStartMass)
	case o.NoMergeSeconds <= 0:
		return fmt.Errorf("no-merge window %v must be positive", o.NoMergeSeconds)
	case o.MaxFoodCount < 0 || o.MaxVirusCount < 0:
		return errors.New("population caps must not be negative")
	}
	return nil
}

// Load reads a JSON options file on top of the defaults. Lines whose first
// non-blank character is '#' are comments.
func Load(path string) (Options, error) {
	opts := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options %s: %w", path, err)
	}

	var body bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return opts, fmt.Errorf("scan options %s: %w", path, err)
	}

	if err := json.Unmarshal(body.Bytes(), &opts); err != nil {
		return Default(), fmt.Errorf("parse options %s: %w", path, err)
	}
	opts.Heartbeat = time.Duration(opts.HeartbeatMS) * time.Millisecond
	return opts, nil
}

// WriteDefault writes the default options to path as indented JSON.
func WriteDefault(path string) error {
	b, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	header := "# AgCubio world options. Lines starting with # are ignored.\n"
	return os.WriteFile(path, append([]byte(header), append(b, '\n')...), 0o644)
}

// ApplyEnv loads an optional .env file and applies AGCUBIO_* overrides.
func ApplyEnv(opts *Options) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if v := os.Getenv("AGCUBIO_GAME_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGCUBIO_GAME_PORT: %w", err)
		}
		opts.GamePortNumber = port
	}
	if v := os.Getenv("AGCUBIO_WEB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGCUBIO_WEB_PORT: %w", err)
		}
		opts.WebPortNumber = port
	}
	if v, ok := os.LookupEnv("AGCUBIO_STATS_DSN"); ok {
		opts.StatsDSN = v
	}
	return nil
}
