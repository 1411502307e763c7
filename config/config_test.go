package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
}

func TestLoadSkipsCommentsAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	body := `# tuned for a tiny arena
{
  "Width": 400,
  # a comment in the middle
  "NewFoodPerBeat": 3,
  "HeartbeatMS": 20
}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.Width != 400 || opts.NewFoodPerBeat != 3 {
		t.Fatalf("overrides not applied: %+v", opts)
	}
	if opts.Height != Default().Height {
		t.Fatalf("height = %d, want default %d", opts.Height, Default().Height)
	}
	if opts.Heartbeat != 20*time.Millisecond {
		t.Fatalf("heartbeat = %v, want 20ms", opts.Heartbeat)
	}
}

func TestLoadMalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := Load(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if opts != Default() {
		t.Fatalf("expected defaults on error, got %+v", opts)
	}
}

func TestWriteDefaultLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WorldOptions.json")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	opts, err := Load(path)
	if err != nil {
		t.Fatalf("load written defaults: %v", err)
	}
	if opts != Default() {
		t.Fatalf("written defaults differ:\n got %+v\nwant %+v", opts, Default())
	}
}

func TestValidateRejects(t *testing.T) {
	bad := Default()
	bad.Width = 0
	if bad.Validate() == nil {
		t.Fatalf("zero width accepted")
	}
	bad = Default()
	bad.Heartbeat = 0
	if bad.Validate() == nil {
		t.Fatalf("zero heartbeat accepted")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGCUBIO_GAME_PORT", "12000")
	t.Setenv("AGCUBIO_STATS_DSN", "")

	opts := Default()
	if err := ApplyEnv(&opts); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if opts.GamePortNumber != 12000 {
		t.Fatalf("game port = %d, want 12000", opts.GamePortNumber)
	}
	if opts.StatsDSN != "" {
		t.Fatalf("stats dsn = %q, want empty", opts.StatsDSN)
	}
	if opts.WebPortNumber != Default().WebPortNumber {
		t.Fatalf("web port changed unexpectedly")
	}
}
