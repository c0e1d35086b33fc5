package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsEnvKeys(t *testing.T) {
	t.Setenv("MUNIN_DB_PATH", "/tmp/test-munin.db")
	t.Setenv("MUNIN_HTTP_PORT", "9999")
	t.Setenv("MUNIN_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBPath != "/tmp/test-munin.db" {
		t.Fatalf("unexpected db path: %q", cfg.DBPath)
	}
	if cfg.HTTPPort != 9999 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
}

func TestLoadRejectsOpenBindInProduction(t *testing.T) {
	t.Setenv("MUNIN_ENV", "production")
	t.Setenv("MUNIN_HTTP_BIND", "0.0.0.0")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with open bind address")
	}
}

func TestPlaybackValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Playback)
	}{
		{"negative crossfade", func(p *Playback) { p.CrossfadeSecs = -1 }},
		{"threshold above one", func(p *Playback) { p.SilenceThreshold = 1.5 }},
		{"negative silence duration", func(p *Playback) { p.SilenceDurationSecs = -2 }},
		{"duck volume above one", func(p *Playback) { p.RecurringIntroDuckVolume = 2 }},
		{"negative intro interval", func(p *Playback) { p.RecurringIntroIntervalSecs = -5 }},
	}
	for _, tc := range cases {
		p := DefaultPlayback()
		tc.mut(&p)
		if err := p.Validate(); err == nil {
			t.Fatalf("%s: expected validation error, got nil", tc.name)
		}
	}

	if err := DefaultPlayback().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadPlaybackMissingFileReturnsDefaults(t *testing.T) {
	p, err := LoadPlayback(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load playback: %v", err)
	}
	if p != DefaultPlayback() {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestLoadPlaybackRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playback.yaml")
	want := Playback{
		CrossfadeSecs:              5,
		SilenceThreshold:           0.02,
		SilenceDurationSecs:        4,
		IntrosFolder:               "/srv/intros",
		RecurringIntroIntervalSecs: 900,
		RecurringIntroDuckVolume:   0.25,
	}
	if err := SavePlayback(path, want); err != nil {
		t.Fatalf("save playback: %v", err)
	}
	got, err := LoadPlayback(path)
	if err != nil {
		t.Fatalf("load playback: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if got.Crossfade() != 5*time.Second {
		t.Fatalf("unexpected crossfade duration: %s", got.Crossfade())
	}
}

func TestLoadPlaybackRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playback.yaml")
	if err := os.WriteFile(path, []byte("crossfade_secs: -3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPlayback(path); err == nil {
		t.Fatal("expected validation error for negative crossfade")
	}
}
