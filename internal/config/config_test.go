package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/waves-audio/engine/internal/catalog"
	"github.com/waves-audio/engine/internal/engine"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"tilde expands to home", "~/catalog", filepath.Join(home, "catalog")},
		{"absolute path unchanged", "/var/lib/waves/catalog", "/var/lib/waves/catalog"},
		{"relative path unchanged", "catalog", "catalog"},
		{"empty string unchanged", "", ""},
		{"tilde only", "~", home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if result != tt.expected {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetConfigPaths(t *testing.T) {
	paths := getConfigPaths()
	if len(paths) == 0 {
		t.Fatal("getConfigPaths() returned empty slice")
	}
	if last := paths[len(paths)-1]; last != "config.toml" {
		t.Errorf("last config path = %q, want %q", last, "config.toml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		want := filepath.Join(home, ".config", "waves-engine", "config.toml")
		if paths[0] != want {
			t.Errorf("first config path = %q, want %q", paths[0], want)
		}
	}
}

func TestLoad_DefaultsWithNoConfigFile(t *testing.T) {
	withTempCwd(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Control.BindAddr != "0.0.0.0:3030" {
		t.Errorf("Control.BindAddr = %q, want %q", cfg.Control.BindAddr, "0.0.0.0:3030")
	}
	if cfg.Playback.Bitrate != "160" {
		t.Errorf("Playback.Bitrate = %q, want %q", cfg.Playback.Bitrate, "160")
	}
	if cfg.Playback.PingTimeMs != 20 {
		t.Errorf("Playback.PingTimeMs = %d, want 20", cfg.Playback.PingTimeMs)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestLoad_BasicConfig(t *testing.T) {
	withTempCwd(t)

	configContent := `
[catalog]
dir = "~/music/catalog"
cache_file = "cache.sqlite"

[control]
bind_addr = "127.0.0.1:9000"

[playback]
bitrate = "320"
filter_explicit_content = true

[log]
level = "debug"
`
	if err := os.WriteFile("config.toml", []byte(configContent), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "music", "catalog"); cfg.Catalog.Dir != want {
		t.Errorf("Catalog.Dir = %q, want %q", cfg.Catalog.Dir, want)
	}
	if cfg.Control.BindAddr != "127.0.0.1:9000" {
		t.Errorf("Control.BindAddr = %q, want %q", cfg.Control.BindAddr, "127.0.0.1:9000")
	}
	if cfg.Playback.Bitrate != "320" {
		t.Errorf("Playback.Bitrate = %q, want %q", cfg.Playback.Bitrate, "320")
	}
	if !boolOr(cfg.Playback.FilterExplicitContent, false) {
		t.Error("Playback.FilterExplicitContent = false, want true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoad_InvalidToml(t *testing.T) {
	withTempCwd(t)

	if err := os.WriteFile("config.toml", []byte("invalid = [[["), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Error("Load() expected error for invalid TOML, got nil")
	}
}

func TestPlaybackConfig_ToLoaderConfig(t *testing.T) {
	tests := []struct {
		bitrate string
		want    catalog.BitratePreference
	}{
		{"96", catalog.Bitrate96},
		{"160", catalog.Bitrate160},
		{"320", catalog.Bitrate320},
		{"unknown", catalog.Bitrate160},
	}
	for _, tt := range tests {
		c := PlaybackConfig{Bitrate: tt.bitrate, PingTimeMs: 20}
		got := c.ToLoaderConfig()
		if got.Bitrate != tt.want {
			t.Errorf("ToLoaderConfig().Bitrate for %q = %v, want %v", tt.bitrate, got.Bitrate, tt.want)
		}
	}
}

func TestPlaybackConfig_GaplessOrDefault(t *testing.T) {
	var c PlaybackConfig
	if !c.GaplessOrDefault() {
		t.Error("GaplessOrDefault() = false with nil pointer, want true")
	}
	f := false
	c.Gapless = &f
	if c.GaplessOrDefault() {
		t.Error("GaplessOrDefault() = true with explicit false, want false")
	}
}

func TestNormalisationConfig_ToNormalisationConfig_Defaults(t *testing.T) {
	var c NormalisationConfig
	got := c.ToNormalisationConfig()
	want := engine.DefaultNormalisationConfig()
	if got != want {
		t.Errorf("ToNormalisationConfig() with zero value = %+v, want defaults %+v", got, want)
	}
}

func TestNormalisationConfig_ToNormalisationConfig_Overrides(t *testing.T) {
	disabled := false
	c := NormalisationConfig{
		Enabled:   &disabled,
		Type:      "album",
		Method:    "basic",
		ThresholdDB: -3.0,
		AttackMs:  10,
		ReleaseMs: 200,
	}
	got := c.ToNormalisationConfig()
	if got.Enabled {
		t.Error("Enabled = true, want false")
	}
	if got.Type != engine.NormalisationAlbum {
		t.Errorf("Type = %v, want NormalisationAlbum", got.Type)
	}
	if got.Method != engine.NormalisationBasic {
		t.Errorf("Method = %v, want NormalisationBasic", got.Method)
	}
	if got.Attack.Milliseconds() != 10 {
		t.Errorf("Attack = %v, want 10ms", got.Attack)
	}
	if got.Release.Milliseconds() != 200 {
		t.Errorf("Release = %v, want 200ms", got.Release)
	}
}

// withTempCwd chdirs to a fresh temp directory for the duration of the test,
// matching the teacher's own config test isolation idiom.
func withTempCwd(t *testing.T) {
	t.Helper()
	tmpDir := t.TempDir()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("could not get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("could not change to temp directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(originalWd) })
}
