// Package config loads waves-engine's process configuration from a layered
// TOML file stack, the way the teacher's own config package does it, and
// translates it into the concrete Config structs the engine/catalog/control
// packages expect.
package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/waves-audio/engine/internal/catalog"
	"github.com/waves-audio/engine/internal/engine"
)

// Config is the root of waves-engine's on-disk configuration.
type Config struct {
	Catalog       CatalogConfig       `koanf:"catalog"`
	Control       ControlConfig       `koanf:"control"`
	Playback      PlaybackConfig      `koanf:"playback"`
	Normalisation NormalisationConfig `koanf:"normalisation"`
	Log           LogConfig           `koanf:"log"`
}

// CatalogConfig points at the fixture catalog backing TrackSource and its
// on-disk decrypt-key/availability cache.
type CatalogConfig struct {
	Dir       string `koanf:"dir"`        // directory holding manifest.json and blob files
	CacheFile string `koanf:"cache_file"` // sqlite database path, "" disables the cache
}

// ControlConfig configures the JSON-RPC control plane's listener.
type ControlConfig struct {
	BindAddr string `koanf:"bind_addr"`
}

// PlaybackConfig configures the TrackLoader and the engine's scheduling
// knobs.
type PlaybackConfig struct {
	Bitrate               string `koanf:"bitrate"` // "96", "160", or "320"
	FilterExplicitContent *bool  `koanf:"filter_explicit_content"`
	Gapless               *bool  `koanf:"gapless"`
	PingTimeMs            int    `koanf:"ping_time_ms"`
}

// NormalisationConfig configures loudness normalisation and the dynamic
// limiter, mirroring engine.NormalisationConfig's fields in koanf-friendly
// form.
type NormalisationConfig struct {
	Enabled          *bool   `koanf:"enabled"`
	Type             string  `koanf:"type"`   // "auto", "track", "album"
	Method           string  `koanf:"method"` // "basic", "dynamic"
	PregainDB        float64 `koanf:"pregain_db"`
	ThresholdDB      float64 `koanf:"threshold_db"`
	AttackMs         int     `koanf:"attack_ms"`
	ReleaseMs        int     `koanf:"release_ms"`
	Knee             float64 `koanf:"knee"`
	SamplesPerSecond int     `koanf:"samples_per_second"`
}

// LogConfig configures the zerolog-backed structured logger.
type LogConfig struct {
	Level  string `koanf:"level"` // "debug", "info", "warn", "error"
	Pretty *bool  `koanf:"pretty"`
}

// Load reads config.toml from the usual precedence stack (last wins) and
// fills in defaults for anything unset.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Control:  ControlConfig{BindAddr: "0.0.0.0:3030"},
		Playback: PlaybackConfig{Bitrate: "160", PingTimeMs: 20},
		Log:      LogConfig{Level: "info"},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Catalog.Dir != "" {
		cfg.Catalog.Dir = expandPath(cfg.Catalog.Dir)
	}
	if cfg.Catalog.CacheFile != "" {
		cfg.Catalog.CacheFile = expandPath(cfg.Catalog.CacheFile)
	}
	cfg.Control.BindAddr = strings.TrimSpace(cfg.Control.BindAddr)
	if cfg.Control.BindAddr == "" {
		cfg.Control.BindAddr = "0.0.0.0:3030"
	}
	if cfg.Playback.Bitrate == "" {
		cfg.Playback.Bitrate = "160"
	}
	if cfg.Playback.PingTimeMs <= 0 {
		cfg.Playback.PingTimeMs = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "waves-engine", "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// boolOr returns *p, or def if p is nil.
func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// bitratePreference maps the config's textual bitrate preference onto
// catalog.BitratePreference, falling back to 160kbps on an unrecognised
// value.
func (c PlaybackConfig) bitratePreference() catalog.BitratePreference {
	switch c.Bitrate {
	case "96":
		return catalog.Bitrate96
	case "320":
		return catalog.Bitrate320
	default:
		return catalog.Bitrate160
	}
}

// ToLoaderConfig translates the playback section into a catalog.LoaderConfig.
func (c PlaybackConfig) ToLoaderConfig() catalog.LoaderConfig {
	return catalog.LoaderConfig{
		Bitrate:               c.bitratePreference(),
		FilterExplicitContent: boolOr(c.FilterExplicitContent, false),
		PingTime:              time.Duration(c.PingTimeMs) * time.Millisecond,
	}
}

// GaplessOrDefault reports the playback section's gapless setting,
// defaulting to true when it is unset.
func (c PlaybackConfig) GaplessOrDefault() bool {
	return boolOr(c.Gapless, true)
}

// ToNormalisationConfig translates the config section into
// engine.NormalisationConfig, applying engine.DefaultNormalisationConfig for
// any zero-valued duration/threshold field.
func (c NormalisationConfig) ToNormalisationConfig() engine.NormalisationConfig {
	def := engine.DefaultNormalisationConfig()
	cfg := def
	cfg.Enabled = boolOr(c.Enabled, def.Enabled)

	switch c.Type {
	case "track":
		cfg.Type = engine.NormalisationTrack
	case "album":
		cfg.Type = engine.NormalisationAlbum
	case "auto", "":
		cfg.Type = engine.NormalisationAuto
	}

	switch c.Method {
	case "basic":
		cfg.Method = engine.NormalisationBasic
	case "dynamic", "":
		cfg.Method = engine.NormalisationDynamic
	}

	if c.PregainDB != 0 {
		cfg.PregainDB = c.PregainDB
	}
	if c.ThresholdDB != 0 {
		cfg.Threshold = dbToRatio(c.ThresholdDB)
	}
	if c.AttackMs > 0 {
		cfg.Attack = time.Duration(c.AttackMs) * time.Millisecond
	}
	if c.ReleaseMs > 0 {
		cfg.Release = time.Duration(c.ReleaseMs) * time.Millisecond
	}
	if c.Knee > 0 {
		cfg.Knee = c.Knee
	}
	if c.SamplesPerSecond > 0 {
		cfg.SamplesPerSecond = c.SamplesPerSecond
	}
	return cfg
}

// dbToRatio mirrors engine's own (unexported) dB-to-linear conversion.
func dbToRatio(db float64) float64 {
	return math.Pow(10, db/20.0)
}
