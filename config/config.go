package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Crash policies understood by the process supervisor.
const (
	CrashPolicySurface = "surface"
	CrashPolicyRestart = "restart"
)

// Fallback modes for desktop embedding when no background host can be found.
const (
	FallbackFullscreen = "fullscreen"
	FallbackRefuse     = "refuse"
)

// Config holds the daemon configuration. It is safe for concurrent use.
type Config struct {
	Renderers  RendererConfig   `yaml:"renderers"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Desktop    DesktopConfig    `yaml:"desktop"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	API        APIConfig        `yaml:"api"`
	Hotkeys    HotkeyConfig     `yaml:"hotkeys"`
	Startup    *WallpaperRecord `yaml:"startup,omitempty"`
	Schedule   []ScheduleRecord `yaml:"schedule"`

	path string
	mu   sync.RWMutex
}

// RendererConfig lists the candidate binaries tried, in order, for each renderer.
type RendererConfig struct {
	Video   []string `yaml:"video"`
	Layer   []string `yaml:"layer"`
	Browser []string `yaml:"browser"`
}

// SupervisorConfig tunes the external renderer process supervisor.
type SupervisorConfig struct {
	CheckInterval  time.Duration `yaml:"check_interval"`
	SpawnTimeout   time.Duration `yaml:"spawn_timeout"`
	SettleTime     time.Duration `yaml:"settle_time"`
	KillTimeout    time.Duration `yaml:"kill_timeout"`
	CrashPolicy    string        `yaml:"crash_policy"`
	MaxRestarts    int           `yaml:"max_restarts"`
	RestartBackoff time.Duration `yaml:"restart_backoff"`
	StableAfter    time.Duration `yaml:"stable_after"`
}

// DesktopConfig tunes desktop host discovery.
type DesktopConfig struct {
	EmbedAttempts int           `yaml:"embed_attempts"`
	EmbedBackoff  time.Duration `yaml:"embed_backoff"`
	Fallback      string        `yaml:"fallback"`
}

// SchedulerConfig tunes the trigger evaluation loop.
type SchedulerConfig struct {
	Tick time.Duration `yaml:"tick"`
}

// APIConfig configures the local control server.
type APIConfig struct {
	Enabled bool    `yaml:"enabled"`
	Addr    string  `yaml:"addr"`
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
}

// HotkeyConfig toggles global hotkeys.
type HotkeyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WallpaperRecord is the persisted shape of a wallpaper request.
type WallpaperRecord struct {
	Type     string            `yaml:"type" json:"type"`
	Path     string            `yaml:"path" json:"path"`
	Loop     *bool             `yaml:"loop,omitempty" json:"loop,omitempty"`
	Volume   int               `yaml:"volume,omitempty" json:"volume,omitempty"`
	Fit      bool              `yaml:"fit,omitempty" json:"fit,omitempty"`
	Uniforms map[string]string `yaml:"uniforms,omitempty" json:"uniforms,omitempty"`
}

// TriggerRecord is the persisted shape of a schedule trigger.
type TriggerRecord struct {
	Kind      string        `yaml:"kind" json:"kind"`
	At        string        `yaml:"at,omitempty" json:"at,omitempty"`
	Every     time.Duration `yaml:"every,omitempty" json:"every,omitempty"`
	Event     string        `yaml:"event,omitempty" json:"event,omitempty"`
	Predicate string        `yaml:"predicate,omitempty" json:"predicate,omitempty"`
}

// ScheduleRecord is the persisted shape of a schedule item.
type ScheduleRecord struct {
	ID        string          `yaml:"id" json:"id"`
	Trigger   TriggerRecord   `yaml:"trigger" json:"trigger"`
	Target    WallpaperRecord `yaml:"target" json:"target"`
	Enabled   bool            `yaml:"enabled" json:"enabled"`
	LastFired *time.Time      `yaml:"last_fired,omitempty" json:"last_fired,omitempty"`
}

// Default returns a configuration populated with default values.
func Default() *Config {
	c := &Config{}
	c.setDefaultValues()
	return c
}

// setDefaultValues fills zero fields with defaults.
func (c *Config) setDefaultValues() {
	if len(c.Renderers.Video) == 0 {
		c.Renderers.Video = []string{
			"mpv",
			"mpv.exe",
			`C:\Program Files\mpv\mpv.exe`,
			`C:\Program Files (x86)\mpv\mpv.exe`,
		}
	}
	if len(c.Renderers.Layer) == 0 {
		c.Renderers.Layer = []string{"mpvpaper"}
	}
	if len(c.Renderers.Browser) == 0 {
		c.Renderers.Browser = []string{"chromium", "chromium-browser", "google-chrome", "msedge", "msedge.exe", "firefox"}
	}

	s := &c.Supervisor
	if s.CheckInterval <= 0 {
		s.CheckInterval = time.Second
	}
	if s.SpawnTimeout <= 0 {
		s.SpawnTimeout = 5 * time.Second
	}
	if s.SettleTime <= 0 {
		s.SettleTime = 300 * time.Millisecond
	}
	if s.KillTimeout <= 0 {
		s.KillTimeout = 3 * time.Second
	}
	if s.CrashPolicy == "" {
		s.CrashPolicy = CrashPolicyRestart
	}
	if s.MaxRestarts <= 0 {
		s.MaxRestarts = 3
	}
	if s.RestartBackoff <= 0 {
		s.RestartBackoff = 500 * time.Millisecond
	}
	if s.StableAfter <= 0 {
		s.StableAfter = 30 * time.Second
	}

	d := &c.Desktop
	if d.EmbedAttempts <= 0 {
		d.EmbedAttempts = 3
	}
	if d.EmbedBackoff <= 0 {
		d.EmbedBackoff = 100 * time.Millisecond
	}
	if d.Fallback == "" {
		d.Fallback = FallbackFullscreen
	}

	if c.Scheduler.Tick <= 0 {
		c.Scheduler.Tick = time.Second
	}

	if c.API.Addr == "" {
		c.API.Addr = "127.0.0.1:49452"
	}
	if c.API.Rate <= 0 {
		c.API.Rate = 5
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 10
	}
}

// DefaultSchedule mirrors the stock morning/evening schedule. Items start disabled
// because the referenced images may not exist yet.
func DefaultSchedule(wallpaperDir string) []ScheduleRecord {
	return []ScheduleRecord{
		{
			ID:      "morning",
			Trigger: TriggerRecord{Kind: "time", At: "08:00"},
			Target:  WallpaperRecord{Type: "static", Path: filepath.Join(wallpaperDir, "morning.jpg")},
		},
		{
			ID:      "evening",
			Trigger: TriggerRecord{Kind: "time", At: "18:00"},
			Target:  WallpaperRecord{Type: "static", Path: filepath.Join(wallpaperDir, "evening.jpg")},
		},
	}
}

// DefaultPath returns the location of the configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the configuration at path. A missing file yields defaults (with the
// default schedule) which are written back so the user has something to edit.
func Load(path string) (*Config, error) {
	c := &Config{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.setDefaultValues()
		c.API.Enabled = true
		if wd, werr := WallpaperDir(); werr == nil {
			c.Schedule = DefaultSchedule(wd)
		}
		if err := c.Save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		c.setDefaultValues()
	}

	applyEnv(c, filepath.Join(filepath.Dir(path), EnvFileName))
	return c, nil
}

// Path returns the file the configuration is saved to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration back to its file atomically.
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := yaml.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if c.path == "" {
		return errors.New("config has no file path")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ConfigFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// ScheduleRecords returns a copy of the persisted schedule.
func (c *Config) ScheduleRecords() []ScheduleRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ScheduleRecord, len(c.Schedule))
	copy(out, c.Schedule)
	return out
}

// SetScheduleRecords replaces the persisted schedule and saves the file.
func (c *Config) SetScheduleRecords(records []ScheduleRecord) error {
	c.mu.Lock()
	c.Schedule = records
	c.mu.Unlock()
	return c.Save()
}
