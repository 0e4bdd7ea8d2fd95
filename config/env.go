package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvAPIAddr       = "AETHERDESK_API_ADDR"
	EnvCrashPolicy   = "AETHERDESK_CRASH_POLICY"
	EnvEmbedFallback = "AETHERDESK_EMBED_FALLBACK"
	EnvMPV           = "AETHERDESK_MPV"
	EnvMaxRestarts   = "AETHERDESK_MAX_RESTARTS"
	EnvKillTimeout   = "AETHERDESK_KILL_TIMEOUT"
	EnvDebug         = "AETHERDESK_LOG_DEBUG"
)

// applyEnv loads envFile (if present) without clobbering variables already set in
// the process environment, then applies the overrides to c.
func applyEnv(c *Config, envFile string) {
	_ = godotenv.Load(envFile)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.API.Addr = getEnv(EnvAPIAddr, c.API.Addr)
	c.Supervisor.CrashPolicy = getEnv(EnvCrashPolicy, c.Supervisor.CrashPolicy)
	c.Supervisor.MaxRestarts = getEnvAsInt(EnvMaxRestarts, c.Supervisor.MaxRestarts)
	c.Supervisor.KillTimeout = getEnvAsDuration(EnvKillTimeout, c.Supervisor.KillTimeout)
	c.Desktop.Fallback = getEnv(EnvEmbedFallback, c.Desktop.Fallback)
	if mpv := getEnv(EnvMPV, ""); mpv != "" {
		c.Renderers.Video = append([]string{mpv}, c.Renderers.Video...)
	}
}

// DebugFromEnv reports whether debug logging was requested through the environment.
func DebugFromEnv() bool {
	return getEnvAsBool(EnvDebug, false)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
