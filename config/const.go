package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppVersion is the version of the daemon, set with -ldflags at build time.
var AppVersion = "0.1.0"

// AppName is the name of the application.
const AppName = "AetherDesk"

// LogWinSubDir is the sub directory for the log files on windows.
var LogWinSubDir = AppName

// LogSubDir is the sub directory for the log files.
var LogSubDir = "." + strings.ToLower(AppName)

// LogExt is the extension for the log files.
var LogExt = ".log"

// ConfigFileName is the name of the configuration file inside Dir().
const ConfigFileName = "config.yaml"

// EnvFileName is the optional dotenv file inside Dir() holding overrides.
const EnvFileName = ".env"

// Dir returns the per-user directory holding configuration, cache and wallpapers.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+strings.ToLower(AppName)), nil
}

// CacheDir returns the directory for derived files such as fitted images.
func CacheDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

// WallpaperDir returns the directory the default schedule points at.
func WallpaperDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wallpapers"), nil
}

// LogDir returns the directory for log files.
func LogDir() (string, error) {
	if runtime.GOOS == "windows" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(cache, LogWinSubDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, LogSubDir), nil
}

// LogFile returns the log file path inside dir.
func LogFile(dir string) string {
	return filepath.Join(dir, AppName+LogExt)
}
