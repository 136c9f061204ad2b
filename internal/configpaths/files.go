package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// TuningFileName is the live-edited tuning store.
	TuningFileName = "userdata.ini"
	// TuningDirEnv names a directory holding the tuning store.
	TuningDirEnv = "RELOOK_CONFIG_PATH"
)

// DefaultConfigDir returns the platform-specific configuration directory for relook.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, "relook"), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "relook"), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "relook"), nil
		}
		return "", errors.New("HOME not set")
	}
}

// DefaultNamedConfigPath returns the default config file path for the given format and base name (e.g., "run").
func DefaultNamedConfigPath(baseName, format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	ext := "json"
	switch format {
	case "yaml", "yml":
		ext = "yaml"
	case "toml":
		ext = "toml"
	}
	return filepath.Join(dir, baseName+"."+ext), nil
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return os.MkdirAll(dir, 0o755)
}

// AppDir is the directory of the running executable, or the working
// directory when it cannot be determined.
func AppDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// ResolveTuningPath picks the tuning store: <appDir>/config/userdata.ini if
// it exists, else <envDir>/userdata.ini when envDir is an existing
// directory, else the application-relative path again.
func ResolveTuningPath(appDir, envDir string) string {
	appPath := filepath.Join(appDir, "config", TuningFileName)
	if fi, err := os.Stat(appPath); err == nil && !fi.IsDir() {
		return appPath
	}
	if envDir != "" {
		if fi, err := os.Stat(envDir); err == nil && fi.IsDir() {
			return filepath.Join(envDir, TuningFileName)
		}
	}
	return appPath
}

// DefaultTuningPath resolves the tuning store for this process.
func DefaultTuningPath() string {
	return ResolveTuningPath(AppDir(), os.Getenv(TuningDirEnv))
}

// ConfigCandidatePaths builds candidate paths for config files per format.
// If userPath is provided, it is prioritized and routed to the matching loader by extension.
func ConfigCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(slice *[]string, p string) { *slice = append(*slice, p) }
	addBase := func(dir, base string) {
		add(&jsonPaths, filepath.Join(dir, base+".json"))
		add(&yamlPaths, filepath.Join(dir, base+".yaml"))
		add(&yamlPaths, filepath.Join(dir, base+".yml"))
		add(&tomlPaths, filepath.Join(dir, base+".toml"))
	}

	if userPath != "" {
		switch ext := filepath.Ext(userPath); ext {
		case ".json":
			add(&jsonPaths, userPath)
		case ".yaml", ".yml":
			add(&yamlPaths, userPath)
		case ".toml":
			add(&tomlPaths, userPath)
		default:
			add(&jsonPaths, userPath)
		}
	}

	// Working directory candidates
	wd, _ := os.Getwd()
	for _, base := range []string{"relook", "config", "run"} {
		addBase(wd, base)
	}

	// Config home
	if dir, err := DefaultConfigDir(); err == nil {
		for _, base := range []string{"config", "run"} {
			addBase(dir, base)
		}
	}

	// System-wide (unix)
	if runtime.GOOS != "windows" {
		for _, base := range []string{"config", "run"} {
			addBase("/etc/relook", base)
		}
	}

	return
}
