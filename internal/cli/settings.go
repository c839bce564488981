package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const appName = "splinegest"

// Settings are per-user defaults for the parse command. Flags override them.
type Settings struct {
	Scale  float64 `toml:"scale"`
	Format string  `toml:"format"`
}

func defaultSettings() Settings {
	return Settings{Scale: 1, Format: "json"}
}

// settingsPath returns the settings file location using the XDG standard
// (~/.config/splinegest/splinectl.toml).
func settingsPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "splinectl.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "splinectl.toml"), nil
}

// loadSettings reads path over the defaults. An empty path means the default
// location, which may be absent; an explicit path must exist.
func loadSettings(path string) (Settings, []string, error) {
	s := defaultSettings()
	explicit := path != ""
	if !explicit {
		p, err := settingsPath()
		if err != nil {
			return s, nil, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return defaultSettings(), nil, nil
		}
		return defaultSettings(), nil, fmt.Errorf("load settings %s: %w", path, err)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	if s.Scale <= 0 {
		s.Scale = 1
	}
	s.Format = strings.ToLower(s.Format)
	if s.Format == "" {
		s.Format = "json"
	}
	return s, unknown, nil
}
