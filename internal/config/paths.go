package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".ghagent"

// Paths holds resolved filesystem paths for ghagent data.
type Paths struct {
	Base   string // ~/.ghagent
	Config string // ~/.ghagent/config.yaml
	Env    string // ~/.ghagent/.env
	Data   string // ~/.ghagent/data
	Logs   string // ~/.ghagent/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If GHAGENT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("GHAGENT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Env:    filepath.Join(base, ".env"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// SessionDB returns the SQLite session database path, honoring session.path.
func (p Paths) SessionDB(cfg SessionConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "sessions.db")
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
