package internal

import (
	"errors"
	"os"
	"path/filepath"
)

// FindRepoRoot walks up from the working directory until it finds go.mod.
// Used to locate .env, model configs and migrations regardless of the
// directory tests are run from.
func FindRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
