// Package dotdir resolves the .recall/ state directory that holds
// config.toml and the default snapshot file.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the recall state directory.
const DirName = ".recall"

type Manager struct {
	// home overrides os.UserHomeDir; used by tests.
	home string
}

func NewManager() *Manager {
	return &Manager{}
}

// NewManagerWithHome creates a Manager that treats home as the user's home
// directory instead of asking the OS.
func NewManagerWithHome(home string) *Manager {
	return &Manager{home: home}
}

// Target returns the absolute path of the .recall/ directory to use,
// creating it when missing. Precedence:
//  1. overrideDir, when non-empty
//  2. ./.recall/ in the working directory, when it exists
//  3. ~/.recall/
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := m.homeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating recall directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// File returns the path of name inside the resolved target directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) homeDir() (string, error) {
	if m.home != "" {
		return m.home, nil
	}
	return os.UserHomeDir()
}

func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
