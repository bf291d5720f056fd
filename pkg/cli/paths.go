package cli

import (
	"os"
	"path/filepath"
)

// Paths is the on-disk layout of one app under ~/.voicelive.
type Paths struct {
	AppName string
	HomeDir string
}

func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// ArchiveDir holds the badger database of session records.
func (p *Paths) ArchiveDir() string {
	return filepath.Join(p.AppDir(), "archive")
}

// RecordingsDir is the default root of the local recording store.
func (p *Paths) RecordingsDir() string {
	return filepath.Join(p.AppDir(), "recordings")
}

func (p *Paths) LogDir() string {
	return filepath.Join(p.AppDir(), "logs")
}

// Ensure creates dir and returns it.
func Ensure(dir string) (string, error) {
	return dir, os.MkdirAll(dir, 0o755)
}
