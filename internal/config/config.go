package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the name of the installer front-end.
	AppName = "autoinst"

	// AnswerFile is the answer document filename, both on the install
	// medium and on a labeled answer partition.
	AnswerFile = "answer.toml"

	// ModeFile selects the answer source on the install medium.
	ModeFile = "auto-installer-mode.toml"

	// FirstBootFile is the optional hook script shipped on the medium.
	FirstBootFile = "first-boot.sh"

	// PartitionLabel marks a filesystem carrying an answer file. The
	// label is matched case-insensitively.
	PartitionLabel = "autoinst-ais"

	defaultCdromDir   = "/cdrom"
	defaultRuntimeDir = "/run/installer"
	defaultInstaller  = "low-level-installer"
)

// Config resolves the well-known paths of the live install environment.
type Config struct {
	cdromDir   string
	runtimeDir string
}

// New creates a new Config instance. The AUTOINST_CDROM_DIR and
// AUTOINST_RUNTIME_DIR environment variables override the defaults, which
// is how tests and staged runs point it at a scratch tree.
var New = func() (*Config, error) {
	c := &Config{
		cdromDir:   defaultCdromDir,
		runtimeDir: defaultRuntimeDir,
	}
	if dir := os.Getenv("AUTOINST_CDROM_DIR"); dir != "" {
		c.cdromDir = dir
	}
	if dir := os.Getenv("AUTOINST_RUNTIME_DIR"); dir != "" {
		c.runtimeDir = dir
	}
	return c, nil
}

// CdromDir returns the mount point of the install medium.
func (c *Config) CdromDir() string {
	return c.cdromDir
}

// RuntimeDir returns the directory holding the files the installer
// environment generates at boot.
func (c *Config) RuntimeDir() string {
	return c.runtimeDir
}

// SetCdromDir overrides the install medium mount point.
func (c *Config) SetCdromDir(dir string) {
	c.cdromDir = dir
}

// SetRuntimeDir overrides the runtime directory.
func (c *Config) SetRuntimeDir(dir string) {
	c.runtimeDir = dir
}

// AnswerFilePath returns the location of the answer document on the
// install medium.
func (c *Config) AnswerFilePath() string {
	return filepath.Join(c.cdromDir, AnswerFile)
}

// ModeFilePath returns the location of the source selection file on the
// install medium.
func (c *Config) ModeFilePath() string {
	return filepath.Join(c.cdromDir, ModeFile)
}

// FirstBootSourcePath returns the location of the first boot hook script
// on the install medium.
func (c *Config) FirstBootSourcePath() string {
	return filepath.Join(c.cdromDir, FirstBootFile)
}

// SetupInfoPath returns the location of the product and ISO description.
func (c *Config) SetupInfoPath() string {
	return filepath.Join(c.runtimeDir, "iso-info.json")
}

// RuntimeInfoPath returns the location of the hardware and network
// snapshot taken at boot.
func (c *Config) RuntimeInfoPath() string {
	return filepath.Join(c.runtimeDir, "run-env-info.json")
}

// UdevInfoPath returns the location of the udev property dump for disks
// and network interfaces.
func (c *Config) UdevInfoPath() string {
	return filepath.Join(c.runtimeDir, "run-env-udev.json")
}

// FirstBootHookPath returns where the prepared first boot hook is placed
// for the low-level installer to pick up.
func (c *Config) FirstBootHookPath() string {
	return filepath.Join(c.runtimeDir, "first-boot-hook")
}

// PidfilePath returns the lock file guarding against concurrent installer
// runs.
func (c *Config) PidfilePath() string {
	return filepath.Join(c.runtimeDir, "auto-installer.pid")
}

// LowLevelInstaller returns the binary driving the actual installation.
// AUTOINST_LOW_LEVEL_INSTALLER overrides it for tests.
func (c *Config) LowLevelInstaller() string {
	if bin := os.Getenv("AUTOINST_LOW_LEVEL_INSTALLER"); bin != "" {
		return bin
	}
	return defaultInstaller
}

// LowLevelLogPath returns the log file the low-level installer writes
// while a session runs.
func (c *Config) LowLevelLogPath() string {
	return filepath.Join(os.TempDir(), "low-level-installer.log")
}

// LogPath returns the log file for the named installer binary.
func LogPath(name string) string {
	return filepath.Join(os.TempDir(), name+".log")
}
