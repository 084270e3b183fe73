// SPDX-Licence-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goseccompc/goseccompc"
	"github.com/goseccompc/goseccompc/lowlevel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of the seccompc command line tool.
type Config struct {
	Arch     string `yaml:"arch"`
	Mode     string `yaml:"mode"`
	Output   string `yaml:"output"`
	FileMode string `yaml:"file_mode"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig targets the running architecture and denies TIOCSTI.
func DefaultConfig() Config {
	return Config{
		Arch:     goseccompc.CurrentArch,
		Mode:     goseccompc.Blocklist.String(),
		Output:   "seccomp_filter.bpf",
		FileMode: "0644",
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file and merges it over the default configuration.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field can be used as is.
func (c Config) Validate() error {
	// Policies are built from syscall names, so the target needs a table.
	if _, err := lowlevel.LookupTable(c.Arch); err != nil {
		return err
	}
	if _, err := c.PolicyMode(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Perm(); err != nil {
		return err
	}
	if c.Output == "" {
		return fmt.Errorf("output path is empty")
	}
	return nil
}

func (c Config) PolicyMode() (goseccompc.PolicyMode, error) {
	return goseccompc.ParsePolicyMode(c.Mode)
}

func (c Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// Perm parses FileMode as an octal permission.
func (c Config) Perm() (os.FileMode, error) {
	perm, err := strconv.ParseUint(c.FileMode, 8, 32)
	if err != nil || perm > 0o777 {
		return 0, fmt.Errorf("invalid file mode %q", c.FileMode)
	}
	return os.FileMode(perm), nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config{Arch: %s, Mode: %s, Output: %s, FileMode: %s, LogLevel: %s}",
		c.Arch, c.Mode, c.Output, c.FileMode, c.LogLevel)
}
