// SPDX-Licence-Identifier: MIT

package config

import (
	"os"
	"testing"

	"github.com/goseccompc/goseccompc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/seccompc.yaml", []byte(`
arch: arm64
mode: audit
output: /var/lib/seccomp/audit.bpf
log_level: debug
`), 0o644))

	cfg, err := LoadConfig(fs, "/etc/seccompc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "arm64", cfg.Arch)
	assert.Equal(t, "/var/lib/seccomp/audit.bpf", cfg.Output)
	// Unset fields keep their default.
	assert.Equal(t, "0644", cfg.FileMode)

	mode, err := cfg.PolicyMode()
	require.NoError(t, err)
	assert.Equal(t, goseccompc.Audit, mode)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, level)

	perm, err := cfg.Perm()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), perm)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not yaml", "arch: [amd64"},
		{"unknown arch", "arch: vax"},
		{"arch without syscall table", "arch: mips64"},
		{"unknown mode", "mode: allowlist"},
		{"unknown level", "log_level: chatty"},
		{"bad file mode", "file_mode: rw-r--r--"},
		{"empty output", `output: ""`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte(tc.content), 0o644))
			_, err := LoadConfig(fs, "/c.yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Arch = "amd64"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "Config{Arch: amd64, Mode: blocklist, Output: seccomp_filter.bpf, FileMode: 0644, LogLevel: info}", cfg.String())
}
