// SPDX-Licence-Identifier: MIT

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := RootCommand(fs)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompileDumpEval(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	out, err := run(t, fs, "compile", "--arch", "amd64", "-o", "/out/filter.bpf")
	require.NoError(t, err)
	assert.Equal(t, "/out/filter.bpf: 15 instructions\n", out)

	out, err = run(t, fs, "dump", "--arch", "amd64", "-i", "/out/filter.bpf")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 15)
	assert.Contains(t, lines[0], "ld [4]")

	cases := []struct {
		args     []string
		expected string
	}{
		{[]string{"--syscall", "ioctl", "--arg", "1=0x5412"}, "errno(1)\n"},
		{[]string{"--syscall", "ioctl", "--arg", "1=21505"}, "allow\n"},
		{[]string{"--syscall", "write", "--arg", "0=1"}, "allow\n"},
	}
	for i, tc := range cases {
		args := append([]string{"eval", "--arch", "amd64", "-i", "/out/filter.bpf"}, tc.args...)
		out, err := run(t, fs, args...)
		require.NoErrorf(t, err, "[%d/%d]", i+1, len(cases))
		assert.Equalf(t, tc.expected, out, "[%d/%d]", i+1, len(cases))
	}
}

func TestCompileWithConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/seccompc.yaml", []byte(`
arch: amd64
mode: audit
output: /audit.bpf
log_level: warn
`), 0o644))

	_, err := run(t, fs, "compile", "--config", "/etc/seccompc.yaml")
	require.NoError(t, err)

	out, err := run(t, fs, "eval", "--arch", "amd64", "-i", "/audit.bpf", "--syscall", "socket")
	require.NoError(t, err)
	assert.Equal(t, "log\n", out)

	out, err = run(t, fs, "eval", "--arch", "amd64", "-i", "/audit.bpf", "--syscall", "read")
	require.NoError(t, err)
	assert.Equal(t, "allow\n", out)

	// Flags win over the configuration file.
	_, err = run(t, fs, "compile", "--config", "/etc/seccompc.yaml", "--mode", "blocklist", "-o", "/block.bpf")
	require.NoError(t, err)
	out, err = run(t, fs, "eval", "--arch", "amd64", "-i", "/block.bpf", "--syscall", "socket")
	require.NoError(t, err)
	assert.Equal(t, "allow\n", out)
}

func TestCommandErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := run(t, fs, "compile", "--arch", "amd64", "-o", "/filter.bpf")
	require.NoError(t, err)

	cases := [][]string{
		{"compile", "--arch", "vax", "-o", "/x.bpf"},
		{"compile", "--arch", "amd64", "--mode", "allowlist", "-o", "/x.bpf"},
		{"compile", "--config", "/missing.yaml"},
		{"dump", "--arch", "amd64", "-i", "/missing.bpf"},
		{"dump", "--arch", "amd64"},
		{"eval", "--arch", "amd64", "-i", "/filter.bpf", "--syscall", "no_such_syscall"},
		{"eval", "--arch", "amd64", "-i", "/filter.bpf", "--syscall", "ioctl", "--arg", "6=1"},
		{"eval", "--arch", "amd64", "-i", "/filter.bpf", "--syscall", "ioctl", "--arg", "1"},
		{"eval", "--arch", "amd64", "-i", "/filter.bpf", "--syscall", "ioctl", "--arg", "1=zz"},
		{"compile", "--arch", "amd64", "-o", "/y.bpf", "--log-level", "chatty"},
	}
	for i, args := range cases {
		_, err := run(t, fs, args...)
		assert.Errorf(t, err, "[%d/%d] %v", i+1, len(cases), args)
	}

	exists, err := afero.Exists(fs, "/x.bpf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"0=7", "5=0xffffffffffffffff", "2=010"})
	require.NoError(t, err)
	assert.Equal(t, [6]uint64{7, 0, 8, 0, 0, 0xffffffffffffffff}, args)
}
