// SPDX-Licence-Identifier: MIT

package policy

import (
	"errors"
	"testing"

	"github.com/goseccompc/goseccompc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklist(t *testing.T) {
	rs, skipped, err := Build(goseccompc.Blocklist, "amd64")
	require.NoError(t, err)
	assert.Empty(t, skipped)

	prog, err := goseccompc.Compile(rs, "amd64")
	require.NoError(t, err)

	ioctl, err := goseccompc.Resolve("amd64", "ioctl")
	require.NoError(t, err)
	write, err := goseccompc.Resolve("amd64", "write")
	require.NoError(t, err)

	action, err := prog.Call(ioctl, 0, TIOCSTI)
	require.NoError(t, err)
	assert.Equal(t, goseccompc.ReturnErrno(1), action)

	action, err = prog.Call(ioctl, 0, 0x5401)
	require.NoError(t, err)
	assert.Equal(t, goseccompc.Action{Type: goseccompc.Allow}, action)

	action, err = prog.Call(write, 1)
	require.NoError(t, err)
	assert.Equal(t, goseccompc.Action{Type: goseccompc.Allow}, action)
}

func TestAudit(t *testing.T) {
	rs, skipped, err := Build(goseccompc.Audit, "amd64")
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, len(AuditAllowed), rs.Len())

	prog, err := goseccompc.Compile(rs, "amd64")
	require.NoError(t, err)

	for _, name := range AuditAllowed {
		nr, err := goseccompc.Resolve("amd64", name)
		require.NoError(t, err)
		action, err := prog.Call(nr)
		require.NoError(t, err)
		assert.Equalf(t, goseccompc.Action{Type: goseccompc.Allow}, action, "%s", name)
	}

	socket, err := goseccompc.Resolve("amd64", "socket")
	require.NoError(t, err)
	action, err := prog.Call(socket)
	require.NoError(t, err)
	assert.Equal(t, goseccompc.Action{Type: goseccompc.Log}, action)
}

func TestAuditSkipsMissingSyscalls(t *testing.T) {
	rs, skipped, err := Build(goseccompc.Audit, "arm64")
	require.NoError(t, err)
	assert.Contains(t, skipped, "arch_prctl")
	assert.Equal(t, len(AuditAllowed)-len(skipped), rs.Len())

	_, err = goseccompc.Compile(rs, "arm64")
	assert.NoError(t, err)
}

func TestBuildUnknownArch(t *testing.T) {
	_, _, err := Build(goseccompc.Blocklist, "vax")
	assert.True(t, errors.Is(err, goseccompc.ErrUnknownArchitecture))
}
