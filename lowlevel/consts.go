// SPDX-Licence-Identifier: MIT

package lowlevel

// Return values of a seccomp filter, see seccomp(2).
const (
	SECCOMP_RET_KILL_PROCESS = 0x80000000
	SECCOMP_RET_KILL_THREAD  = 0x00000000
	SECCOMP_RET_KILL         = SECCOMP_RET_KILL_THREAD
	SECCOMP_RET_TRAP         = 0x00030000
	SECCOMP_RET_ERRNO        = 0x00050000
	SECCOMP_RET_USER_NOTIF   = 0x7fc00000
	SECCOMP_RET_TRACE        = 0x7ff00000
	SECCOMP_RET_LOG          = 0x7ffc0000
	SECCOMP_RET_ALLOW        = 0x7fff0000

	SECCOMP_RET_ACTION_FULL = 0xffff0000
	SECCOMP_RET_DATA        = 0x0000ffff
)

const (
	// BPF_MAXINSNS is the largest program the kernel accepts.
	BPF_MAXINSNS = 4096
	// MaxJump is the largest offset a conditional jump can encode.
	MaxJump = 0xff
	// MaxErrno is the largest errno the kernel hands back to user space.
	MaxErrno = 4095
	// SockFilterSize is the size in bytes of one struct sock_filter.
	SockFilterSize = 8
)
