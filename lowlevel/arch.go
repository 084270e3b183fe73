// SPDX-Licence-Identifier: MIT

package lowlevel

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// X32SyscallBit is set in the syscall number of calls made through the
// x32 ABI on amd64.
const X32SyscallBit = 0x40000000

// SkippedSyscall is the number a tracer sets to skip the current call.
const SkippedSyscall = 0xffffffff

// GetAuditArch converts a GOARCH string (as in [runtime.GOARCH]) into its pendant
// in linux kernel audit identifier.
//
// If the given architecture string is unknown, GetAuditArch returns 0.
func GetAuditArch(goArch string) uint32 {
	switch goArch {
	case "386":
		return unix.AUDIT_ARCH_I386
	case "amd64":
		return unix.AUDIT_ARCH_X86_64
	case "arm":
		return unix.AUDIT_ARCH_ARM
	case "arm64":
		return unix.AUDIT_ARCH_AARCH64
	case "mips":
		return unix.AUDIT_ARCH_MIPS
	case "mips64":
		return unix.AUDIT_ARCH_MIPS64
	case "mips64le":
		return unix.AUDIT_ARCH_MIPSEL64
	case "mipsle":
		return unix.AUDIT_ARCH_MIPSEL
	case "ppc64":
		return unix.AUDIT_ARCH_PPC64
	case "ppc64le":
		return unix.AUDIT_ARCH_PPC64LE
	case "riscv64":
		return unix.AUDIT_ARCH_RISCV64
	case "s390x":
		return unix.AUDIT_ARCH_S390X
	default:
		return 0
	}
}

// ArchIs64Bits identifies whether the given GOARCH string is
// considered 64 bits by the linux kernel
func ArchIs64Bits(goArch string) bool {
	return GetAuditArch(goArch)&0x80000000 != 0
}

// ArchIsLittleEndian identifies whether the given GOARCH string is
// considered little endian by the linux kernel
func ArchIsLittleEndian(goArch string) bool {
	return GetAuditArch(goArch)&0x40000000 != 0
}

// HasX32ABI reports whether the architecture multiplexes the x32 ABI into
// its syscall numbers.
func HasX32ABI(goArch string) bool {
	return goArch == "amd64"
}

// ByteOrder returns the byte order the kernel uses for seccomp_data and
// sock_filter records on the given architecture.
func ByteOrder(goArch string) binary.ByteOrder {
	if ArchIsLittleEndian(goArch) {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// CheckArch returns an error if the architecture has no audit identifier.
func CheckArch(goArch string) error {
	if GetAuditArch(goArch) == 0 {
		return fmt.Errorf("unsupported architecture %q", goArch)
	}
	return nil
}
