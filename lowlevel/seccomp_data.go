// SPDX-Licence-Identifier: MIT

package lowlevel

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"golang.org/x/net/bpf"
)

// SeccompData mirrors struct seccomp_data, the record a seccomp filter reads.
type SeccompData struct {
	Number             int32
	Arch               uint32
	InstructionPointer uint64
	Args               [6]uint64
}

// SeccompDataSize is the size of struct seccomp_data in bytes.
const SeccompDataSize = int(unsafe.Sizeof(SeccompData{}))

// Half selects one 32 bits word of a 64 bits seccomp_data field.
type Half int

const (
	Low Half = iota
	High
)

var (
	offsetNumber = uint32(unsafe.Offsetof(SeccompData{}.Number))
	offsetArch   = uint32(unsafe.Offsetof(SeccompData{}.Arch))
	offsetIP     = uint32(unsafe.Offsetof(SeccompData{}.InstructionPointer))
	offsetArgs   = uint32(unsafe.Offsetof(SeccompData{}.Args))
)

// wordOffset returns where the requested half of a 64 bits field starting
// at base lives, given the architecture byte order.
func wordOffset(base uint32, half Half, arch string) uint32 {
	if ArchIsLittleEndian(arch) == (half == High) {
		return base + 4
	}
	return base
}

// LoadNumber loads the syscall number into the accumulator.
func LoadNumber() bpf.LoadAbsolute {
	return bpf.LoadAbsolute{Off: offsetNumber, Size: 4}
}

// LoadArch loads the AUDIT_ARCH_* value of the call into the accumulator.
func LoadArch() bpf.LoadAbsolute {
	return bpf.LoadAbsolute{Off: offsetArch, Size: 4}
}

// LoadInstructionPointer loads one half of the instruction pointer.
func LoadInstructionPointer(half Half, arch string) bpf.LoadAbsolute {
	return bpf.LoadAbsolute{Off: wordOffset(offsetIP, half, arch), Size: 4}
}

// LoadArg loads one half of syscall argument index (0 to 5).
func LoadArg(index int, half Half, arch string) bpf.LoadAbsolute {
	base := offsetArgs + uint32(index)*8
	return bpf.LoadAbsolute{Off: wordOffset(base, half, arch), Size: 4}
}

// Marshal lays the record out as the kernel would on the given architecture.
func (d SeccompData) Marshal(arch string) []byte {
	var buf bytes.Buffer
	buf.Grow(SeccompDataSize)
	// Writes into a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, ByteOrder(arch), d)
	return buf.Bytes()
}
