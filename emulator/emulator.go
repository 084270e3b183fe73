// SPDX-Licence-Identifier: MIT

// Package emulator runs seccomp programs in user space, the way the kernel
// would run them against one syscall.
package emulator

import (
	"errors"
	"fmt"

	"github.com/goseccompc/goseccompc/lowlevel"
	"golang.org/x/net/bpf"
)

var (
	ErrFellOffEnd  = errors.New("execution went past the last instruction")
	ErrUnsupported = errors.New("instruction not supported by seccomp")
	ErrBadAccess   = errors.New("invalid memory access")
)

const scratchWords = 16

type emulator struct {
	data    []byte
	arch    string
	program []bpf.Instruction
	pointer uint32

	A uint32
	X uint32
	M [scratchWords]uint32
}

// Emulate executes insns against data as laid out on arch and returns the
// value of the ret instruction reached.
func Emulate(insns []bpf.RawInstruction, data lowlevel.SeccompData, arch string) (uint32, error) {
	e := &emulator{
		data:    data.Marshal(arch),
		arch:    arch,
		program: make([]bpf.Instruction, len(insns)),
	}
	for i, raw := range insns {
		e.program[i] = raw.Disassemble()
	}
	for {
		val, finished, err := e.next()
		if err != nil {
			return 0, fmt.Errorf("instruction %d: %w", e.pointer-1, err)
		}
		if finished {
			return val, nil
		}
	}
}

func (e *emulator) load(off uint32) (uint32, error) {
	if off%4 != 0 || uint64(off)+4 > uint64(len(e.data)) {
		return 0, fmt.Errorf("%w: load at offset %d", ErrBadAccess, off)
	}
	return lowlevel.ByteOrder(e.arch).Uint32(e.data[off:]), nil
}

func alu(op bpf.ALUOp, left, right uint32) (uint32, error) {
	switch op {
	case bpf.ALUOpAdd:
		return left + right, nil
	case bpf.ALUOpSub:
		return left - right, nil
	case bpf.ALUOpMul:
		return left * right, nil
	case bpf.ALUOpDiv:
		if right == 0 {
			return 0, fmt.Errorf("%w: division by zero", ErrUnsupported)
		}
		return left / right, nil
	case bpf.ALUOpMod:
		if right == 0 {
			return 0, fmt.Errorf("%w: division by zero", ErrUnsupported)
		}
		return left % right, nil
	case bpf.ALUOpOr:
		return left | right, nil
	case bpf.ALUOpAnd:
		return left & right, nil
	case bpf.ALUOpShiftLeft:
		return left << right, nil
	case bpf.ALUOpShiftRight:
		return left >> right, nil
	case bpf.ALUOpXor:
		return left ^ right, nil
	default:
		return 0, fmt.Errorf("%w: alu op %#x", ErrUnsupported, uint16(op))
	}
}

func test(cond bpf.JumpTest, left, right uint32) (bool, error) {
	switch cond {
	case bpf.JumpEqual:
		return left == right, nil
	case bpf.JumpNotEqual:
		return left != right, nil
	case bpf.JumpGreaterThan:
		return left > right, nil
	case bpf.JumpLessThan:
		return left < right, nil
	case bpf.JumpGreaterOrEqual:
		return left >= right, nil
	case bpf.JumpLessOrEqual:
		return left <= right, nil
	case bpf.JumpBitsSet:
		return left&right != 0, nil
	case bpf.JumpBitsNotSet:
		return left&right == 0, nil
	default:
		return false, fmt.Errorf("%w: jump test %d", ErrUnsupported, cond)
	}
}

func (e *emulator) jump(cond bpf.JumpTest, right uint32, skipTrue, skipFalse uint8) error {
	ok, err := test(cond, e.A, right)
	if err != nil {
		return err
	}
	if ok {
		return e.skip(uint32(skipTrue))
	}
	return e.skip(uint32(skipFalse))
}

// skip moves past n instructions after the current one. Targets outside of
// the program are rejected before the pointer moves.
func (e *emulator) skip(n uint32) error {
	target := uint64(e.pointer) + uint64(n)
	if target >= uint64(len(e.program)) {
		return fmt.Errorf("%w: jump to %d in a %d instructions program", ErrFellOffEnd, target, len(e.program))
	}
	e.pointer = uint32(target)
	return nil
}

func (e *emulator) setRegister(reg bpf.Register, val uint32) {
	if reg == bpf.RegX {
		e.X = val
	} else {
		e.A = val
	}
}

func (e *emulator) register(reg bpf.Register) uint32 {
	if reg == bpf.RegX {
		return e.X
	}
	return e.A
}

func (e *emulator) next() (uint32, bool, error) {
	if e.pointer >= uint32(len(e.program)) {
		e.pointer++
		return 0, false, ErrFellOffEnd
	}

	current := e.program[e.pointer]
	e.pointer++
	switch insn := current.(type) {
	case bpf.RetConstant:
		return insn.Val, true, nil
	case bpf.RetA:
		return e.A, true, nil
	case bpf.LoadAbsolute:
		if insn.Size != 4 {
			return 0, false, fmt.Errorf("%w: %d bytes load", ErrUnsupported, insn.Size)
		}
		val, err := e.load(insn.Off)
		if err != nil {
			return 0, false, err
		}
		e.A = val
	case bpf.LoadConstant:
		e.setRegister(insn.Dst, insn.Val)
	case bpf.LoadExtension:
		if insn.Num != bpf.ExtLen {
			return 0, false, fmt.Errorf("%w: %v", ErrUnsupported, insn)
		}
		e.A = uint32(len(e.data))
	case bpf.LoadScratch:
		if insn.N < 0 || insn.N >= scratchWords {
			return 0, false, fmt.Errorf("%w: scratch slot %d", ErrBadAccess, insn.N)
		}
		e.setRegister(insn.Dst, e.M[insn.N])
	case bpf.StoreScratch:
		if insn.N < 0 || insn.N >= scratchWords {
			return 0, false, fmt.Errorf("%w: scratch slot %d", ErrBadAccess, insn.N)
		}
		e.M[insn.N] = e.register(insn.Src)
	case bpf.ALUOpConstant:
		val, err := alu(insn.Op, e.A, insn.Val)
		if err != nil {
			return 0, false, err
		}
		e.A = val
	case bpf.ALUOpX:
		val, err := alu(insn.Op, e.A, e.X)
		if err != nil {
			return 0, false, err
		}
		e.A = val
	case bpf.NegateA:
		e.A = -e.A
	case bpf.TAX:
		e.X = e.A
	case bpf.TXA:
		e.A = e.X
	case bpf.Jump:
		if err := e.skip(insn.Skip); err != nil {
			return 0, false, err
		}
	case bpf.JumpIf:
		if err := e.jump(insn.Cond, insn.Val, insn.SkipTrue, insn.SkipFalse); err != nil {
			return 0, false, err
		}
	case bpf.JumpIfX:
		if err := e.jump(insn.Cond, e.X, insn.SkipTrue, insn.SkipFalse); err != nil {
			return 0, false, err
		}
	default:
		return 0, false, fmt.Errorf("%w: %v", ErrUnsupported, current)
	}
	return 0, false, nil
}
