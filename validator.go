// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"fmt"

	"github.com/goseccompc/goseccompc/lowlevel"
	"go.uber.org/multierr"
	"golang.org/x/net/bpf"
)

// Validate statically checks a program against what the kernel seccomp
// interpreter accepts: forward in-bounds jumps, a return at the end of every
// path, aligned word loads inside seccomp_data, scratch slots stored before
// being read, shifts below 32, no dead instruction and a bounded length. Every finding is reported, as a *CompilationError.
func Validate(insns []bpf.RawInstruction) error {
	if len(insns) == 0 {
		return compilationErr(-1, ErrMissingReturn, "empty program")
	}

	var errs error
	if len(insns) > lowlevel.BPF_MAXINSNS {
		errs = multierr.Append(errs, compilationErr(-1, ErrProgramTooLarge,
			"%d instructions, at most %d", len(insns), lowlevel.BPF_MAXINSNS))
	}

	// Jumps only go forward, so one pass in order sees every way into an
	// instruction before the instruction itself. stored[i] holds the scratch
	// slots written on every path reaching i.
	reachable := make([]bool, len(insns))
	stored := make([]uint16, len(insns))
	for i := range stored {
		stored[i] = 0xffff
	}
	reachable[0] = true
	stored[0] = 0
	for i, raw := range insns {
		if !reachable[i] {
			errs = multierr.Append(errs, compilationErr(i, ErrUnreachableCode, ""))
		}
		insn := raw.Disassemble()
		targets, err := successors(i, insn)
		if err != nil {
			errs = multierr.Append(errs, &CompilationError{Index: i, Err: err})
			continue
		}

		slots := stored[i]
		switch insn := insn.(type) {
		case bpf.LoadScratch:
			if reachable[i] && slots&(1<<insn.N) == 0 {
				errs = multierr.Append(errs, compilationErr(i, ErrInvalidLoad,
					"scratch slot %d read before being stored", insn.N))
			}
		case bpf.StoreScratch:
			slots |= 1 << insn.N
		}

		for _, to := range targets {
			if to >= int64(len(insns)) {
				errs = multierr.Append(errs, compilationErr(i, ErrMalformedJump,
					"target %d is past the end of the program (%d instructions)", to, len(insns)))
				continue
			}
			if reachable[i] {
				reachable[to] = true
				stored[to] &= slots
			}
		}
	}

	switch insns[len(insns)-1].Disassemble().(type) {
	case bpf.RetConstant, bpf.RetA:
	default:
		errs = multierr.Append(errs, compilationErr(len(insns)-1, ErrMissingReturn, ""))
	}
	return errs
}

// successors lists where execution may continue after insn, at index i.
func successors(i int, insn bpf.Instruction) ([]int64, error) {
	after := int64(i) + 1
	switch insn := insn.(type) {
	case bpf.RetConstant, bpf.RetA:
		return nil, nil
	case bpf.Jump:
		return []int64{after + int64(insn.Skip)}, nil
	case bpf.JumpIf:
		return []int64{after + int64(insn.SkipTrue), after + int64(insn.SkipFalse)}, nil
	case bpf.JumpIfX:
		return []int64{after + int64(insn.SkipTrue), after + int64(insn.SkipFalse)}, nil
	case bpf.LoadAbsolute:
		if insn.Size != 4 {
			return nil, fmt.Errorf("%w: %d bytes load, the accumulator takes 4", ErrInvalidLoad, insn.Size)
		}
		if insn.Off%4 != 0 || uint64(insn.Off)+4 > uint64(lowlevel.SeccompDataSize) {
			return nil, fmt.Errorf("%w: offset %d outside of seccomp_data", ErrInvalidLoad, insn.Off)
		}
	case bpf.LoadScratch:
		if insn.N < 0 || insn.N > 15 {
			return nil, fmt.Errorf("%w: scratch slot %d", ErrInvalidLoad, insn.N)
		}
	case bpf.StoreScratch:
		if insn.N < 0 || insn.N > 15 {
			return nil, fmt.Errorf("%w: scratch slot %d", ErrInvalidInstruction, insn.N)
		}
	case bpf.ALUOpConstant:
		if (insn.Op == bpf.ALUOpDiv || insn.Op == bpf.ALUOpMod) && insn.Val == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrInvalidInstruction)
		}
		if (insn.Op == bpf.ALUOpShiftLeft || insn.Op == bpf.ALUOpShiftRight) && insn.Val >= 32 {
			return nil, fmt.Errorf("%w: shift by %d", ErrInvalidInstruction, insn.Val)
		}
	case bpf.LoadExtension:
		if insn.Num != bpf.ExtLen {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInstruction, insn)
		}
	case bpf.LoadConstant, bpf.ALUOpX, bpf.NegateA, bpf.TAX, bpf.TXA:
	default:
		return nil, fmt.Errorf("%w: %v not allowed in a seccomp filter", ErrInvalidInstruction, insn)
	}
	return []int64{after}, nil
}

// validateRules reports every authoring error of rs for the given target.
func validateRules(rs *RuleSet, arch string, table lowlevel.SyscallTable) error {
	var errs error
	if err := rs.defaultAction.validate(); err != nil {
		errs = multierr.Append(errs, authoringErr(NoRule, 0, err, "default action"))
	}
	if err := rs.badArch.validate(); err != nil {
		errs = multierr.Append(errs, authoringErr(NoRule, 0, err, "bad architecture action"))
	}

	for i, r := range rs.rules {
		if _, ok := table.Name(r.Syscall); !ok {
			errs = multierr.Append(errs, authoringErr(i, r.Syscall, ErrUnknownSyscall, "no syscall %d on %s", r.Syscall, arch))
		}
		if err := r.Action.validate(); err != nil {
			errs = multierr.Append(errs, &AuthoringError{Rule: i, Syscall: r.Syscall, Err: err})
		}
		for _, p := range r.Predicates {
			if err := p.check(); err != nil {
				errs = multierr.Append(errs, &AuthoringError{Rule: i, Syscall: r.Syscall, Err: err})
			} else if err := p.checkArch(arch); err != nil {
				errs = multierr.Append(errs, &AuthoringError{Rule: i, Syscall: r.Syscall, Err: err})
			}
		}
	}

	for _, ch := range rs.chains() {
		errs = multierr.Append(errs, checkReachable(rs, ch))
	}
	return errs
}

// checkReachable flags the rules of a chain that can never match because
// an earlier rule of the same syscall already catches all their calls.
func checkReachable(rs *RuleSet, ch chain) error {
	var errs error
	for pos, idx := range ch.rules {
		r := rs.rules[idx]
		for _, prev := range ch.rules[:pos] {
			p := rs.rules[prev]
			if p.Unconditional() {
				errs = multierr.Append(errs, authoringErr(idx, r.Syscall, ErrUnreachableRule,
					"rule %d matches every call first", prev))
				break
			}
			if samePredicates(p.Predicates, r.Predicates) {
				errs = multierr.Append(errs, authoringErr(idx, r.Syscall, ErrUnreachableRule,
					"rule %d has the same predicates", prev))
				break
			}
		}
	}
	return errs
}
