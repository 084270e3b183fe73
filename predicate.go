// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"fmt"
	"math"

	"github.com/goseccompc/goseccompc/lowlevel"
	"golang.org/x/net/bpf"
)

// Operator compares a syscall argument with a value. Comparisons are unsigned.
type Operator int

const (
	Eq Operator = iota + 1
	Ne
	Lt
	Le
	Gt
	Ge
	// MaskedEq matches when (arg & Mask) == Value.
	MaskedEq
)

func (o Operator) String() string {
	switch o {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case MaskedEq:
		return "&=="
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// MaxArgs is the number of syscall arguments seccomp can inspect.
const MaxArgs = 6

// ArgPredicate is a check on one syscall argument.
type ArgPredicate struct {
	// Arg is the argument index, 0 to 5.
	Arg   uint
	Op    Operator
	Value uint64
	// Mask is only used by MaskedEq.
	Mask uint64
}

// Arg builds a predicate comparing argument index with value.
func Arg(index uint, op Operator, value uint64) ArgPredicate {
	return ArgPredicate{Arg: index, Op: op, Value: value}
}

// ArgMasked builds a predicate matching when (argument & mask) == value.
func ArgMasked(index uint, mask, value uint64) ArgPredicate {
	return ArgPredicate{Arg: index, Op: MaskedEq, Value: value, Mask: mask}
}

func (p ArgPredicate) String() string {
	if p.Op == MaskedEq {
		return fmt.Sprintf("arg%d & %#x == %#x", p.Arg, p.Mask, p.Value)
	}
	return fmt.Sprintf("arg%d %s %#x", p.Arg, p.Op, p.Value)
}

// check validates what does not depend on the target architecture.
func (p ArgPredicate) check() error {
	if p.Arg >= MaxArgs {
		return fmt.Errorf("%w: argument index %d out of range", ErrInvalidArgument, p.Arg)
	}
	if p.Op < Eq || p.Op > MaskedEq {
		return fmt.Errorf("%w: unknown operator %d", ErrInvalidArgument, int(p.Op))
	}
	return nil
}

// checkArch rejects operands the target cannot represent. Arguments of
// 32 bits architectures are a single word.
func (p ArgPredicate) checkArch(arch string) error {
	if lowlevel.ArchIs64Bits(arch) {
		return nil
	}
	if p.Value > math.MaxUint32 {
		return fmt.Errorf("%w: value %#x does not fit a 32 bits argument", ErrInvalidArgument, p.Value)
	}
	if p.Op == MaskedEq && p.Mask > math.MaxUint32 {
		return fmt.Errorf("%w: mask %#x does not fit a 32 bits argument", ErrInvalidArgument, p.Mask)
	}
	return nil
}

func hi(v uint64) uint32 { return uint32(v >> 32) }
func lo(v uint64) uint32 { return uint32(v) }

// compile emits the check, falling through when it holds and jumping to
// fail otherwise.
func (p ArgPredicate) compile(a *assembler, fail label, arch string) {
	if !lowlevel.ArchIs64Bits(arch) {
		p.compileWord(a, lowlevel.Low, lo(p.Value), lo(p.Mask), fail, arch)
		return
	}

	idx := int(p.Arg)
	pass := a.newLabel()
	switch p.Op {
	case Eq:
		a.emit(lowlevel.LoadArg(idx, lowlevel.High, arch))
		a.jumpIf(bpf.JumpEqual, hi(p.Value), next, fail)
		a.emit(lowlevel.LoadArg(idx, lowlevel.Low, arch))
		a.jumpIf(bpf.JumpEqual, lo(p.Value), next, fail)
	case Ne:
		a.emit(lowlevel.LoadArg(idx, lowlevel.High, arch))
		a.jumpIf(bpf.JumpEqual, hi(p.Value), next, pass)
		a.emit(lowlevel.LoadArg(idx, lowlevel.Low, arch))
		a.jumpIf(bpf.JumpEqual, lo(p.Value), fail, pass)
	case Gt, Ge:
		// The high words decide unless they are equal.
		a.emit(lowlevel.LoadArg(idx, lowlevel.High, arch))
		a.jumpIf(bpf.JumpGreaterThan, hi(p.Value), pass, next)
		a.jumpIf(bpf.JumpEqual, hi(p.Value), next, fail)
		a.emit(lowlevel.LoadArg(idx, lowlevel.Low, arch))
		a.jumpIf(lowTest(p.Op), lo(p.Value), pass, fail)
	case Lt, Le:
		a.emit(lowlevel.LoadArg(idx, lowlevel.High, arch))
		a.jumpIf(bpf.JumpGreaterThan, hi(p.Value), fail, next)
		a.jumpIf(bpf.JumpEqual, hi(p.Value), next, pass)
		a.emit(lowlevel.LoadArg(idx, lowlevel.Low, arch))
		a.jumpIf(lowTest(p.Op), lo(p.Value), fail, pass)
	case MaskedEq:
		a.emit(lowlevel.LoadArg(idx, lowlevel.High, arch))
		a.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: hi(p.Mask)})
		a.jumpIf(bpf.JumpEqual, hi(p.Value), next, fail)
		a.emit(lowlevel.LoadArg(idx, lowlevel.Low, arch))
		a.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: lo(p.Mask)})
		a.jumpIf(bpf.JumpEqual, lo(p.Value), next, fail)
	}
	a.mark(pass)
}

// lowTest is the test applied on the low word of an ordered comparison.
// Lt and Le are emitted as the negation of Ge and Gt.
func lowTest(op Operator) bpf.JumpTest {
	switch op {
	case Gt, Le:
		return bpf.JumpGreaterThan
	default:
		return bpf.JumpGreaterOrEqual
	}
}

func (p ArgPredicate) compileWord(a *assembler, half lowlevel.Half, val, mask uint32, fail label, arch string) {
	a.emit(lowlevel.LoadArg(int(p.Arg), half, arch))
	switch p.Op {
	case Eq:
		a.jumpIf(bpf.JumpEqual, val, next, fail)
	case Ne:
		a.jumpIf(bpf.JumpEqual, val, fail, next)
	case Gt, Ge:
		a.jumpIf(lowTest(p.Op), val, next, fail)
	case Lt, Le:
		a.jumpIf(lowTest(p.Op), val, fail, next)
	case MaskedEq:
		a.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: mask})
		a.jumpIf(bpf.JumpEqual, val, next, fail)
	}
}

// compilePredicates emits the conjunction of preds. Evaluation stops at the
// first predicate that does not hold.
func compilePredicates(a *assembler, preds []ArgPredicate, fail label, arch string) {
	for _, p := range preds {
		p.compile(a, fail, arch)
	}
}

func samePredicates(a, b []ArgPredicate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
