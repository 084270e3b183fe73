// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"fmt"

	"github.com/goseccompc/goseccompc/lowlevel"
	"golang.org/x/net/bpf"
)

// label names a position in the program being assembled. Jumps are
// recorded against labels and turned into offsets once every label is placed.
type label int

// next is the label of the instruction right after the jump.
const next label = -1

type pendingKind int

const (
	plainInsn pendingKind = iota
	condJump
	alwaysJump
)

type pending struct {
	kind  pendingKind
	insn  bpf.Instruction
	cond  bpf.JumpTest
	val   uint32
	jt    label
	jf    label
	to    label
	owner int
}

type assembler struct {
	insns  []pending
	labels map[label]int
	count  int
	// owner is attached to emitted instructions so errors can point at a rule.
	owner int
}

func newAssembler() *assembler {
	return &assembler{labels: make(map[label]int), owner: NoRule}
}

func (a *assembler) newLabel() label {
	l := label(a.count)
	a.count++
	return l
}

// mark places l at the next emitted instruction.
func (a *assembler) mark(l label) {
	if _, ok := a.labels[l]; ok {
		panic(fmt.Sprintf("label %d placed twice - this is a programmer error", l))
	}
	a.labels[l] = len(a.insns)
}

func (a *assembler) emit(insn bpf.Instruction) {
	a.insns = append(a.insns, pending{kind: plainInsn, insn: insn, owner: a.owner})
}

func (a *assembler) jumpIf(cond bpf.JumpTest, val uint32, jt, jf label) {
	a.insns = append(a.insns, pending{kind: condJump, cond: cond, val: val, jt: jt, jf: jf, owner: a.owner})
}

func (a *assembler) jump(to label) {
	a.insns = append(a.insns, pending{kind: alwaysJump, to: to, owner: a.owner})
}

func (a *assembler) offset(from int, l label) (int, error) {
	if l == next {
		return 0, nil
	}
	at, ok := a.labels[l]
	if !ok {
		return 0, fmt.Errorf("%w: label %d never placed", ErrMalformedJump, l)
	}
	if at <= from {
		return 0, fmt.Errorf("%w: label %d is not ahead of the jump", ErrMalformedJump, l)
	}
	if at >= len(a.insns) {
		return 0, fmt.Errorf("%w: label %d is past the end of the program", ErrMalformedJump, l)
	}
	return at - from - 1, nil
}

func (a *assembler) condOffset(from int, l label) (uint8, error) {
	off, err := a.offset(from, l)
	if err != nil {
		return 0, err
	}
	if off > lowlevel.MaxJump {
		return 0, fmt.Errorf("%w: %d instructions to skip, at most %d", ErrJumpOverflow, off, lowlevel.MaxJump)
	}
	return uint8(off), nil
}

// resolve turns every label into a jump offset.
func (a *assembler) resolve() ([]bpf.Instruction, error) {
	out := make([]bpf.Instruction, 0, len(a.insns))
	for i, p := range a.insns {
		switch p.kind {
		case plainInsn:
			out = append(out, p.insn)
		case condJump:
			jt, err := a.condOffset(i, p.jt)
			if err != nil {
				return nil, a.wrap(i, p, err)
			}
			jf, err := a.condOffset(i, p.jf)
			if err != nil {
				return nil, a.wrap(i, p, err)
			}
			out = append(out, bpf.JumpIf{Cond: p.cond, Val: p.val, SkipTrue: jt, SkipFalse: jf})
		case alwaysJump:
			off, err := a.offset(i, p.to)
			if err != nil {
				return nil, a.wrap(i, p, err)
			}
			out = append(out, bpf.Jump{Skip: uint32(off)})
		}
	}
	return out, nil
}

func (a *assembler) wrap(index int, p pending, err error) error {
	if p.owner != NoRule {
		err = fmt.Errorf("while compiling rule %d: %w", p.owner, err)
	}
	return &CompilationError{Index: index, Err: err}
}

func (a *assembler) assemble() ([]bpf.RawInstruction, error) {
	insns, err := a.resolve()
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, &CompilationError{Index: -1, Err: fmt.Errorf("%w: %v", ErrInvalidInstruction, err)}
	}
	return raw, nil
}
