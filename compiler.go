// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"runtime"

	"github.com/goseccompc/goseccompc/lowlevel"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
)

// CurrentArch is the architecture the program runs on, as a GOARCH value.
var CurrentArch = runtime.GOARCH

type compiler struct {
	rs   *RuleSet
	arch string
	asm  *assembler
}

// Compile turns rs into a validated seccomp program for arch. The rule set
// is not modified and can be compiled again; the output only depends on the
// rules, their order and arch.
func Compile(rs *RuleSet, arch string) (*Program, error) {
	table, err := lowlevel.LookupTable(arch)
	if err != nil {
		return nil, authoringErr(NoRule, 0, ErrUnknownArchitecture, "%v", err)
	}
	if err := validateRules(rs, arch, table); err != nil {
		return nil, err
	}

	c := &compiler{rs: rs, arch: arch, asm: newAssembler()}
	c.compile()
	raw, err := c.asm.assemble()
	if err != nil {
		return nil, err
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"arch":         arch,
		"rules":        rs.Len(),
		"instructions": len(raw),
	}).Debug("compiled seccomp program")
	return &Program{arch: arch, insns: raw}, nil
}

func (c *compiler) compile() {
	chains := c.rs.chains()
	if len(chains) == 0 {
		c.asm.emit(c.rs.defaultAction.compile())
		return
	}

	c.compilePrologue()

	// Dispatch on the syscall number, left in the accumulator by the prologue.
	bodies := make([]label, len(chains))
	for i, ch := range chains {
		skip := c.asm.newLabel()
		c.asm.jumpIf(bpf.JumpEqual, ch.syscall, next, skip)
		first := c.rs.rules[ch.rules[0]]
		if first.Unconditional() {
			c.asm.owner = ch.rules[0]
			c.asm.emit(first.Action.compile())
			c.asm.owner = NoRule
		} else {
			bodies[i] = c.asm.newLabel()
			c.asm.jump(bodies[i])
		}
		c.asm.mark(skip)
	}
	c.asm.emit(c.rs.defaultAction.compile())

	for i, ch := range chains {
		if c.rs.rules[ch.rules[0]].Unconditional() {
			continue
		}
		c.asm.mark(bodies[i])
		c.compileChain(ch)
	}
}

// compilePrologue rejects calls made with a foreign calling convention and
// loads the syscall number.
func (c *compiler) compilePrologue() {
	badArch := c.asm.newLabel()
	c.asm.emit(lowlevel.LoadArch())
	if lowlevel.HasX32ABI(c.arch) {
		dispatch := c.asm.newLabel()
		c.asm.jumpIf(bpf.JumpEqual, lowlevel.GetAuditArch(c.arch), next, badArch)
		c.asm.emit(lowlevel.LoadNumber())
		// Tracers set the number to -1 to skip a call, which is not an x32 call.
		c.asm.jumpIf(bpf.JumpGreaterOrEqual, lowlevel.X32SyscallBit, next, dispatch)
		c.asm.jumpIf(bpf.JumpEqual, lowlevel.SkippedSyscall, dispatch, badArch)
		c.asm.mark(badArch)
		c.asm.emit(c.rs.badArch.compile())
		c.asm.mark(dispatch)
		return
	}

	loadNumber := c.asm.newLabel()
	c.asm.jumpIf(bpf.JumpEqual, lowlevel.GetAuditArch(c.arch), loadNumber, badArch)
	c.asm.mark(badArch)
	c.asm.emit(c.rs.badArch.compile())
	c.asm.mark(loadNumber)
	c.asm.emit(lowlevel.LoadNumber())
}

// compileChain emits the rules of one syscall. A rule whose predicates do not
// hold falls through to the next rule, the last one to the default action.
func (c *compiler) compileChain(ch chain) {
	defer func() { c.asm.owner = NoRule }()
	for _, idx := range ch.rules {
		r := c.rs.rules[idx]
		c.asm.owner = idx
		if r.Unconditional() {
			c.asm.emit(r.Action.compile())
			return
		}
		fail := c.asm.newLabel()
		compilePredicates(c.asm, r.Predicates, fail, c.arch)
		c.asm.emit(r.Action.compile())
		c.asm.mark(fail)
	}
	c.asm.owner = NoRule
	c.asm.emit(c.rs.defaultAction.compile())
}
