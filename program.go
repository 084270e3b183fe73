// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"fmt"
	"os"
	"strings"

	"github.com/goseccompc/goseccompc/bpffile"
	"github.com/goseccompc/goseccompc/emulator"
	"github.com/goseccompc/goseccompc/lowlevel"
	"github.com/spf13/afero"
	"golang.org/x/net/bpf"
)

// Program is a validated seccomp filter for one architecture. It is never
// modified once built.
type Program struct {
	arch  string
	insns []bpf.RawInstruction
}

// ParseProgram decodes a program file produced for arch and validates it.
func ParseProgram(data []byte, arch string) (*Program, error) {
	if err := lowlevel.CheckArch(arch); err != nil {
		return nil, authoringErr(NoRule, 0, ErrUnknownArchitecture, "%v", err)
	}
	insns, err := bpffile.Unmarshal(data, lowlevel.ByteOrder(arch))
	if err != nil {
		return nil, err
	}
	if err := Validate(insns); err != nil {
		return nil, err
	}
	return &Program{arch: arch, insns: insns}, nil
}

func (p *Program) Arch() string { return p.arch }
func (p *Program) Len() int     { return len(p.insns) }

// Instructions returns a copy of the raw instructions.
func (p *Program) Instructions() []bpf.RawInstruction {
	return append([]bpf.RawInstruction(nil), p.insns...)
}

func (p *Program) Disassemble() []bpf.Instruction {
	insns, _ := bpf.Disassemble(p.insns)
	return insns
}

func (p *Program) String() string {
	var sb strings.Builder
	for i, insn := range p.Disassemble() {
		fmt.Fprintf(&sb, "%4d: %s\n", i, insn)
	}
	return sb.String()
}

// Bytes encodes the program as the kernel expects it on the target.
func (p *Program) Bytes() ([]byte, error) {
	return bpffile.Marshal(p.insns, lowlevel.ByteOrder(p.arch))
}

// WriteFile atomically publishes the encoded program at path.
func (p *Program) WriteFile(fs afero.Fs, path string, perm os.FileMode) error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}
	return bpffile.WriteFile(fs, path, data, perm)
}

// Evaluate runs the program against one call and decodes the verdict.
func (p *Program) Evaluate(data lowlevel.SeccompData) (Action, error) {
	ret, err := emulator.Emulate(p.insns, data, p.arch)
	if err != nil {
		return Action{}, err
	}
	return ActionFromReturn(ret), nil
}

// Call evaluates a native call of syscall nr with the given arguments.
func (p *Program) Call(nr uint32, args ...uint64) (Action, error) {
	if len(args) > MaxArgs {
		return Action{}, fmt.Errorf("%w: %d arguments", ErrInvalidArgument, len(args))
	}
	data := lowlevel.SeccompData{
		Number: int32(nr),
		Arch:   lowlevel.GetAuditArch(p.arch),
	}
	copy(data.Args[:], args)
	return p.Evaluate(data)
}
