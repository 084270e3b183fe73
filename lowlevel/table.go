// SPDX-Licence-Identifier: MIT

package lowlevel

import (
	"fmt"
	"sort"

	"github.com/elastic/go-seccomp-bpf/arch"
)

// SyscallTable maps syscall names to numbers for one architecture.
type SyscallTable interface {
	Number(name string) (uint32, bool)
	Name(number uint32) (string, bool)
}

// Table is a SyscallTable backed by the go-seccomp-bpf architecture tables.
type Table struct {
	arch string
	info *arch.Info
}

// LookupTable returns the syscall table of the given GOARCH string.
func LookupTable(goArch string) (*Table, error) {
	if err := CheckArch(goArch); err != nil {
		return nil, err
	}
	info, err := arch.GetInfo(goArch)
	if err != nil {
		return nil, fmt.Errorf("no syscall table for %q: %w", goArch, err)
	}
	return &Table{arch: goArch, info: info}, nil
}

func (t *Table) Arch() string { return t.arch }

func (t *Table) Number(name string) (uint32, bool) {
	nr, ok := t.info.SyscallNames[name]
	if !ok || nr < 0 {
		return 0, false
	}
	return uint32(nr), true
}

func (t *Table) Name(number uint32) (string, bool) {
	name, ok := t.info.SyscallNumbers[int(number)]
	return name, ok
}

// Names returns every syscall name of the table, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.info.SyscallNames))
	for name := range t.info.SyscallNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
