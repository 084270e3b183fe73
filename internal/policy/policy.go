// SPDX-Licence-Identifier: MIT

// Package policy builds the rule sets shipped with seccompc.
package policy

import (
	"fmt"

	"github.com/goseccompc/goseccompc"
	"github.com/goseccompc/goseccompc/lowlevel"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// TIOCSTI pushes bytes into the input queue of a terminal.
const TIOCSTI = 0x5412

// AuditAllowed are the syscalls the audit policy lets through without logging.
var AuditAllowed = []string{
	"access",
	"openat",
	"newfstatat",
	"mmap",
	"close",
	"read",
	"pread64",
	"mprotect",
	"munmap",
	"brk",
	"dup2",
	"utimensat",
	"exit_group",
	"arch_prctl",
	"execve",
}

// Build returns the built-in rule set of mode for arch, along with the
// syscall names the architecture does not provide.
func Build(mode goseccompc.PolicyMode, arch string) (*goseccompc.RuleSet, []string, error) {
	table, err := lowlevel.LookupTable(arch)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", goseccompc.ErrUnknownArchitecture, err)
	}
	switch mode {
	case goseccompc.Blocklist:
		rs, err := blocklist(table)
		return rs, nil, err
	case goseccompc.Audit:
		return audit(table)
	default:
		return nil, nil, fmt.Errorf("unknown policy mode %s", mode)
	}
}

// blocklist allows everything but faking terminal input.
func blocklist(table lowlevel.SyscallTable) (*goseccompc.RuleSet, error) {
	rs := goseccompc.NewRuleSet(goseccompc.Blocklist)
	ioctl, ok := table.Number("ioctl")
	if !ok {
		return nil, fmt.Errorf("%w: ioctl", goseccompc.ErrUnknownSyscall)
	}
	err := rs.AddRule(ioctl, goseccompc.ReturnErrno(uint16(unix.EPERM)), goseccompc.Arg(1, goseccompc.Eq, TIOCSTI))
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// audit logs every syscall outside of AuditAllowed.
func audit(table *lowlevel.Table) (*goseccompc.RuleSet, []string, error) {
	rs := goseccompc.NewRuleSet(goseccompc.Audit)
	var skipped []string
	for _, name := range AuditAllowed {
		nr, ok := table.Number(name)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"arch":    table.Arch(),
				"syscall": name,
			}).Warn("syscall not available, skipping")
			skipped = append(skipped, name)
			continue
		}
		if err := rs.AddRule(nr, goseccompc.Action{Type: goseccompc.Allow}); err != nil {
			return nil, nil, err
		}
	}
	return rs, skipped, nil
}
