// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"fmt"
	"strings"

	"github.com/goseccompc/goseccompc/lowlevel"
)

// PolicyMode selects the starting point of a rule set.
type PolicyMode int

const (
	// Blocklist allows everything and rules punch holes.
	Blocklist PolicyMode = iota
	// Audit logs everything and rules allow what is expected.
	Audit
)

func (m PolicyMode) String() string {
	switch m {
	case Blocklist:
		return "blocklist"
	case Audit:
		return "audit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParsePolicyMode is the inverse of PolicyMode.String.
func ParsePolicyMode(s string) (PolicyMode, error) {
	switch strings.ToLower(s) {
	case "blocklist", "":
		return Blocklist, nil
	case "audit":
		return Audit, nil
	default:
		return 0, fmt.Errorf("unknown policy mode %q", s)
	}
}

// DefaultAction is the verdict a rule set of that mode starts with.
func (m PolicyMode) DefaultAction() Action {
	if m == Audit {
		return Action{Type: Log}
	}
	return Action{Type: Allow}
}

// Rule gives the verdict for a syscall when all its predicates hold.
type Rule struct {
	Syscall    uint32
	Action     Action
	Predicates []ArgPredicate
}

// Unconditional reports whether the rule matches every call of its syscall.
func (r Rule) Unconditional() bool {
	return len(r.Predicates) == 0
}

func (r Rule) String() string {
	if r.Unconditional() {
		return fmt.Sprintf("%d -> %s", r.Syscall, r.Action)
	}
	preds := make([]string, len(r.Predicates))
	for i, p := range r.Predicates {
		preds[i] = p.String()
	}
	return fmt.Sprintf("%d [%s] -> %s", r.Syscall, strings.Join(preds, " && "), r.Action)
}

// RuleSet is an ordered list of rules. For a given syscall the first
// matching rule wins; calls no rule matches get the default action.
type RuleSet struct {
	mode          PolicyMode
	rules         []Rule
	defaultAction Action
	badArch       Action
}

func NewRuleSet(mode PolicyMode) *RuleSet {
	return &RuleSet{
		mode:          mode,
		defaultAction: mode.DefaultAction(),
		badArch:       Action{Type: KillProcess},
	}
}

// AddRule appends a rule. A syscall can only have one unconditional rule.
func (rs *RuleSet) AddRule(syscall uint32, action Action, predicates ...ArgPredicate) error {
	index := len(rs.rules)
	for _, p := range predicates {
		if err := p.check(); err != nil {
			return &AuthoringError{Rule: index, Syscall: syscall, Err: err}
		}
	}
	if len(predicates) == 0 {
		for i, r := range rs.rules {
			if r.Syscall == syscall && r.Unconditional() {
				return authoringErr(index, syscall, ErrDuplicateUnconditionalRule, "already set by rule %d", i)
			}
		}
	}
	rs.rules = append(rs.rules, Rule{
		Syscall:    syscall,
		Action:     action,
		Predicates: append([]ArgPredicate(nil), predicates...),
	})
	return nil
}

func (rs *RuleSet) SetDefault(action Action) {
	rs.defaultAction = action
}

// SetBadArchAction sets the verdict for calls made with another
// architecture calling convention than the compiled one.
func (rs *RuleSet) SetBadArchAction(action Action) {
	rs.badArch = action
}

func (rs *RuleSet) Mode() PolicyMode      { return rs.mode }
func (rs *RuleSet) Default() Action       { return rs.defaultAction }
func (rs *RuleSet) BadArchAction() Action { return rs.badArch }
func (rs *RuleSet) Len() int              { return len(rs.rules) }

// Rules returns a copy of the rules in authoring order.
func (rs *RuleSet) Rules() []Rule {
	rules := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		r.Predicates = append([]ArgPredicate(nil), r.Predicates...)
		rules[i] = r
	}
	return rules
}

// chain is the rules of one syscall, in authoring order.
type chain struct {
	syscall uint32
	rules   []int
}

// chains groups rule indexes per syscall, syscalls in order of first use.
func (rs *RuleSet) chains() []chain {
	var chains []chain
	bySyscall := make(map[uint32]int)
	for i, r := range rs.rules {
		at, ok := bySyscall[r.Syscall]
		if !ok {
			at = len(chains)
			bySyscall[r.Syscall] = at
			chains = append(chains, chain{syscall: r.Syscall})
		}
		chains[at].rules = append(chains[at].rules, i)
	}
	return chains
}

// Resolve returns the number of the named syscall on arch.
func Resolve(arch, name string) (uint32, error) {
	table, err := lowlevel.LookupTable(arch)
	if err != nil {
		return 0, authoringErr(NoRule, 0, ErrUnknownArchitecture, "%v", err)
	}
	nr, ok := table.Number(name)
	if !ok {
		return 0, authoringErr(NoRule, 0, ErrUnknownSyscall, "%q on %s", name, arch)
	}
	return nr, nil
}
