// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holds evaluates p directly on a 64 bits argument value.
func holds(p ArgPredicate, v uint64) bool {
	switch p.Op {
	case Eq:
		return v == p.Value
	case Ne:
		return v != p.Value
	case Lt:
		return v < p.Value
	case Le:
		return v <= p.Value
	case Gt:
		return v > p.Value
	case Ge:
		return v >= p.Value
	case MaskedEq:
		return v&p.Mask == p.Value
	}
	panic(fmt.Sprintf("operator %d", p.Op))
}

var wideValues = []uint64{
	0,
	1,
	tiocsti,
	0x7fffffff,
	0xfffffffe,
	0xffffffff,
	0x100000000,
	0x100000001,
	0x100005412,
	0x1ffffffff,
	0xffffffff00000000,
	0xffffffff00005412,
	math.MaxUint64 - 1,
	math.MaxUint64,
}

var narrowValues = []uint64{0, 1, 0x5411, tiocsti, 0x5413, 0x7fffffff, 0x80000000, 0xfffffffe, 0xffffffff}

func predicatesUnder(values []uint64) []ArgPredicate {
	var preds []ArgPredicate
	for _, op := range []Operator{Eq, Ne, Lt, Le, Gt, Ge} {
		for _, v := range values {
			preds = append(preds, Arg(2, op, v))
		}
	}
	preds = append(preds,
		ArgMasked(2, 0xff, 0x12),
		ArgMasked(2, 0xffffffff, tiocsti),
	)
	return preds
}

type TestCasePredicateArch struct {
	arch   string
	nr     uint32
	values []uint64
	preds  []ArgPredicate
}

func TestPredicateAgainstDirectEvaluation(t *testing.T) {
	cases := []TestCasePredicateArch{
		{"amd64", amd64Ioctl, wideValues, append(predicatesUnder(wideValues),
			ArgMasked(2, 0xffffffff00000000, 0x100000000),
			ArgMasked(2, 0xff000000ff, 0xff00000012),
		)},
		{"arm64", 29, wideValues, append(predicatesUnder(wideValues),
			ArgMasked(2, 0xffffffff00000000, 0xffffffff00000000),
		)},
		{"386", i386Ioctl, narrowValues, predicatesUnder(narrowValues)},
	}
	allow := Action{Type: Allow}
	deny := ReturnErrno(1)

	for _, tc := range cases {
		for _, p := range tc.preds {
			rs := NewRuleSet(Blocklist)
			mustAdd(t, rs, tc.nr, deny, p)
			prog := mustCompile(t, rs, tc.arch)

			for _, v := range tc.values {
				expected := allow
				if holds(p, v) {
					expected = deny
				}
				got := mustCall(t, prog, tc.nr, 0, 0, v)
				assert.Equalf(t, expected, got, "%s: %s with arg2 = %#x", tc.arch, p, v)
			}
		}
	}
}

func TestPredicateConjunction(t *testing.T) {
	rs := NewRuleSet(Blocklist)
	mustAdd(t, rs, amd64Write, Action{Type: KillProcess},
		Arg(0, Gt, 2),
		Arg(1, Ne, 0),
		ArgMasked(2, 0x3, 0x1),
	)
	prog := mustCompile(t, rs, "amd64")

	cases := []struct {
		args     []uint64
		expected Action
	}{
		{[]uint64{3, 1, 1}, Action{Type: KillProcess}},
		{[]uint64{3, 1, 5}, Action{Type: KillProcess}},
		{[]uint64{2, 1, 1}, Action{Type: Allow}},
		{[]uint64{3, 0, 1}, Action{Type: Allow}},
		{[]uint64{3, 1, 2}, Action{Type: Allow}},
		{[]uint64{1 << 40, 1 << 40, 1<<40 | 1}, Action{Type: KillProcess}},
	}
	for i, tc := range cases {
		assert.Equalf(t, tc.expected, mustCall(t, prog, amd64Write, tc.args...), "[%d/%d]", i+1, len(cases))
	}
}

func TestPredicateEveryArgument(t *testing.T) {
	for arg := uint(0); arg < MaxArgs; arg++ {
		rs := NewRuleSet(Blocklist)
		mustAdd(t, rs, amd64Ioctl, ReturnErrno(1), Arg(arg, Eq, 0x1_0000_0007))
		prog := mustCompile(t, rs, "amd64")

		args := make([]uint64, MaxArgs)
		assert.Equal(t, Action{Type: Allow}, mustCall(t, prog, amd64Ioctl, args...))
		args[arg] = 0x1_0000_0007
		assert.Equalf(t, ReturnErrno(1), mustCall(t, prog, amd64Ioctl, args...), "arg%d", arg)
	}
}

func TestPredicateCheck(t *testing.T) {
	cases := []struct {
		pred  ArgPredicate
		arch  string
		valid bool
	}{
		{Arg(0, Eq, 1), "amd64", true},
		{Arg(5, Ge, math.MaxUint64), "amd64", true},
		{Arg(6, Eq, 1), "amd64", false},
		{ArgPredicate{Arg: 0, Op: 0}, "amd64", false},
		{ArgPredicate{Arg: 0, Op: MaskedEq + 1}, "amd64", false},
		{Arg(0, Eq, math.MaxUint32), "386", true},
		{Arg(0, Eq, math.MaxUint32+1), "386", false},
		{ArgMasked(0, 1<<32, 0), "386", false},
		{ArgMasked(0, 1<<32, 0), "arm64", true},
	}
	for i, tc := range cases {
		err := tc.pred.check()
		if err == nil {
			err = tc.pred.checkArch(tc.arch)
		}
		if tc.valid {
			assert.NoErrorf(t, err, "[%d/%d] %s", i+1, len(cases), tc.pred)
		} else {
			assert.Truef(t, errors.Is(err, ErrInvalidArgument), "[%d/%d] %s: %v", i+1, len(cases), tc.pred, err)
		}
	}
}

func TestPredicateString(t *testing.T) {
	assert.Equal(t, "arg1 == 0x5412", Arg(1, Eq, tiocsti).String())
	assert.Equal(t, "arg0 <= 0x2", Arg(0, Le, 2).String())
	assert.Equal(t, "arg2 & 0xff == 0x12", ArgMasked(2, 0xff, 0x12).String())
	assert.Equal(t, "op(42)", Operator(42).String())
}

func TestSamePredicates(t *testing.T) {
	a := []ArgPredicate{Arg(1, Eq, 2), Arg(0, Ne, 3)}
	require.True(t, samePredicates(a, []ArgPredicate{Arg(1, Eq, 2), Arg(0, Ne, 3)}))
	assert.False(t, samePredicates(a, []ArgPredicate{Arg(0, Ne, 3), Arg(1, Eq, 2)}))
	assert.False(t, samePredicates(a, a[:1]))
	assert.False(t, samePredicates(a, []ArgPredicate{Arg(1, Eq, 2), Arg(0, Ne, 4)}))
}
