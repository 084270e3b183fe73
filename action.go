// SPDX-Licence-Identifier: MIT

package goseccompc

import (
	"fmt"

	"github.com/goseccompc/goseccompc/lowlevel"
	"golang.org/x/net/bpf"
)

type ActionType uint32

const (
	Allow       ActionType = lowlevel.SECCOMP_RET_ALLOW
	KillProcess ActionType = lowlevel.SECCOMP_RET_KILL_PROCESS
	KillThread  ActionType = lowlevel.SECCOMP_RET_KILL_THREAD
	Errno       ActionType = lowlevel.SECCOMP_RET_ERRNO
	Trap        ActionType = lowlevel.SECCOMP_RET_TRAP
	Trace       ActionType = lowlevel.SECCOMP_RET_TRACE
	Log         ActionType = lowlevel.SECCOMP_RET_LOG
	Notify      ActionType = lowlevel.SECCOMP_RET_USER_NOTIF

	// Kill terminates the whole process.
	Kill = KillProcess
)

func (t ActionType) String() string {
	switch t {
	case Allow:
		return "allow"
	case KillProcess:
		return "kill_process"
	case KillThread:
		return "kill_thread"
	case Errno:
		return "errno"
	case Trap:
		return "trap"
	case Trace:
		return "trace"
	case Log:
		return "log"
	case Notify:
		return "notify"
	default:
		return fmt.Sprintf("action(%#x)", uint32(t))
	}
}

// Action is the verdict of a rule. Data is the errno for Errno and is
// handed to the signal handler or the tracer for Trap and Trace.
type Action struct {
	Type ActionType
	Data uint16
}

// ReturnErrno denies the call with the given errno.
func ReturnErrno(code uint16) Action {
	return Action{Type: Errno, Data: code}
}

// ActionFromReturn decodes the value returned by a seccomp filter.
func ActionFromReturn(ret uint32) Action {
	return Action{
		Type: ActionType(ret & lowlevel.SECCOMP_RET_ACTION_FULL),
		Data: uint16(ret & lowlevel.SECCOMP_RET_DATA),
	}
}

func (a Action) ToUint32() uint32 {
	return uint32(a.Type) | uint32(a.Data)
}

func (a Action) String() string {
	switch a.Type {
	case Errno, Trap, Trace:
		return fmt.Sprintf("%s(%d)", a.Type, a.Data)
	}
	if a.Data != 0 {
		return fmt.Sprintf("%s(%d)", a.Type, a.Data)
	}
	return a.Type.String()
}

func (a Action) validate() error {
	switch a.Type {
	case Errno:
		if a.Data > lowlevel.MaxErrno {
			return fmt.Errorf("%w: %d is above %d", ErrInvalidErrno, a.Data, lowlevel.MaxErrno)
		}
	case Trap, Trace:
	case Allow, KillProcess, KillThread, Log, Notify:
		if a.Data != 0 {
			return fmt.Errorf("%w: %s takes no data", ErrInvalidAction, a.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %#x", ErrInvalidAction, uint32(a.Type))
	}
	return nil
}

func (a Action) compile() bpf.RetConstant {
	return bpf.RetConstant{Val: a.ToUint32()}
}
