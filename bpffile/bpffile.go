// SPDX-Licence-Identifier: MIT

// Package bpffile reads and writes seccomp programs in the format of
// seccomp_export_bpf(3): a bare array of struct sock_filter records in the
// byte order of the target, without header or length prefix.
package bpffile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/goseccompc/goseccompc/lowlevel"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// SerializationError reports a failure to encode, decode or publish a program.
type SerializationError struct {
	Op   string
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ErrTruncated is returned when the input ends in the middle of a record.
var ErrTruncated = errors.New("program parsing halted mid-instruction")

// Encode writes every instruction to w as a sock_filter record.
func Encode(w io.Writer, insns []bpf.RawInstruction, order binary.ByteOrder) error {
	for _, insn := range insns {
		rec := unix.SockFilter{
			Code: insn.Op,
			Jt:   insn.Jt,
			Jf:   insn.Jf,
			K:    insn.K,
		}
		if err := binary.Write(w, order, rec); err != nil {
			return &SerializationError{Op: "encode", Err: err}
		}
	}
	return nil
}

// Decode reads sock_filter records from r until EOF.
func Decode(r io.Reader, order binary.ByteOrder) ([]bpf.RawInstruction, error) {
	var program []bpf.RawInstruction
	for {
		var rec unix.SockFilter
		if err := binary.Read(r, order, &rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &SerializationError{Op: "decode", Err: fmt.Errorf("%w after %d instructions", ErrTruncated, len(program))}
			}
			return nil, &SerializationError{Op: "decode", Err: err}
		}
		program = append(program, bpf.RawInstruction{
			Op: rec.Code,
			Jt: rec.Jt,
			Jf: rec.Jf,
			K:  rec.K,
		})
	}
	return program, nil
}

// Marshal encodes insns into a new byte slice.
func Marshal(insns []bpf.RawInstruction, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(insns) * lowlevel.SockFilterSize)
	if err := Encode(&buf, insns, order); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a whole program from data.
func Unmarshal(data []byte, order binary.ByteOrder) ([]bpf.RawInstruction, error) {
	return Decode(bytes.NewReader(data), order)
}
