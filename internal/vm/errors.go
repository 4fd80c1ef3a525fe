package vm

import (
	"errors"
	"fmt"
)

var (
	ErrRomTooLarge       = errors.New("rom too large")
	ErrAddressOutOfRange = errors.New("address out of range")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
)

// Fault is returned by Step when an instruction cannot be fetched or executed.
type Fault struct {
	PC     uint16 // Address of the faulting instruction
	Opcode uint16 // Raw instruction, zero when the fetch itself failed
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at 0x%04x (opcode 0x%04X): %v", f.PC, f.Opcode, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func isUnknownOpcode(err error) bool {
	return errors.Is(err, ErrUnknownOpcode)
}
