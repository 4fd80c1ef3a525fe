package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	FontStart       = uint16(0x050)
	ProgramStart    = uint16(0x200)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2

	flagRegister = 0x0F
)

// Framebuffer is a 64x32 monochrome grid stored row by row, one byte per pixel (0 or 1).
type Framebuffer [ScreenWidth * ScreenHeight]uint8

// Pixel reports whether the pixel at (x, y) is lit.
// Coordinates outside 0..63 by 0..31 are never lit.
func (fb *Framebuffer) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	return fb[y*ScreenWidth+x] != 0
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// Status is the outcome of a successful Step.
type Status uint8

const (
	// StatusRunning means the instruction was executed.
	StatusRunning Status = iota
	// StatusAwaitingInput means a key wait is pending; the same instruction is re-issued by the next Step.
	StatusAwaitingInput
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusAwaitingInput:
		return "awaiting input"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// VM is a single CHIP-8 machine. It is not safe for concurrent use.
type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint16            // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      Framebuffer    // Graphics buffer
	keypad   [KeyCount]bool // Keypad
	drawFlag bool           // Indicates a draw has occurred

	quirks Quirks
	random func() uint8
}

// Quirks selects between behaviours that historical interpreters disagree on.
// The zero value clips sprites at the screen edge and leaves I untouched by FX55/FX65.
type Quirks struct {
	// WrapSprites wraps sprite pixels past the right or bottom edge to the opposite side.
	WrapSprites bool
	// LoadStoreIncrementsIndex leaves I = I + X + 1 after FX55 and FX65.
	LoadStoreIncrementsIndex bool
	// ShiftReadsVY makes 8XY6 and 8XYE shift VY into VX.
	ShiftReadsVY bool
}

type Option func(*VM)

func WithQuirks(q Quirks) Option {
	return func(vm *VM) {
		vm.quirks = q
	}
}

// WithRandom replaces the byte source used by RND.
func WithRandom(random func() uint8) Option {
	return func(vm *VM) {
		vm.random = random
	}
}

func New(opts ...Option) *VM {
	vm := &VM{
		random: func() uint8 { return uint8(rand.UintN(256)) },
	}

	for _, opt := range opts {
		opt(vm)
	}

	vm.Reset()
	return vm
}

// Reset puts the machine back into its power-on state.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	vm.gfx = Framebuffer{}
	vm.drawFlag = true

	vm.stack = [StackSize]uint16{}
	vm.keypad = [KeyCount]bool{}
	vm.registers = [RegisterCount]uint8{}
	vm.memory = [MemorySize]uint8{}

	copy(vm.memory[FontStart:], chip8Font)
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", FontStart), "n", len(chip8Font))

	vm.delayTimer = 0
	vm.soundTimer = 0
}

// LoadProgram resets the machine and copies program into memory at ProgramStart.
// An oversized program is rejected before anything is touched.
func (vm *VM) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, at most %d fit", ErrRomTooLarge, len(program), MaxProgramSize)
	}

	vm.Reset()
	copy(vm.memory[ProgramStart:], program)
	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))

	return nil
}

// Step runs one fetch-decode-execute cycle. Timers are not touched; see TickTimers.
func (vm *VM) Step() (Status, error) {
	pc := vm.pc
	opcode, err := vm.fetchOpcode()
	if err != nil {
		return StatusRunning, &Fault{PC: pc, Err: err}
	}

	vm.pc += InstructionSize

	status, err := vm.executeOpcode(opcode)
	if err != nil {
		if !isUnknownOpcode(err) {
			vm.pc = pc
		}
		return StatusRunning, &Fault{PC: pc, Opcode: opcode, Err: err}
	}

	if status == StatusAwaitingInput {
		vm.pc = pc
	}

	return status, nil
}

// TickTimers decrements the delay and sound timers. Call it at 60 Hz.
func (vm *VM) TickTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

func (vm *VM) fetchOpcode() (uint16, error) {
	if int(vm.pc)+1 >= MemorySize {
		return 0, fmt.Errorf("%w: fetch at 0x%04x", ErrAddressOutOfRange, vm.pc)
	}

	hi := vm.memory[vm.pc]
	lo := vm.memory[vm.pc+1]

	return uint16(hi)<<8 | uint16(lo), nil
}

func (vm *VM) executeOpcode(opcode uint16) (Status, error) {
	instr := Decode(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", vm.pc-InstructionSize),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.String(),
		)
	}

	err := instructions[instr.Op].execute(vm, instr)
	if errors.Is(err, errAwaitingInput) {
		return StatusAwaitingInput, nil
	}

	return StatusRunning, err
}

func (vm *VM) KeyDown(key Key) {
	vm.keypad[key&0x0F] = true
}

func (vm *VM) KeyUp(key Key) {
	vm.keypad[key&0x0F] = false
}

func (vm *VM) KeyPressed(key Key) bool {
	return vm.keypad[key&0x0F]
}

// Framebuffer returns a snapshot of the screen.
func (vm *VM) Framebuffer() Framebuffer {
	return vm.gfx
}

// Redraw reports whether the screen changed since the previous call.
func (vm *VM) Redraw() bool {
	redraw := vm.drawFlag
	vm.drawFlag = false
	return redraw
}

func (vm *VM) DelayTimer() uint8 { return vm.delayTimer }
func (vm *VM) SoundTimer() uint8 { return vm.soundTimer }

// SoundActive reports whether the buzzer should sound.
func (vm *VM) SoundActive() bool { return vm.soundTimer != 0 }

func (vm *VM) PC() uint16    { return vm.pc }
func (vm *VM) Index() uint16 { return vm.index }

// Register returns V0..VF; n is taken modulo 16.
func (vm *VM) Register(n int) uint8 { return vm.registers[n&0x0F] }

// Memory returns the byte at addr; addr is taken modulo the memory size.
func (vm *VM) Memory(addr uint16) uint8 { return vm.memory[int(addr)%MemorySize] }

func (vm *VM) StackDepth() int { return int(vm.sp) }
