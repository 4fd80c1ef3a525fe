package vm

import (
	"errors"
	"fmt"
)

var (
	errAwaitingInput = errors.New("awaiting input")
)

// Op identifies a decoded instruction.
type Op uint8

const (
	OpUnknown Op = iota
	OpCLS        // 00E0
	OpRET        // 00EE
	OpJP         // 1nnn
	OpCALL       // 2nnn
	OpSEByte     // 3xkk
	OpSNEByte    // 4xkk
	OpSEReg      // 5xy0
	OpLDByte     // 6xkk
	OpADDByte    // 7xkk
	OpLDReg      // 8xy0
	OpOR         // 8xy1
	OpAND        // 8xy2
	OpXOR        // 8xy3
	OpADDReg     // 8xy4
	OpSUB        // 8xy5
	OpSHR        // 8xy6
	OpSUBN       // 8xy7
	OpSHL        // 8xyE
	OpSNEReg     // 9xy0
	OpLDI        // Annn
	OpJPV0       // Bnnn
	OpRND        // Cxkk
	OpDRW        // Dxyn
	OpSKP        // Ex9E
	OpSKNP       // ExA1
	OpLDVxDT     // Fx07
	OpLDVxK      // Fx0A
	OpLDDTVx     // Fx15
	OpLDSTVx     // Fx18
	OpADDI       // Fx1E
	OpLDF        // Fx29
	OpLDB        // Fx33
	OpStore      // Fx55
	OpLoad       // Fx65

	opCount
)

// Instruction is a fetched opcode together with its decoded Op.
// Operand accessors always read the original opcode bits.
type Instruction struct {
	Op     Op
	Opcode uint16
}

func (in Instruction) X() int      { return int(in.Opcode&0x0F00) >> 8 }
func (in Instruction) Y() int      { return int(in.Opcode&0x00F0) >> 4 }
func (in Instruction) N() uint8    { return uint8(in.Opcode & 0x000F) }
func (in Instruction) KK() uint8   { return uint8(in.Opcode & 0x00FF) }
func (in Instruction) NNN() uint16 { return in.Opcode & 0x0FFF }

func (in Instruction) String() string {
	def := instructions[in.Op]

	switch def.operands {
	case operandsNone:
		return def.syntax
	case operandsAddr:
		return fmt.Sprintf(def.syntax, in.NNN())
	case operandsX:
		return fmt.Sprintf(def.syntax, in.X())
	case operandsXKK:
		return fmt.Sprintf(def.syntax, in.X(), in.KK())
	case operandsXY:
		return fmt.Sprintf(def.syntax, in.X(), in.Y())
	case operandsXYN:
		return fmt.Sprintf(def.syntax, in.X(), in.Y(), in.N())
	default:
		return fmt.Sprintf(def.syntax, in.Opcode)
	}
}

// Decode maps an opcode to its instruction. The top nibble selects the
// family; families 0, 8, E and F need the low nibble or low byte as well.
// 5XYN and 9XYN ignore N, and 0NNN ignores its second nibble.
func Decode(opcode uint16) Instruction {
	return Instruction{Op: decodeOp(opcode), Opcode: opcode}
}

func decodeOp(opcode uint16) Op {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode & 0x00FF {
		case 0x00E0:
			return OpCLS
		case 0x00EE:
			return OpRET
		}

	case 0x1000:
		return OpJP

	case 0x2000:
		return OpCALL

	case 0x3000:
		return OpSEByte

	case 0x4000:
		return OpSNEByte

	case 0x5000:
		return OpSEReg

	case 0x6000:
		return OpLDByte

	case 0x7000:
		return OpADDByte

	case 0x8000:
		switch opcode & 0x000F {
		case 0x0000:
			return OpLDReg
		case 0x0001:
			return OpOR
		case 0x0002:
			return OpAND
		case 0x0003:
			return OpXOR
		case 0x0004:
			return OpADDReg
		case 0x0005:
			return OpSUB
		case 0x0006:
			return OpSHR
		case 0x0007:
			return OpSUBN
		case 0x000E:
			return OpSHL
		}

	case 0x9000:
		return OpSNEReg

	case 0xA000:
		return OpLDI

	case 0xB000:
		return OpJPV0

	case 0xC000:
		return OpRND

	case 0xD000:
		return OpDRW

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			return OpSKP
		case 0x00A1:
			return OpSKNP
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			return OpLDVxDT
		case 0x000A:
			return OpLDVxK
		case 0x0015:
			return OpLDDTVx
		case 0x0018:
			return OpLDSTVx
		case 0x001E:
			return OpADDI
		case 0x0029:
			return OpLDF
		case 0x0033:
			return OpLDB
		case 0x0055:
			return OpStore
		case 0x0065:
			return OpLoad
		}
	}

	return OpUnknown
}

type operandKind uint8

const (
	operandsRaw operandKind = iota
	operandsNone
	operandsAddr
	operandsX
	operandsXKK
	operandsXY
	operandsXYN
)

type instruction struct {
	syntax   string
	operands operandKind
	execute  func(vm *VM, in Instruction) error
}

// The PC already points past the instruction when execute runs.
var instructions = [opCount]instruction{
	OpUnknown: {"unknown 0x%04X", operandsRaw, execUnknown},
	OpCLS:     {"CLS", operandsNone, execCLS},
	OpRET:     {"RET", operandsNone, execRET},
	OpJP:      {"JP 0x%03X", operandsAddr, execJP},
	OpCALL:    {"CALL 0x%03X", operandsAddr, execCALL},
	OpSEByte:  {"SE V%X, 0x%02X", operandsXKK, execSEByte},
	OpSNEByte: {"SNE V%X, 0x%02X", operandsXKK, execSNEByte},
	OpSEReg:   {"SE V%X, V%X", operandsXY, execSEReg},
	OpLDByte:  {"LD V%X, 0x%02X", operandsXKK, execLDByte},
	OpADDByte: {"ADD V%X, 0x%02X", operandsXKK, execADDByte},
	OpLDReg:   {"LD V%X, V%X", operandsXY, execLDReg},
	OpOR:      {"OR V%X, V%X", operandsXY, execOR},
	OpAND:     {"AND V%X, V%X", operandsXY, execAND},
	OpXOR:     {"XOR V%X, V%X", operandsXY, execXOR},
	OpADDReg:  {"ADD V%X, V%X", operandsXY, execADDReg},
	OpSUB:     {"SUB V%X, V%X", operandsXY, execSUB},
	OpSHR:     {"SHR V%X, V%X", operandsXY, execSHR},
	OpSUBN:    {"SUBN V%X, V%X", operandsXY, execSUBN},
	OpSHL:     {"SHL V%X, V%X", operandsXY, execSHL},
	OpSNEReg:  {"SNE V%X, V%X", operandsXY, execSNEReg},
	OpLDI:     {"LD I, 0x%03X", operandsAddr, execLDI},
	OpJPV0:    {"JP V0, 0x%03X", operandsAddr, execJPV0},
	OpRND:     {"RND V%X, 0x%02X", operandsXKK, execRND},
	OpDRW:     {"DRW V%X, V%X, %d", operandsXYN, execDRW},
	OpSKP:     {"SKP V%X", operandsX, execSKP},
	OpSKNP:    {"SKNP V%X", operandsX, execSKNP},
	OpLDVxDT:  {"LD V%X, DT", operandsX, execLDVxDT},
	OpLDVxK:   {"LD V%X, K", operandsX, execLDVxK},
	OpLDDTVx:  {"LD DT, V%X", operandsX, execLDDTVx},
	OpLDSTVx:  {"LD ST, V%X", operandsX, execLDSTVx},
	OpADDI:    {"ADD I, V%X", operandsX, execADDI},
	OpLDF:     {"LD F, V%X", operandsX, execLDF},
	OpLDB:     {"LD B, V%X", operandsX, execLDB},
	OpStore:   {"LD [I], V%X", operandsX, execStore},
	OpLoad:    {"LD V%X, [I]", operandsX, execLoad},
}

func execUnknown(vm *VM, in Instruction) error {
	return fmt.Errorf("%w 0x%04X", ErrUnknownOpcode, in.Opcode)
}

func execCLS(vm *VM, in Instruction) error {
	vm.gfx = Framebuffer{}
	vm.drawFlag = true
	return nil
}

func execRET(vm *VM, in Instruction) error {
	if vm.sp == 0 {
		return ErrStackUnderflow
	}

	vm.sp--
	vm.pc = vm.stack[vm.sp]
	return nil
}

func execJP(vm *VM, in Instruction) error {
	vm.pc = in.NNN()
	return nil
}

func execCALL(vm *VM, in Instruction) error {
	if int(vm.sp) >= StackSize {
		return ErrStackOverflow
	}

	vm.stack[vm.sp] = vm.pc
	vm.sp++
	vm.pc = in.NNN()
	return nil
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

func execSEByte(vm *VM, in Instruction) error {
	vm.skipIf(vm.registers[in.X()] == in.KK())
	return nil
}

func execSNEByte(vm *VM, in Instruction) error {
	vm.skipIf(vm.registers[in.X()] != in.KK())
	return nil
}

func execSEReg(vm *VM, in Instruction) error {
	vm.skipIf(vm.registers[in.X()] == vm.registers[in.Y()])
	return nil
}

func execSNEReg(vm *VM, in Instruction) error {
	vm.skipIf(vm.registers[in.X()] != vm.registers[in.Y()])
	return nil
}

func execLDByte(vm *VM, in Instruction) error {
	vm.registers[in.X()] = in.KK()
	return nil
}

// No carry.
func execADDByte(vm *VM, in Instruction) error {
	vm.registers[in.X()] += in.KK()
	return nil
}

func execLDReg(vm *VM, in Instruction) error {
	vm.registers[in.X()] = vm.registers[in.Y()]
	return nil
}

func execOR(vm *VM, in Instruction) error {
	vm.registers[in.X()] |= vm.registers[in.Y()]
	return nil
}

func execAND(vm *VM, in Instruction) error {
	vm.registers[in.X()] &= vm.registers[in.Y()]
	return nil
}

func execXOR(vm *VM, in Instruction) error {
	vm.registers[in.X()] ^= vm.registers[in.Y()]
	return nil
}

// The arithmetic handlers write VF after VX, so VF holds the flag even when X is F.

func execADDReg(vm *VM, in Instruction) error {
	x := vm.registers[in.X()]
	y := vm.registers[in.Y()]
	sum := uint16(x) + uint16(y)

	vm.registers[in.X()] = uint8(sum)
	vm.registers[flagRegister] = boolToFlag(sum > 0xFF)
	return nil
}

func execSUB(vm *VM, in Instruction) error {
	x := vm.registers[in.X()]
	y := vm.registers[in.Y()]

	vm.registers[in.X()] = x - y
	vm.registers[flagRegister] = boolToFlag(x > y)
	return nil
}

func execSUBN(vm *VM, in Instruction) error {
	x := vm.registers[in.X()]
	y := vm.registers[in.Y()]

	vm.registers[in.X()] = y - x
	vm.registers[flagRegister] = boolToFlag(y > x)
	return nil
}

func (vm *VM) shiftSource(in Instruction) uint8 {
	if vm.quirks.ShiftReadsVY {
		return vm.registers[in.Y()]
	}
	return vm.registers[in.X()]
}

func execSHR(vm *VM, in Instruction) error {
	v := vm.shiftSource(in)

	vm.registers[in.X()] = v >> 1
	vm.registers[flagRegister] = v & 0x01
	return nil
}

func execSHL(vm *VM, in Instruction) error {
	v := vm.shiftSource(in)

	vm.registers[in.X()] = v << 1
	vm.registers[flagRegister] = (v >> 7) & 0x01
	return nil
}

func execLDI(vm *VM, in Instruction) error {
	vm.index = in.NNN()
	return nil
}

func execJPV0(vm *VM, in Instruction) error {
	vm.pc = in.NNN() + uint16(vm.registers[0])
	return nil
}

func execRND(vm *VM, in Instruction) error {
	vm.registers[in.X()] = vm.random() & in.KK()
	return nil
}

// Sprites are 8 pixels wide and n rows high, read from memory at I.
// The origin wraps onto the screen; pixels running off the right or bottom
// edge are clipped unless the WrapSprites quirk is set.
// VF is set when a lit pixel is turned off.
func execDRW(vm *VM, in Instruction) error {
	height := int(in.N())
	if err := vm.checkRange(vm.index, height); err != nil {
		return err
	}

	originX := int(vm.registers[in.X()]) % ScreenWidth
	originY := int(vm.registers[in.Y()]) % ScreenHeight

	collision := false
	for row := 0; row < height; row++ {
		y := originY + row
		if y >= ScreenHeight {
			if !vm.quirks.WrapSprites {
				break
			}
			y %= ScreenHeight
		}

		pixels := vm.memory[int(vm.index)+row]

		const width = 8
		for col := 0; col < width; col++ {
			if pixels&(0x80>>col) == 0 {
				continue
			}

			x := originX + col
			if x >= ScreenWidth {
				if !vm.quirks.WrapSprites {
					break
				}
				x %= ScreenWidth
			}

			addr := y*ScreenWidth + x
			if vm.gfx[addr] != 0 {
				collision = true
			}
			vm.gfx[addr] ^= 1
		}
	}

	vm.registers[flagRegister] = boolToFlag(collision)
	vm.drawFlag = true
	return nil
}

func execSKP(vm *VM, in Instruction) error {
	vm.skipIf(vm.KeyPressed(Key(vm.registers[in.X()])))
	return nil
}

func execSKNP(vm *VM, in Instruction) error {
	vm.skipIf(!vm.KeyPressed(Key(vm.registers[in.X()])))
	return nil
}

func execLDVxDT(vm *VM, in Instruction) error {
	vm.registers[in.X()] = vm.delayTimer
	return nil
}

// Takes the lowest pressed key. With nothing pressed the instruction is
// re-issued by the next Step instead of spinning here.
func execLDVxK(vm *VM, in Instruction) error {
	for key, pressed := range vm.keypad {
		if pressed {
			vm.registers[in.X()] = uint8(key)
			return nil
		}
	}

	return errAwaitingInput
}

func execLDDTVx(vm *VM, in Instruction) error {
	vm.delayTimer = vm.registers[in.X()]
	return nil
}

func execLDSTVx(vm *VM, in Instruction) error {
	vm.soundTimer = vm.registers[in.X()]
	return nil
}

// I is 16 bits wide here and is not masked; VF is left alone.
func execADDI(vm *VM, in Instruction) error {
	vm.index += uint16(vm.registers[in.X()])
	return nil
}

func execLDF(vm *VM, in Instruction) error {
	digit := uint16(vm.registers[in.X()] & 0x0F)
	vm.index = FontStart + fontGlyphSize*digit
	return nil
}

func execLDB(vm *VM, in Instruction) error {
	if err := vm.checkRange(vm.index, 3); err != nil {
		return err
	}

	x := vm.registers[in.X()]
	vm.memory[vm.index] = x / 100
	vm.memory[vm.index+1] = (x / 10) % 10
	vm.memory[vm.index+2] = x % 10
	return nil
}

func execStore(vm *VM, in Instruction) error {
	n := in.X()
	if err := vm.checkRange(vm.index, n+1); err != nil {
		return err
	}

	copy(vm.memory[vm.index:], vm.registers[:n+1])

	if vm.quirks.LoadStoreIncrementsIndex {
		vm.index += uint16(n + 1)
	}
	return nil
}

func execLoad(vm *VM, in Instruction) error {
	n := in.X()
	if err := vm.checkRange(vm.index, n+1); err != nil {
		return err
	}

	copy(vm.registers[:n+1], vm.memory[vm.index:])

	if vm.quirks.LoadStoreIncrementsIndex {
		vm.index += uint16(n + 1)
	}
	return nil
}

// checkRange fails unless [start, start+n) lies inside memory.
func (vm *VM) checkRange(start uint16, n int) error {
	if int(start)+n > MemorySize {
		return fmt.Errorf("%w: 0x%04x+%d", ErrAddressOutOfRange, start, n)
	}
	return nil
}

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
