// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Addressing modes
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE

	// InterruptCycles is what servicing NMI, IRQ or reset costs.
	InterruptCycles = 7
)

// Interrupt identifies a pending interrupt. Higher values win when more
// than one is requested before the next Emulate.
type Interrupt uint8

const (
	InterruptNone Interrupt = iota
	InterruptIRQ
	InterruptNMI
	InterruptReset
)

// StateVersion is the layout version of State.
const StateVersion = 1

// ErrStateVersion is returned by Restore for an unknown State layout.
var ErrStateVersion = errors.New("unsupported CPU state version")

// MemoryInterface defines the interface for CPU memory access
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CPU represents the 6502 processor used in the NES
type CPU struct {
	// Registers
	A  uint8  // Accumulator
	X  uint8  // X register
	Y  uint8  // Y register
	SP uint8  // Stack pointer
	PC uint16 // Program counter

	// Status register flags
	C bool // Carry
	Z bool // Zero
	I bool // Interrupt disable
	D bool // Decimal mode (not used in NES)
	B bool // Break
	V bool // Overflow
	N bool // Negative

	memory MemoryInterface

	cycles  uint64
	stall   int
	pending Interrupt
}

// State is a serialisable copy of the CPU registers and run state.
type State struct {
	Version int       `json:"version"`
	A       uint8     `json:"a"`
	X       uint8     `json:"x"`
	Y       uint8     `json:"y"`
	SP      uint8     `json:"sp"`
	PC      uint16    `json:"pc"`
	P       uint8     `json:"p"`
	Pending Interrupt `json:"pending"`
	Stall   int       `json:"stall"`
	Cycles  uint64    `json:"cycles"`
}

// New creates a new CPU instance. The first Emulate services a reset.
func New(memory MemoryInterface) *CPU {
	cpu := &CPU{memory: memory}
	cpu.Reset()
	return cpu
}

// Reset puts the registers in their power-up state and schedules the reset
// sequence; the vector is fetched by the next Emulate.
func (cpu *CPU) Reset() {
	cpu.A = 0x00
	cpu.X = 0x00
	cpu.Y = 0x00
	cpu.SP = 0xFD
	cpu.SetStatusByte(0x34)
	cpu.PC = 0
	cpu.cycles = 0
	cpu.stall = 0
	cpu.pending = InterruptReset
}

// Emulate services a pending interrupt or executes one instruction and
// returns the CPU cycles consumed.
func (cpu *CPU) Emulate() int {
	if cpu.pending != InterruptNone {
		if n := cpu.serviceInterrupt(); n > 0 {
			cpu.cycles += uint64(n)
			return n
		}
	}

	pc := cpu.PC
	code := cpu.memory.Read(pc)
	op := &opcodes[code]

	o := cpu.operand(op.mode)
	cycles := int(op.cycles)
	if op.pageCycle && o.crossed {
		cycles++
	}
	cycles += op.exec(cpu, o)

	if glog.V(3) {
		glog.Infof("[CPU] %04X %02X %-4s A:%02X X:%02X Y:%02X P:%02X SP:%02X +%d",
			pc, code, op.name, cpu.A, cpu.X, cpu.Y, cpu.GetStatusByte(), cpu.SP, cycles)
	}

	cpu.cycles += uint64(cycles)
	return cycles
}

func (cpu *CPU) serviceInterrupt() int {
	kind := cpu.pending
	cpu.pending = InterruptNone

	switch kind {
	case InterruptReset:
		cpu.I = true
		cpu.PC = cpu.readWord(resetVector)
	case InterruptNMI:
		cpu.interrupt(nmiVector, false)
	case InterruptIRQ:
		// A masked IRQ is dropped.
		if cpu.I {
			return 0
		}
		cpu.interrupt(irqVector, false)
	}
	return InterruptCycles
}

func (cpu *CPU) interrupt(vector uint16, brk bool) {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() | unusedMask
	if brk {
		status |= bFlagMask
	} else {
		status &^= bFlagMask
	}
	cpu.push(status)
	cpu.I = true
	cpu.PC = cpu.readWord(vector)
}

// RequestNMI schedules a non-maskable interrupt for the next Emulate.
func (cpu *CPU) RequestNMI() { cpu.request(InterruptNMI) }

// RequestIRQ schedules a maskable interrupt for the next Emulate.
func (cpu *CPU) RequestIRQ() { cpu.request(InterruptIRQ) }

func (cpu *CPU) request(kind Interrupt) {
	if kind > cpu.pending {
		cpu.pending = kind
	}
}

// Pending returns the interrupt that the next Emulate will service.
func (cpu *CPU) Pending() Interrupt { return cpu.pending }

// StallCycles returns the remaining halt budget.
func (cpu *CPU) StallCycles() int { return cpu.stall }

// SetStallCycles replaces the halt budget. Negative values clamp to zero.
func (cpu *CPU) SetStallCycles(n int) {
	if n < 0 {
		n = 0
	}
	cpu.stall = n
}

// AddStallCycles extends the halt budget, as DMA transfers do.
func (cpu *CPU) AddStallCycles(n int) {
	cpu.SetStallCycles(cpu.stall + n)
}

// Cycles returns the number of cycles executed since reset.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }

// State returns a copy of the registers and run state.
func (cpu *CPU) State() State {
	return State{
		Version: StateVersion,
		A:       cpu.A,
		X:       cpu.X,
		Y:       cpu.Y,
		SP:      cpu.SP,
		PC:      cpu.PC,
		P:       cpu.GetStatusByte(),
		Pending: cpu.pending,
		Stall:   cpu.stall,
		Cycles:  cpu.cycles,
	}
}

// Validate reports whether s can be restored.
func (s State) Validate() error {
	if s.Version != StateVersion {
		return fmt.Errorf("%w: %d", ErrStateVersion, s.Version)
	}
	if s.Pending > InterruptReset {
		return fmt.Errorf("unknown pending interrupt %d", s.Pending)
	}
	if s.Stall < 0 {
		return fmt.Errorf("negative stall count %d", s.Stall)
	}
	return nil
}

// Restore overwrites the registers and run state. Nothing is changed if s
// is invalid.
func (cpu *CPU) Restore(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	cpu.A, cpu.X, cpu.Y, cpu.SP, cpu.PC = s.A, s.X, s.Y, s.SP, s.PC
	cpu.SetStatusByte(s.P)
	cpu.pending = s.Pending
	cpu.SetStallCycles(s.Stall)
	cpu.cycles = s.Cycles
	return nil
}

// operand is the decoded effective address of the current instruction.
type operand struct {
	addr    uint16
	mode    AddressingMode
	crossed bool
}

// operand decodes the addressing mode at PC and advances PC past it.
func (cpu *CPU) operand(mode AddressingMode) operand {
	o := operand{mode: mode}

	switch mode {
	case Implied, Accumulator:
		cpu.PC++

	case Immediate:
		o.addr = cpu.PC + 1
		cpu.PC += 2

	case ZeroPage:
		o.addr = uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2

	case ZeroPageX:
		o.addr = uint16(cpu.memory.Read(cpu.PC+1) + cpu.X)
		cpu.PC += 2

	case ZeroPageY:
		o.addr = uint16(cpu.memory.Read(cpu.PC+1) + cpu.Y)
		cpu.PC += 2

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		o.addr = uint16(int32(cpu.PC) + int32(offset))
		o.crossed = (cpu.PC & pageMask) != (o.addr & pageMask)

	case Absolute:
		o.addr = cpu.readWord(cpu.PC + 1)
		cpu.PC += 3

	case AbsoluteX:
		base := cpu.readWord(cpu.PC + 1)
		o.addr = base + uint16(cpu.X)
		o.crossed = (base & pageMask) != (o.addr & pageMask)
		cpu.PC += 3

	case AbsoluteY:
		base := cpu.readWord(cpu.PC + 1)
		o.addr = base + uint16(cpu.Y)
		o.crossed = (base & pageMask) != (o.addr & pageMask)
		cpu.PC += 3

	case Indirect: // Only used by JMP
		ptr := cpu.readWord(cpu.PC + 1)
		// The high byte is fetched from the same page when ptr ends in $FF.
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr & pageMask) | ((ptr + 1) & zeroPageMask)))
		o.addr = high<<8 | low
		cpu.PC += 3

	case IndexedIndirect:
		ptr := cpu.memory.Read(cpu.PC+1) + cpu.X
		o.addr = cpu.readZeroPageWord(ptr)
		cpu.PC += 2

	case IndirectIndexed:
		base := cpu.readZeroPageWord(cpu.memory.Read(cpu.PC + 1))
		o.addr = base + uint16(cpu.Y)
		o.crossed = (base & pageMask) != (o.addr & pageMask)
		cpu.PC += 2
	}

	return o
}

func (cpu *CPU) readWord(address uint16) uint16 {
	low := uint16(cpu.memory.Read(address))
	high := uint16(cpu.memory.Read(address + 1))
	return high<<8 | low
}

func (cpu *CPU) readZeroPageWord(ptr uint8) uint16 {
	low := uint16(cpu.memory.Read(uint16(ptr)))
	high := uint16(cpu.memory.Read(uint16(ptr + 1)))
	return high<<8 | low
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return high<<8 | low
}

// setZN sets Zero and Negative flags based on value
func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = (value & nFlagMask) != 0
}

// GetStatusByte returns the status register as a byte
func (cpu *CPU) GetStatusByte() uint8 {
	status := uint8(unusedMask)
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	if cpu.B {
		status |= bFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte sets the status register from a byte
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = (status & nFlagMask) != 0
	cpu.V = (status & vFlagMask) != 0
	cpu.B = (status & bFlagMask) != 0
	cpu.D = (status & dFlagMask) != 0
	cpu.I = (status & iFlagMask) != 0
	cpu.Z = (status & zFlagMask) != 0
	cpu.C = (status & cFlagMask) != 0
}
