// Package memory implements the CPU and PPU address spaces of the NES.
package memory

import (
	"fmt"

	"github.com/golang/glog"
)

const (
	ramSize = 0x800

	// OAMDMACycles is how long the CPU is halted by a $4014 write; one more
	// cycle is added when the write lands on an odd CPU cycle.
	OAMDMACycles = 513
)

// Memory represents the NES memory map
type Memory struct {
	// Internal RAM (2KB, mirrored to 8KB)
	ram [ramSize]uint8

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	// staller receives the CPU halt produced by OAM DMA.
	staller Staller

	// Open bus - last value read from bus (for unmapped areas)
	openBusValue uint8
}

// PPUInterface defines the interface for PPU register access
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for input system access
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface for cartridge access
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// Staller is the part of the CPU that DMA needs.
type Staller interface {
	AddStallCycles(n int)
	Cycles() uint64
}

// New creates a new Memory instance. cart may be nil until a ROM is loaded.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	mem := &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
	mem.Reset()
	return mem
}

// SetInputSystem sets the input system for controller access
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetCartridge attaches the mapper that serves $6000-$FFFF.
func (m *Memory) SetCartridge(cart CartridgeInterface) {
	m.cartridge = cart
}

// SetStaller sets where OAM DMA reports the CPU halt.
func (m *Memory) SetStaller(s Staller) {
	m.staller = s
}

// Reset fills work RAM with the power-up pattern. The attached cartridge
// is kept.
func (m *Memory) Reset() {
	for i := range m.ram {
		m.ram[i] = 0xFF
	}
	m.ram[0x008] = 0xF7
	m.ram[0x009] = 0xEF
	m.ram[0x00A] = 0xDF
	m.ram[0x00F] = 0xBF
	m.openBusValue = 0
}

// RAM returns a copy of the 2KB work RAM.
func (m *Memory) RAM() []uint8 {
	return append([]uint8(nil), m.ram[:]...)
}

// LoadRAM overwrites work RAM.
func (m *Memory) LoadRAM(data []uint8) error {
	if len(data) != ramSize {
		return fmt.Errorf("work RAM is %d bytes, got %d", ramSize, len(data))
	}
	copy(m.ram[:], data)
	return nil
}

// Read reads a byte from the given address
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		// PPU registers (mirrored every 8 bytes)
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4015:
			value = m.apuRegisters.ReadStatus()
		case 0x4016, 0x4017:
			if m.inputSystem != nil {
				value = m.inputSystem.Read(address) | (m.openBusValue & 0xE0)
			} else {
				value = m.openBusValue
			}
		default:
			// Other APU/I/O registers are write-only
			value = m.openBusValue
		}

	case address < 0x6000:
		// Cartridge expansion area, unmapped
		value = m.openBusValue

	default:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}
	}

	m.openBusValue = value
	return value
}

// Write writes a byte to the given address
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			m.performOAMDMA(value)
		case address == 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		case address <= 0x4013, address == 0x4015, address == 0x4017:
			m.apuRegisters.WriteRegister(address, value)
		default:
			// Test mode registers ($4018-$401F) are ignored
			glog.V(2).Infof("[MEMORY] ignored write $%02X to $%04X", value, address)
		}

	case address < 0x6000:
		// Cartridge expansion area, unmapped

	default:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
}

// performOAMDMA copies a 256-byte CPU page into OAM and halts the CPU.
func (m *Memory) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppuRegisters.WriteRegister(0x2004, m.Read(base+i))
	}

	if m.staller != nil {
		cycles := OAMDMACycles
		if m.staller.Cycles()%2 == 1 {
			cycles++
		}
		m.staller.AddStallCycles(cycles)
	}
}
