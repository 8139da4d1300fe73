package cartridge

// Mapper000 implements NROM (mapper 0)
// NROM is the simplest mapper with no bank switching capabilities.
// It supports:
// - 16KB or 32KB PRG ROM (16KB is mirrored to fill 32KB address space)
// - 8KB CHR ROM or CHR RAM
// - 8KB PRG RAM (SRAM) at 0x6000-0x7FFF
type Mapper000 struct {
	board
}

func (m *Mapper000) Name() string { return "NROM" }

// ReadPRG reads from PRG ROM/RAM
// Memory map:
// 0x6000-0x7FFF: 8KB PRG RAM (SRAM)
// 0x8000-0xFFFF: 32KB PRG ROM space
func (m *Mapper000) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		return m.readPRGBank(int(address-0x8000)/prgBankSize, address)
	case address >= 0x6000:
		return m.readSRAM(address)
	}
	return 0
}

// WritePRG writes to PRG RAM; writes to ROM are ignored.
func (m *Mapper000) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.writeSRAM(address, value)
	}
}

func (m *Mapper000) ReadCHR(address uint16) uint8 {
	return m.readCHRBank(0, address)
}

func (m *Mapper000) WriteCHR(address uint16, value uint8) {
	m.writeCHRRAM(address&0x1FFF, value)
}

func (m *Mapper000) LoadROM() {}

func (m *Mapper000) Reset() {}

func (m *Mapper000) State() State { return m.state(0, 0, 0) }

func (m *Mapper000) Restore(s State) error { return m.restore(0, s, 1, 1) }
