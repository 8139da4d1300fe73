package cartridge

// Mapper003 implements CNROM: fixed PRG like NROM, with a write to
// $8000-$FFFF selecting the 8KB CHR bank.
type Mapper003 struct {
	board
	chrBank int
}

func (m *Mapper003) Name() string { return "CNROM" }

func (m *Mapper003) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		return m.readPRGBank(int(address-0x8000)/prgBankSize, address)
	case address >= 0x6000:
		return m.readSRAM(address)
	}
	return 0
}

func (m *Mapper003) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x8000:
		m.chrBank = int(value&0x03) % m.cart.CHRBanks()
	case address >= 0x6000:
		m.writeSRAM(address, value)
	}
}

func (m *Mapper003) ReadCHR(address uint16) uint8 {
	return m.readCHRBank(m.chrBank, address)
}

// WriteCHR only lands when the image declared CHR RAM.
func (m *Mapper003) WriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM {
		m.writeCHRRAM(address&0x1FFF, value)
	}
}

func (m *Mapper003) LoadROM() { m.chrBank = 0 }

func (m *Mapper003) Reset() { m.chrBank = 0 }

func (m *Mapper003) State() State { return m.state(3, 0, m.chrBank) }

func (m *Mapper003) Restore(s State) error {
	if err := m.restore(3, s, 1, m.cart.CHRBanks()); err != nil {
		return err
	}
	m.chrBank = s.CHRBank
	return nil
}
