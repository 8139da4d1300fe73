package cartridge

// Mapper002 implements UxROM. A write anywhere in $8000-$FFFF selects the
// 16KB bank at $8000; the last bank is fixed at $C000.
type Mapper002 struct {
	board
	prgBank int
}

func (m *Mapper002) Name() string { return "UxROM" }

func (m *Mapper002) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0xC000:
		return m.readPRGBank(m.cart.PRGBanks()-1, address)
	case address >= 0x8000:
		return m.readPRGBank(m.prgBank, address)
	case address >= 0x6000:
		return m.readSRAM(address)
	}
	return 0
}

func (m *Mapper002) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x8000:
		m.prgBank = int(value) % m.cart.PRGBanks()
	case address >= 0x6000:
		m.writeSRAM(address, value)
	}
}

func (m *Mapper002) ReadCHR(address uint16) uint8 {
	return m.readCHRBank(0, address)
}

func (m *Mapper002) WriteCHR(address uint16, value uint8) {
	m.writeCHRRAM(address&0x1FFF, value)
}

func (m *Mapper002) LoadROM() { m.prgBank = 0 }

func (m *Mapper002) Reset() { m.prgBank = 0 }

func (m *Mapper002) State() State { return m.state(2, m.prgBank, 0) }

func (m *Mapper002) Restore(s State) error {
	if err := m.restore(2, s, m.cart.PRGBanks(), 1); err != nil {
		return err
	}
	m.prgBank = s.PRGBank
	return nil
}
