package cartridge

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// StateVersion is the layout version of State.
const StateVersion = 1

// ErrStateMismatch is returned when a State does not belong to the mapper
// it is being restored into.
var ErrStateMismatch = errors.New("mapper state mismatch")

// Mapper interface for different cartridge mappers
type Mapper interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)

	// Mirroring returns the current nametable arrangement.
	Mirroring() MirrorMode
	// Name is a short human readable board name.
	Name() string

	// LoadROM sets up the power-on bank layout for a freshly loaded image.
	LoadROM()
	// Reset returns the bank registers to their power-on values. PRG RAM
	// is kept.
	Reset()

	State() State
	Restore(s State) error
}

// State is the serialisable part of a mapper. ROM contents are not part
// of it; they are reloaded from the image.
type State struct {
	Version  int     `json:"version"`
	MapperID uint8   `json:"mapper_id"`
	PRGBank  int     `json:"prg_bank"`
	CHRBank  int     `json:"chr_bank"`
	SRAM     []uint8 `json:"sram"`
	CHRRAM   []uint8 `json:"chr_ram,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.SRAM = append([]uint8(nil), s.SRAM...)
	if s.CHRRAM != nil {
		c.CHRRAM = append([]uint8(nil), s.CHRRAM...)
	}
	return c
}

// Supported reports whether a mapper number can be constructed.
func Supported(id uint8) bool {
	switch id {
	case 0, 2, 3:
		return true
	}
	return false
}

// NewMapper builds the mapper for cart. Each call returns a fresh mapper
// with its own PRG RAM and a private copy of any CHR RAM.
func NewMapper(cart *Cartridge) (Mapper, error) {
	base := newBoard(cart)
	var m Mapper
	switch cart.mapperID {
	case 0:
		m = &Mapper000{board: base}
	case 2:
		m = &Mapper002{board: base}
	case 3:
		m = &Mapper003{board: base}
	default:
		return nil, fmt.Errorf("%w: unsupported mapper %d", ErrInvalidImage, cart.mapperID)
	}
	glog.V(2).Infof("[MAPPER] %s: %d PRG banks, %d CHR banks, %s mirroring",
		m.Name(), cart.PRGBanks(), cart.CHRBanks(), cart.mirror)
	return m, nil
}

// board holds what every supported mapper shares: the ROM, 8KB of PRG RAM
// at $6000-$7FFF and fixed mirroring.
type board struct {
	cart   *Cartridge
	prg    []uint8
	chr    []uint8
	sram   [sramSize]uint8
	mirror MirrorMode
}

func newBoard(cart *Cartridge) board {
	b := board{cart: cart, prg: cart.prgROM, chr: cart.chrROM, mirror: cart.mirror}
	if cart.hasCHRRAM {
		b.chr = make([]uint8, len(cart.chrROM))
		copy(b.chr, cart.chrROM)
	}
	return b
}

func (b *board) Mirroring() MirrorMode { return b.mirror }

func (b *board) readSRAM(address uint16) uint8 {
	return b.sram[address-0x6000]
}

func (b *board) writeSRAM(address uint16, value uint8) {
	b.sram[address-0x6000] = value
}

// readPRGBank reads from a 16KB bank; banks wrap around the ROM size.
func (b *board) readPRGBank(bank int, offset uint16) uint8 {
	banks := len(b.prg) / prgBankSize
	if banks == 0 {
		return 0
	}
	bank %= banks
	return b.prg[bank*prgBankSize+int(offset&0x3FFF)]
}

func (b *board) readCHRBank(bank int, address uint16) uint8 {
	banks := len(b.chr) / chrBankSize
	if banks == 0 {
		return 0
	}
	bank %= banks
	return b.chr[bank*chrBankSize+int(address&0x1FFF)]
}

func (b *board) writeCHRRAM(address uint16, value uint8) {
	if b.cart.hasCHRRAM && int(address) < len(b.chr) {
		b.chr[address] = value
	}
}

func (b *board) state(id uint8, prgBank, chrBank int) State {
	s := State{
		Version:  StateVersion,
		MapperID: id,
		PRGBank:  prgBank,
		CHRBank:  chrBank,
		SRAM:     append([]uint8(nil), b.sram[:]...),
	}
	if b.cart.hasCHRRAM {
		s.CHRRAM = append([]uint8(nil), b.chr...)
	}
	return s
}

// check reports whether s fits this board without changing anything.
// Bank numbers must address a bank the image actually has.
func (b *board) check(id uint8, s State, prgBanks, chrBanks int) error {
	if s.Version != StateVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrStateMismatch, s.Version, StateVersion)
	}
	if s.MapperID != id {
		return fmt.Errorf("%w: state is for mapper %d, loaded mapper is %d", ErrStateMismatch, s.MapperID, id)
	}
	if s.PRGBank < 0 || s.PRGBank >= prgBanks {
		return fmt.Errorf("%w: PRG bank %d of %d", ErrStateMismatch, s.PRGBank, prgBanks)
	}
	if s.CHRBank < 0 || s.CHRBank >= chrBanks {
		return fmt.Errorf("%w: CHR bank %d of %d", ErrStateMismatch, s.CHRBank, chrBanks)
	}
	if len(s.SRAM) != sramSize {
		return fmt.Errorf("%w: PRG RAM is %d bytes", ErrStateMismatch, len(s.SRAM))
	}
	if b.cart.hasCHRRAM && len(s.CHRRAM) != len(b.chr) {
		return fmt.Errorf("%w: CHR RAM is %d bytes", ErrStateMismatch, len(s.CHRRAM))
	}
	return nil
}

func (b *board) restore(id uint8, s State, prgBanks, chrBanks int) error {
	if err := b.check(id, s, prgBanks, chrBanks); err != nil {
		return err
	}
	copy(b.sram[:], s.SRAM)
	if b.cart.hasCHRRAM {
		copy(b.chr, s.CHRRAM)
	}
	return nil
}
