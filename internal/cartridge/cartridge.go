// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidImage is returned for any image that cannot be loaded: a bad
// magic number, a truncated body, an empty PRG ROM or an unsupported mapper.
var ErrInvalidImage = errors.New("invalid iNES image")

const (
	headerSize  = 16
	trainerSize = 512
	prgBankSize = 0x4000
	chrBankSize = 0x2000
	sramSize    = 0x2000
)

// Cartridge represents a NES cartridge
type Cartridge struct {
	// ROM data
	prgROM []uint8
	chrROM []uint8

	mapperID uint8
	mirror   MirrorMode

	hasBattery bool

	// CHR memory type
	hasCHRRAM bool
}

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleScreen0:
		return "single-screen 0"
	case MirrorSingleScreen1:
		return "single-screen 1"
	case MirrorFourScreen:
		return "four-screen"
	}
	return fmt.Sprintf("MirrorMode(%d)", uint8(m))
}

// iNES header structure
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // in 16KB units
	CHRROMSize uint8 // in 8KB units
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// Load parses an in-memory iNES image. The returned cartridge owns copies
// of the PRG and CHR data; data itself is not retained.
func Load(data []byte) (*Cartridge, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromFile loads a cartridge from an iNES file
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader loads a cartridge from an io.Reader
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrInvalidImage, err)
	}

	if string(header.Magic[:]) != "NES\x1A" {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidImage, header.Magic[:])
	}

	if header.PRGROMSize == 0 {
		return nil, fmt.Errorf("%w: PRG ROM size cannot be zero", ErrInvalidImage)
	}

	cart := &Cartridge{
		mapperID:   (header.Flags6 >> 4) | (header.Flags7 & 0xF0),
		hasBattery: (header.Flags6 & 0x02) != 0,
	}

	if !Supported(cart.mapperID) {
		return nil, fmt.Errorf("%w: unsupported mapper %d", ErrInvalidImage, cart.mapperID)
	}

	if (header.Flags6 & 0x08) != 0 {
		cart.mirror = MirrorFourScreen
	} else if (header.Flags6 & 0x01) != 0 {
		cart.mirror = MirrorVertical
	} else {
		cart.mirror = MirrorHorizontal
	}

	// Skip trainer if present
	if (header.Flags6 & 0x04) != 0 {
		if _, err := io.CopyN(io.Discard, r, trainerSize); err != nil {
			return nil, fmt.Errorf("%w: truncated trainer: %v", ErrInvalidImage, err)
		}
	}

	cart.prgROM = make([]uint8, int(header.PRGROMSize)*prgBankSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, fmt.Errorf("%w: truncated PRG ROM: %v", ErrInvalidImage, err)
	}

	if chrSize := int(header.CHRROMSize) * chrBankSize; chrSize > 0 {
		cart.chrROM = make([]uint8, chrSize)
		if _, err := io.ReadFull(r, cart.chrROM); err != nil {
			return nil, fmt.Errorf("%w: truncated CHR ROM: %v", ErrInvalidImage, err)
		}
	} else {
		cart.chrROM = make([]uint8, chrBankSize)
		cart.hasCHRRAM = true
	}

	return cart, nil
}

// MapperID returns the iNES mapper number.
func (c *Cartridge) MapperID() uint8 { return c.mapperID }

// GetMirrorMode returns the cartridge's mirroring mode
func (c *Cartridge) GetMirrorMode() MirrorMode {
	return c.mirror
}

// HasBattery reports whether PRG RAM is battery backed.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// HasCHRRAM reports whether the pattern tables are writable RAM.
func (c *Cartridge) HasCHRRAM() bool { return c.hasCHRRAM }

// PRGBanks returns the number of 16KB PRG banks.
func (c *Cartridge) PRGBanks() int { return len(c.prgROM) / prgBankSize }

// CHRBanks returns the number of 8KB CHR banks.
func (c *Cartridge) CHRBanks() int { return len(c.chrROM) / chrBankSize }
