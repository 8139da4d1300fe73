package memory

import (
	"fmt"

	"nesframe/internal/cartridge"
)

const (
	vramSize    = 0x1000
	paletteSize = 32
)

// NametableRAMSize and PaletteRAMSize are the lengths Load accepts.
const (
	NametableRAMSize = vramSize
	PaletteRAMSize   = paletteSize
)

// PPUMemory is the PPU's 14-bit address space: pattern tables through the
// mapper, nametables in console VRAM and palette RAM.
type PPUMemory struct {
	vram       [vramSize]uint8 // room for four-screen boards
	paletteRAM [paletteSize]uint8
	cartridge  CartridgeInterface
	mirroring  cartridge.MirrorMode
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(cart CartridgeInterface, mirroring cartridge.MirrorMode) *PPUMemory {
	mem := &PPUMemory{
		cartridge: cart,
		mirroring: mirroring,
	}
	mem.Reset()
	return mem
}

// Reset clears nametables and loads the default palette.
func (pm *PPUMemory) Reset() {
	pm.vram = [vramSize]uint8{}
	pm.paletteRAM = [paletteSize]uint8{}
	// Background colour entries start black.
	for i := 0; i < paletteSize; i += 4 {
		pm.paletteRAM[i] = 0x0F
	}
}

// SetCartridge attaches the mapper that serves the pattern tables.
func (pm *PPUMemory) SetCartridge(cart CartridgeInterface) {
	pm.cartridge = cart
}

// SetMirroring selects how the four logical nametables map onto VRAM.
func (pm *PPUMemory) SetMirroring(mode cartridge.MirrorMode) {
	pm.mirroring = mode
}

// Mirroring returns the current nametable arrangement.
func (pm *PPUMemory) Mirroring() cartridge.MirrorMode {
	return pm.mirroring
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		if pm.cartridge == nil {
			return 0
		}
		return pm.cartridge.ReadCHR(address)
	case address < 0x3F00:
		// $3000-$3EFF mirrors $2000-$2EFF
		return pm.vram[pm.nametableIndex(address)]
	default:
		return pm.paletteRAM[paletteIndex(address)]
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		if pm.cartridge != nil {
			pm.cartridge.WriteCHR(address, value)
		}
	case address < 0x3F00:
		pm.vram[pm.nametableIndex(address)] = value
	default:
		pm.paletteRAM[paletteIndex(address)] = value
	}
}

// nametableIndex calculates the actual VRAM index based on mirroring mode
func (pm *PPUMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	nametable := address >> 10
	offset := address & 0x3FF

	switch pm.mirroring {
	case cartridge.MirrorHorizontal:
		// $2000/$2400 share the first 1KB, $2800/$2C00 the second
		return (nametable>>1)*0x400 + offset
	case cartridge.MirrorVertical:
		// $2000/$2800 share the first 1KB, $2400/$2C00 the second
		return (nametable&1)*0x400 + offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		return nametable*0x400 + offset
	default:
		return offset
	}
}

// paletteIndex folds the palette mirrors; $3F10/$14/$18/$1C alias the
// background entries.
func paletteIndex(address uint16) uint16 {
	index := address & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return index
}

// Nametables returns a copy of VRAM.
func (pm *PPUMemory) Nametables() []uint8 {
	return append([]uint8(nil), pm.vram[:]...)
}

// Palette returns a copy of palette RAM.
func (pm *PPUMemory) Palette() []uint8 {
	return append([]uint8(nil), pm.paletteRAM[:]...)
}

// Load overwrites VRAM and palette RAM.
func (pm *PPUMemory) Load(nametables, palette []uint8) error {
	if len(nametables) != vramSize || len(palette) != paletteSize {
		return fmt.Errorf("PPU memory wants %d+%d bytes, got %d+%d",
			vramSize, paletteSize, len(nametables), len(palette))
	}
	copy(pm.vram[:], nametables)
	copy(pm.paletteRAM[:], palette)
	return nil
}
