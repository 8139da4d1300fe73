package cartridge

import (
	"fmt"
)

// TestROMConfig describes a synthetic iNES image. Instructions are placed
// at PRG offset 0, which the supported mappers map to $8000.
type TestROMConfig struct {
	PRGSize      uint8            // PRG ROM size in 16KB units
	CHRSize      uint8            // CHR ROM size in 8KB units (0 = CHR RAM)
	MapperID     uint8            // Mapper number
	Mirroring    MirrorMode       // Nametable mirroring
	HasBattery   bool             // Battery-backed SRAM
	HasTrainer   bool             // 512-byte trainer
	Instructions []uint8          // 6502 machine code
	InitialData  map[uint32]uint8 // Bytes at specific PRG ROM offsets
	ResetVector  uint16
	IRQVector    uint16
	NMIVector    uint16
	CHRData      []uint8 // CHR ROM initial data
}

// TestROMBuilder provides a fluent interface for building test ROMs
type TestROMBuilder struct {
	config TestROMConfig
}

// NewTestROMBuilder creates a new test ROM builder with default configuration
func NewTestROMBuilder() *TestROMBuilder {
	return &TestROMBuilder{
		config: TestROMConfig{
			PRGSize:     1,
			CHRSize:     1,
			Mirroring:   MirrorHorizontal,
			InitialData: make(map[uint32]uint8),
			ResetVector: 0x8000,
			IRQVector:   0x8000,
			NMIVector:   0x8000,
		},
	}
}

// WithPRGSize sets the PRG ROM size in 16KB units
func (b *TestROMBuilder) WithPRGSize(size uint8) *TestROMBuilder {
	b.config.PRGSize = size
	return b
}

// WithCHRSize sets the CHR ROM size in 8KB units (0 = CHR RAM)
func (b *TestROMBuilder) WithCHRSize(size uint8) *TestROMBuilder {
	b.config.CHRSize = size
	return b
}

// WithCHRRAM configures the ROM to use CHR RAM instead of CHR ROM
func (b *TestROMBuilder) WithCHRRAM() *TestROMBuilder {
	b.config.CHRSize = 0
	return b
}

func (b *TestROMBuilder) WithMapper(mapperID uint8) *TestROMBuilder {
	b.config.MapperID = mapperID
	return b
}

func (b *TestROMBuilder) WithMirroring(mirroring MirrorMode) *TestROMBuilder {
	b.config.Mirroring = mirroring
	return b
}

func (b *TestROMBuilder) WithBattery() *TestROMBuilder {
	b.config.HasBattery = true
	return b
}

func (b *TestROMBuilder) WithTrainer() *TestROMBuilder {
	b.config.HasTrainer = true
	return b
}

// WithInstructions sets the program placed at $8000.
func (b *TestROMBuilder) WithInstructions(instructions ...uint8) *TestROMBuilder {
	b.config.Instructions = append([]uint8(nil), instructions...)
	return b
}

// WithData sets bytes starting at a PRG ROM offset.
func (b *TestROMBuilder) WithData(offset uint32, data ...uint8) *TestROMBuilder {
	for i, value := range data {
		b.config.InitialData[offset+uint32(i)] = value
	}
	return b
}

func (b *TestROMBuilder) WithResetVector(address uint16) *TestROMBuilder {
	b.config.ResetVector = address
	return b
}

func (b *TestROMBuilder) WithIRQVector(address uint16) *TestROMBuilder {
	b.config.IRQVector = address
	return b
}

func (b *TestROMBuilder) WithNMIVector(address uint16) *TestROMBuilder {
	b.config.NMIVector = address
	return b
}

func (b *TestROMBuilder) WithCHRData(data ...uint8) *TestROMBuilder {
	b.config.CHRData = append([]uint8(nil), data...)
	return b
}

// Build generates the ROM data based on the current configuration
func (b *TestROMBuilder) Build() ([]byte, error) {
	return GenerateTestROM(b.config)
}

// MustBuild is Build for fixtures whose configuration is known to be valid.
func (b *TestROMBuilder) MustBuild() []byte {
	rom, err := b.Build()
	if err != nil {
		panic(err)
	}
	return rom
}

// BuildCartridge generates and loads the ROM as a cartridge
func (b *TestROMBuilder) BuildCartridge() (*Cartridge, error) {
	romData, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Load(romData)
}

// GenerateTestROM creates a ROM file based on the provided configuration
func GenerateTestROM(config TestROMConfig) ([]byte, error) {
	header, err := createINESHeader(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create iNES header: %w", err)
	}

	result := append([]byte{}, header...)

	if config.HasTrainer {
		result = append(result, make([]uint8, trainerSize)...)
	}

	prgROM, err := createPRGROM(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create PRG ROM: %w", err)
	}
	result = append(result, prgROM...)

	if config.CHRSize > 0 {
		result = append(result, createCHRROM(config)...)
	}

	return result, nil
}

func createINESHeader(config TestROMConfig) ([]byte, error) {
	if config.PRGSize == 0 {
		return nil, fmt.Errorf("PRG ROM size cannot be zero")
	}

	header := make([]byte, headerSize)
	copy(header[0:4], "NES\x1A")
	header[4] = config.PRGSize
	header[5] = config.CHRSize

	flags6 := uint8(0)
	if config.Mirroring == MirrorVertical {
		flags6 |= 0x01
	}
	if config.HasBattery {
		flags6 |= 0x02
	}
	if config.HasTrainer {
		flags6 |= 0x04
	}
	if config.Mirroring == MirrorFourScreen {
		flags6 |= 0x08
	}
	flags6 |= (config.MapperID & 0x0F) << 4
	header[6] = flags6
	header[7] = config.MapperID & 0xF0

	return header, nil
}

func createPRGROM(config TestROMConfig) ([]byte, error) {
	size := int(config.PRGSize) * prgBankSize
	prgROM := make([]byte, size)

	if len(config.Instructions) > size-6 {
		return nil, fmt.Errorf("instructions too large for PRG ROM")
	}
	copy(prgROM, config.Instructions)

	for offset, value := range config.InitialData {
		if int(offset) < size {
			prgROM[offset] = value
		}
	}

	// Vectors live at the end of the last bank.
	v := size - 6
	prgROM[v] = uint8(config.NMIVector)
	prgROM[v+1] = uint8(config.NMIVector >> 8)
	prgROM[v+2] = uint8(config.ResetVector)
	prgROM[v+3] = uint8(config.ResetVector >> 8)
	prgROM[v+4] = uint8(config.IRQVector)
	prgROM[v+5] = uint8(config.IRQVector >> 8)

	return prgROM, nil
}

func createCHRROM(config TestROMConfig) []byte {
	chrROM := make([]byte, int(config.CHRSize)*chrBankSize)
	copy(chrROM, config.CHRData)
	return chrROM
}

// NMILoopROM returns an NROM image that enables vblank NMIs and spins.
// The NMI handler increments $00, so the zero page byte counts frames.
//
//	$8000  LDA #$80      ; enable NMI
//	$8002  STA $2000
//	$8005  JMP $8005
//	$8008  INC $00       ; NMI handler
//	$800A  RTI
func NMILoopROM() []byte {
	return NewTestROMBuilder().
		WithInstructions(
			0xA9, 0x80,
			0x8D, 0x00, 0x20,
			0x4C, 0x05, 0x80,
			0xE6, 0x00,
			0x40,
		).
		WithNMIVector(0x8008).
		MustBuild()
}
