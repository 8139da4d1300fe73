package console

import (
	"encoding/json"
	"errors"
	"fmt"

	"nesframe/internal/cartridge"
	"nesframe/internal/cpu"
	"nesframe/internal/ppu"
)

// SnapshotVersion is the layout version written by Snapshot.
const SnapshotVersion = 1

// Snapshot is a point in time copy of a console. It holds the cartridge
// image so it can be restored into any console. APU state is not included;
// audio restarts from silence after a restore.
type Snapshot struct {
	Version int             `json:"version"`
	ROM     []byte          `json:"rom"`
	CPU     CPUSnapshot     `json:"cpu"`
	Mapper  cartridge.State `json:"mapper"`
	PPU     ppu.State       `json:"ppu"`
}

// CPUSnapshot is the processor with its 2KB of work RAM.
type CPUSnapshot struct {
	Registers cpu.State `json:"registers"`
	RAM       []byte    `json:"ram"`
}

// Snapshot captures the current state. The result shares no memory with
// the console.
func (c *Console) Snapshot() (*Snapshot, error) {
	if c.mapper == nil {
		return nil, fmt.Errorf("snapshot: %w", ErrNotLoaded)
	}
	return &Snapshot{
		Version: SnapshotVersion,
		ROM:     append([]byte(nil), c.rom...),
		CPU: CPUSnapshot{
			Registers: c.cpu.State(),
			RAM:       c.bus.RAM(),
		},
		Mapper: c.mapper.State().Clone(),
		PPU:    c.ppu.State(),
	}, nil
}

// Restore reloads the snapshot's cartridge, which resets the console, and
// then applies the saved CPU, mapper and PPU state. Every part is checked
// before the console is touched, so on error nothing is changed.
func (c *Console) Restore(s *Snapshot) error {
	if s == nil {
		return errors.New("restore: nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return fmt.Errorf("restore: %w: %d", ErrSnapshotVersion, s.Version)
	}

	mapper, err := newMapper(s.ROM)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	mapper.LoadROM()
	if err := mapper.Restore(s.Mapper.Clone()); err != nil {
		return fmt.Errorf("restore mapper: %w", err)
	}
	if err := s.CPU.Registers.Validate(); err != nil {
		return fmt.Errorf("restore CPU: %w", err)
	}
	if want := len(c.bus.RAM()); len(s.CPU.RAM) != want {
		return fmt.Errorf("restore RAM: work RAM is %d bytes, want %d", len(s.CPU.RAM), want)
	}
	if err := s.PPU.Validate(); err != nil {
		return fmt.Errorf("restore PPU: %w", err)
	}

	c.insert(mapper, s.ROM)
	if err := c.cpu.Restore(s.CPU.Registers); err != nil {
		return fmt.Errorf("restore CPU: %w", err)
	}
	if err := c.bus.LoadRAM(s.CPU.RAM); err != nil {
		return fmt.Errorf("restore RAM: %w", err)
	}
	if err := c.ppu.Restore(s.PPU); err != nil {
		return fmt.Errorf("restore PPU: %w", err)
	}
	return nil
}

// ToJSON encodes a snapshot of the console.
func (c *Console) ToJSON() ([]byte, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// FromJSON decodes a snapshot written by ToJSON and restores it.
func (c *Console) FromJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return c.Restore(&s)
}
