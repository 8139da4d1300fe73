package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
)

// stateFileVersion is the layout of the save file wrapper. The console
// snapshot inside it carries its own version.
const stateFileVersion = "nesframe-state-1"

var (
	ErrInvalidSlot   = errors.New("invalid save slot")
	ErrNoSaveState   = errors.New("save state not found")
	ErrStateMismatch = errors.New("save state belongs to a different ROM")
)

// Snapshotter is the part of a console a save state is taken from and
// restored into.
type Snapshotter interface {
	ToJSON() ([]byte, error)
	FromJSON(data []byte) error
}

// StateManager stores console snapshots in numbered slots per ROM.
type StateManager struct {
	saveDirectory string
	maxSlots      int

	romName     string
	romChecksum string
}

// SaveState is a save file: identification plus the console snapshot.
type SaveState struct {
	Version     string          `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	ROMName     string          `json:"rom_name"`
	ROMChecksum string          `json:"rom_checksum"`
	SlotNumber  int             `json:"slot_number"`
	Description string          `json:"description"`
	Console     json.RawMessage `json:"console"`
}

// StateSlotInfo contains information about a save state slot
type StateSlotInfo struct {
	SlotNumber  int       `json:"slot_number"`
	Used        bool      `json:"used"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

// NewStateManager creates the save directory if needed.
func NewStateManager(saveDirectory string, maxSlots int) (*StateManager, error) {
	if maxSlots <= 0 {
		maxSlots = 10
	}
	if err := os.MkdirAll(saveDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create save directory: %w", err)
	}
	return &StateManager{saveDirectory: saveDirectory, maxSlots: maxSlots}, nil
}

// ROMChecksum identifies a ROM image for save state matching.
func ROMChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SetROM selects the ROM whose slots are used from now on.
func (sm *StateManager) SetROM(path string, data []byte) {
	name := filepath.Base(path)
	sm.romName = strings.TrimSuffix(name, filepath.Ext(name))
	sm.romChecksum = ROMChecksum(data)
}

// SaveState writes the console's state to a slot, replacing what was there.
func (sm *StateManager) SaveState(src Snapshotter, slot int) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	state, err := sm.capture(src, slot, "Slot")
	if err != nil {
		return err
	}
	path := sm.slotPath(slot)
	if err := writeStateFile(state, path); err != nil {
		return err
	}
	glog.Infof("[STATE] saved slot %d to %s", slot, path)
	return nil
}

// LoadState restores the console from a slot.
func (sm *StateManager) LoadState(dst Snapshotter, slot int) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	path := sm.slotPath(slot)
	state, err := readStateFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("slot %d: %w", slot, ErrNoSaveState)
	}
	if err != nil {
		return err
	}
	if err := sm.restore(dst, state); err != nil {
		return fmt.Errorf("slot %d: %w", slot, err)
	}
	glog.Infof("[STATE] loaded slot %d", slot)
	return nil
}

// DeleteState deletes a save state from a slot
func (sm *StateManager) DeleteState(slot int) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	err := os.Remove(sm.slotPath(slot))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("slot %d: %w", slot, ErrNoSaveState)
	}
	return err
}

// HasSaveState checks if a save state exists in a slot
func (sm *StateManager) HasSaveState(slot int) bool {
	if sm.checkSlot(slot) != nil {
		return false
	}
	_, err := os.Stat(sm.slotPath(slot))
	return err == nil
}

// GetSlotInfo returns information about all save slots
func (sm *StateManager) GetSlotInfo() []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)
	for i := range slots {
		slots[i].SlotNumber = i

		path := sm.slotPath(i)
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		slots[i].Used = true
		slots[i].FilePath = path
		slots[i].FileSize = stat.Size()
		slots[i].Timestamp = stat.ModTime()
		if state, err := readStateFile(path); err == nil {
			slots[i].Description = state.Description
			slots[i].Timestamp = state.Timestamp
		}
	}
	return slots
}

// ExportState writes the console's state to an arbitrary file.
func (sm *StateManager) ExportState(src Snapshotter, path string) error {
	state, err := sm.capture(src, -1, "Export")
	if err != nil {
		return err
	}
	return writeStateFile(state, path)
}

// ImportState restores the console from a file written by ExportState.
func (sm *StateManager) ImportState(dst Snapshotter, path string) error {
	state, err := readStateFile(path)
	if err != nil {
		return fmt.Errorf("import state: %w", err)
	}
	if err := sm.restore(dst, state); err != nil {
		return fmt.Errorf("import state: %w", err)
	}
	return nil
}

// GetMaxSlots returns the maximum number of save slots
func (sm *StateManager) GetMaxSlots() int {
	return sm.maxSlots
}

// GetSaveDirectory returns the save directory path
func (sm *StateManager) GetSaveDirectory() string {
	return sm.saveDirectory
}

func (sm *StateManager) checkSlot(slot int) error {
	if sm.romName == "" {
		return errors.New("no ROM selected for save states")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidSlot, slot, sm.maxSlots-1)
	}
	return nil
}

func (sm *StateManager) capture(src Snapshotter, slot int, kind string) (*SaveState, error) {
	data, err := src.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("capture state: %w", err)
	}
	now := time.Now()
	return &SaveState{
		Version:     stateFileVersion,
		Timestamp:   now,
		ROMName:     sm.romName,
		ROMChecksum: sm.romChecksum,
		SlotNumber:  slot,
		Description: fmt.Sprintf("%s %s", kind, now.Format("2006-01-02 15:04:05")),
		Console:     data,
	}, nil
}

func (sm *StateManager) restore(dst Snapshotter, state *SaveState) error {
	if state.Version != stateFileVersion {
		return fmt.Errorf("unsupported save state version %q", state.Version)
	}
	if sm.romChecksum != "" && state.ROMChecksum != sm.romChecksum {
		return fmt.Errorf("%w: %s", ErrStateMismatch, state.ROMName)
	}
	return dst.FromJSON(state.Console)
}

func (sm *StateManager) slotPath(slot int) string {
	return filepath.Join(sm.saveDirectory, fmt.Sprintf("%s_slot_%d.save", sm.romName, slot))
}

func writeStateFile(state *SaveState, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func readStateFile(path string) (*SaveState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return &state, nil
}
