package console

import (
	"errors"

	"nesframe/internal/cartridge"
)

var (
	// ErrInvalidImage is returned by LoadROM for a malformed or
	// unsupported cartridge image. No live state is changed.
	ErrInvalidImage = cartridge.ErrInvalidImage

	// ErrNotLoaded is returned when an operation needs a cartridge and
	// none is loaded.
	ErrNotLoaded = errors.New("no cartridge loaded")

	// ErrProtocolViolation is returned by Frame when the PPU does not
	// reach vertical blank within MaxDotsPerFrame dots, or the CPU reports
	// a step without cycles.
	ErrProtocolViolation = errors.New("collaborator protocol violation")

	// ErrInvalidConfig is returned for out of range configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSnapshotVersion is returned when restoring a snapshot written
	// with a different layout.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)
