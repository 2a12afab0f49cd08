package config

import (
	"fmt"
	"io"

	"github.com/sarchlab/coalesce/coalescing"
)

// ReadHardware parses a hardware description.
func ReadHardware(r io.Reader) (coalescing.HardwareConfig, error) {
	var hw coalescing.HardwareConfig

	if err := decode(r, &hw); err != nil {
		return hw, err
	}

	if err := hw.Validate(); err != nil {
		return hw, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return hw, nil
}

// LoadHardware reads a hardware description file.
func LoadHardware(path string) (coalescing.HardwareConfig, error) {
	var hw coalescing.HardwareConfig

	if err := decodeFile(path, &hw); err != nil {
		return hw, err
	}

	if err := hw.Validate(); err != nil {
		return hw, fmt.Errorf("%s: %w: %w", path, ErrInvalidConfig, err)
	}

	return hw, nil
}
