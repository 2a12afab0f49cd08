// Package coalescing turns the addresses a warp accesses into memory
// transaction and bank conflict counts.
package coalescing

import (
	"errors"
	"fmt"
)

// ErrInvalidHardware is returned for a hardware description with
// non-positive sizes.
var ErrInvalidHardware = errors.New("invalid hardware configuration")

// HardwareConfig describes the memory system of the device.
type HardwareConfig struct {
	// BankCount is the number of banks of the local memory.
	BankCount int `yaml:"local_memory_bank_number"`

	// BankWidth is the number of bytes one bank serves per cycle.
	BankWidth int `yaml:"local_memory_bank_width"`

	WarpSize      int `yaml:"warp_size"`
	CacheLineSize int `yaml:"cache_line_size"`
}

// Validate checks that every size is positive.
func (h HardwareConfig) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"local_memory_bank_number", h.BankCount},
		{"local_memory_bank_width", h.BankWidth},
		{"warp_size", h.WarpSize},
		{"cache_line_size", h.CacheLineSize},
	}

	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s is %d", ErrInvalidHardware, f.name, f.value)
		}
	}

	return nil
}
