package config

import (
	"io"
)

// NDRangeConfig describes the index space of a launch and the warp to
// simulate.
type NDRangeConfig struct {
	NDRange RangeConfig   `yaml:"ndRange"`
	Warp    WarpSelection `yaml:"warp"`
}

// RangeConfig is the geometry of the index space.
type RangeConfig struct {
	LocalSize      [3]int `yaml:"localSize"`
	NumberOfGroups [3]int `yaml:"numberOfGroups"`
}

// WarpSelection names one warp of the index space.
type WarpSelection struct {
	Group     [3]int `yaml:"group"`
	WarpIndex int    `yaml:"warpIndex"`
}

// ReadNDRange parses an index space description.
func ReadNDRange(r io.Reader) (NDRangeConfig, error) {
	var c NDRangeConfig
	err := decode(r, &c)

	return c, err
}

// LoadNDRange reads an index space description file.
func LoadNDRange(path string) (NDRangeConfig, error) {
	var c NDRangeConfig
	err := decodeFile(path, &c)

	return c, err
}

// Overrides replace values of the configuration files. A zero size keeps
// the configured one.
type Overrides struct {
	LocalSize      [3]int
	NumberOfGroups [3]int

	// FullSimulation simulates every warp of the selected work-group
	// instead of the selected warp only.
	FullSimulation bool
}

// Apply returns c with the overrides applied.
func (o Overrides) Apply(c NDRangeConfig) NDRangeConfig {
	for axis := 0; axis < 3; axis++ {
		if o.LocalSize[axis] != 0 {
			c.NDRange.LocalSize[axis] = o.LocalSize[axis]
		}

		if o.NumberOfGroups[axis] != 0 {
			c.NDRange.NumberOfGroups[axis] = o.NumberOfGroups[axis]
		}
	}

	return c
}
