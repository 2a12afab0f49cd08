package config

import (
	"fmt"

	"github.com/sarchlab/coalesce/coalescing"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/ndrange"
)

// Environment is everything the analysis of one kernel needs besides the
// kernel itself.
type Environment struct {
	Hardware coalescing.HardwareConfig
	Space    *ndrange.Space
	Warps    []*ndrange.Warp
	Args     map[*kernel.Argument]int64
}

// BuildEnvironment assembles the environment of fn from parsed
// configuration.
func BuildEnvironment(
	fn *kernel.Function,
	hw coalescing.HardwareConfig,
	nd NDRangeConfig,
	args []KernelArgs,
	o Overrides,
) (*Environment, error) {
	nd = o.Apply(nd)

	space, err := ndrange.NewSpace(nd.NDRange.LocalSize, nd.NDRange.NumberOfGroups)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	factory, err := ndrange.NewWarpFactory(space, hw.WarpSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var warps []*ndrange.Warp

	if o.FullSimulation {
		warps, err = factory.CreateAllWarpsInGroup(nd.Warp.Group)
	} else {
		var w *ndrange.Warp
		w, err = factory.CreateWarp(nd.Warp.Group, nd.Warp.WarpIndex)
		warps = []*ndrange.Warp{w}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	bound, err := BindArguments(fn, args)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Hardware: hw,
		Space:    space,
		Warps:    warps,
		Args:     bound,
	}, nil
}

// LoadEnvironment reads the configuration files and assembles the
// environment of fn.
func LoadEnvironment(fn *kernel.Function, paths Paths, o Overrides) (*Environment, error) {
	hw, err := LoadHardware(paths.Hardware)
	if err != nil {
		return nil, err
	}

	nd, err := LoadNDRange(paths.NDRange)
	if err != nil {
		return nil, err
	}

	args, err := LoadKernelArgs(paths.KernelArgs)
	if err != nil {
		return nil, err
	}

	return BuildEnvironment(fn, hw, nd, args, o)
}
