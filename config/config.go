// Package config reads the configuration files of an analysis and
// assembles the environment a kernel is analyzed in.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned for configuration files that cannot be
	// parsed or hold impossible values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingKernelArguments is returned when the kernel under analysis
	// has integer parameters without configured values.
	ErrMissingKernelArguments = errors.New("missing kernel arguments")
)

// Environment variables naming the configuration files.
const (
	EnvHardwareConfig = "COALESCE_HARDWARE_CONFIG"
	EnvKernelArgs     = "COALESCE_KERNEL_ARGS"
	EnvNDRangeConfig  = "COALESCE_NDRANGE_CONFIG"
)

// Paths locates the three configuration files.
type Paths struct {
	Hardware   string
	KernelArgs string
	NDRange    string
}

// DefaultPaths returns the paths named by the environment, or the default
// file names in the working directory.
func DefaultPaths() Paths {
	return Paths{
		Hardware:   getenv(EnvHardwareConfig, "hardware_config.yaml"),
		KernelArgs: getenv(EnvKernelArgs, "kernel_arg_config.yaml"),
		NDRange:    getenv(EnvNDRangeConfig, "opencl_config.yaml"),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return def
}

// LoadDotEnv adds the variables of the given .env files to the process
// environment. Files that do not exist are skipped, and variables that are
// already set are kept.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("%s: %w: %w", f, ErrInvalidConfig, err)
		}
	}

	return nil
}

func decode(r io.Reader, out any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func decodeFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := decode(f, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}
