package config

import (
	"fmt"
	"io"

	"github.com/sarchlab/coalesce/kernel"
)

// KernelArgs lists the values of the integer parameters of one kernel.
type KernelArgs struct {
	KernelName string  `yaml:"kernelName"`
	Args       []int64 `yaml:"args"`
}

// ReadKernelArgs parses a list of kernel argument entries.
func ReadKernelArgs(r io.Reader) ([]KernelArgs, error) {
	var entries []KernelArgs

	if err := decode(r, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// LoadKernelArgs reads a kernel argument file.
func LoadKernelArgs(path string) ([]KernelArgs, error) {
	var entries []KernelArgs

	if err := decodeFile(path, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// BindArguments assigns the configured values of fn to its integer
// parameters, in declaration order. Extra values are ignored. A kernel
// without integer parameters needs no entry.
func BindArguments(
	fn *kernel.Function,
	entries []KernelArgs,
) (map[*kernel.Argument]int64, error) {
	var params []*kernel.Argument

	for _, a := range fn.Arguments() {
		if a.Type() == kernel.TypeInt {
			params = append(params, a)
		}
	}

	bound := make(map[*kernel.Argument]int64, len(params))
	if len(params) == 0 {
		return bound, nil
	}

	var entry *KernelArgs

	for i := range entries {
		if entries[i].KernelName == fn.Name() {
			entry = &entries[i]
			break
		}
	}

	if entry == nil {
		return nil, fmt.Errorf("%w: no entry for kernel %s",
			ErrMissingKernelArguments, fn.Name())
	}

	if len(entry.Args) < len(params) {
		return nil, fmt.Errorf(
			"%w: kernel %s has %d integer parameters but %d values",
			ErrMissingKernelArguments, fn.Name(), len(params), len(entry.Args))
	}

	for i, p := range params {
		bound[p] = entry.Args[i]
	}

	return bound, nil
}
