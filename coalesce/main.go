// Command coalesce predicts the memory coalescing behavior of data-parallel
// kernels.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/coalesce/coalesce/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
