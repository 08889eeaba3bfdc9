// Command tubesim builds and inspects vacuum-tube circuits: it exports SPICE
// netlists, dumps equation systems, solves operating points and traces
// triode plate curves.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
