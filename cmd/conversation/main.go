// Command conversation is a thin demo CLI around the conversation
// pipeline: it reads newline-delimited simulated transcript events,
// wires a config.Config into a running internal/engine.Engine, and
// prints downstream notifications to stdout. It is explicitly outside
// the core pipeline — wiring and demonstration only.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
