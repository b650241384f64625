// Command ajaxform submits HTML forms headlessly and serves mock form
// endpoints that reply with ajaxform envelopes.
package main

import (
	"fmt"
	"os"
)

// Set by the linker: -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
