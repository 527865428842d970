// Command corefsctl is a debug CLI over the corefs index: scan one or more
// source directories, then list or look up files against the result. It is
// not a replacement for the engine's own console bindings (external.
// ConsoleBinder) — just a way to exercise and inspect the index offline.
package main

import (
	"fmt"
	"os"

	"github.com/pakvfs/corefs/cmd/corefsctl/internal/session"
)

func main() {
	if err := session.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
