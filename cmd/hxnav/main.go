// Command hxnav drives a server-rendered CMMS from the terminal and runs
// the demo backend.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
