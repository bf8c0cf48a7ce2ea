// Command efirectl controls an eFIRE Bluetooth gas fireplace.
//
// Usage:
//
//	efirectl [--config path] [--address MAC] <command> [args]
//
// The controller password is read from the EFIRE_PASSWORD environment
// variable, or prompted for when it is not set.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
