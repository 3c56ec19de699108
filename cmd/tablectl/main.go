// Command tablectl is the operator CLI: schema setup, demo data, table QR
// payloads, expiry sweeps and a kiosk-mode scan that remembers its session on
// disk.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
