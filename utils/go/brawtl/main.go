// SPDX-License-Identifier: GPL-2.0-or-later

// Package main is a CLI utility that builds timelapse clips from BRAW clips.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"brawtl"
)

func main() {
	err := brawtl.Run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
