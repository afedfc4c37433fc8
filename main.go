// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Serverbase.
//
// Usage:
//
//	go run . [flags]
//	./serverbase [flags]
//
// See --help for options.
package main

import (
	"os"

	"github.com/toeirei/serverbase/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
