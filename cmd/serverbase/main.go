// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Command serverbase is the installable entry point of the Serverbase CLI:
//
//	go install github.com/toeirei/serverbase/cmd/serverbase@latest
package main

import (
	"os"

	"github.com/toeirei/serverbase/ui/cli"
)

func main() {
	// Cobra already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
