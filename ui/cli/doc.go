// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the serverbase command line with Cobra. Commands
// stay thin: they parse flags, call the registry, executor, connector or
// backup packages and print the result.
package cli
