// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dipwatch - DIP switch monitor and LED controller
//
// Serves eight DIP switches and eight LEDs to a single WebSocket client,
// and provides client commands for the same endpoint.

package main

import (
	"os"

	"github.com/Thermoquad/dipwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
