// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// imulink - IMU Serial Link Tool
//
// A CLI tool for computing and verifying the CRC-16 that protects IMU serial
// frames, and for polling, logging and simulating the IMU itself.

package main

import (
	"os"

	"github.com/Thermoquad/imulink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
