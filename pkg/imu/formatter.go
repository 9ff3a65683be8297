// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d error=0x%02X crc=0x%04X\n",
		timestamp, FormatCommand(f.command), f.command, f.length, f.errorCode, f.crc)
	result += formatData(f)

	return result
}

// FormatCommand returns the human-readable name for a command byte
func FormatCommand(command uint8) string {
	switch command {
	case CmdReadData:
		return "READ_DATA"
	case CmdFirmwareCheck:
		return "FIRMWARE_CHECK"
	default:
		return "UNKNOWN"
	}
}

// FormatHex formats bytes as space-separated uppercase hex pairs
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

func formatData(f *Frame) string {
	if len(f.data) == 0 {
		return "  (no data)\n"
	}

	switch f.command {
	case CmdFirmwareCheck:
		if version, err := f.FirmwareVersion(); err == nil {
			return fmt.Sprintf("  Firmware version: 0x%02X\n", version)
		}

	case CmdReadData:
		if values, err := f.Floats(); err == nil {
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprintf("%.4f", v)
			}
			return fmt.Sprintf("  Data: [%s]\n", strings.Join(parts, ", "))
		}
	}

	// Default: hex dump
	result := "  Data: "
	for i, b := range f.data {
		if i > 0 && i%16 == 0 {
			result += "\n        "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}
