// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Frame represents a decoded IMU response frame
type Frame struct {
	command   uint8
	length    uint8
	errorCode uint8
	data      []byte
	crc       uint16
	raw       []byte
	timestamp time.Time
}

// Command returns the command byte echoed by the device
func (f *Frame) Command() uint8 {
	return f.command
}

// Length returns the total frame length as announced by the device
func (f *Frame) Length() uint8 {
	return f.length
}

// ErrorCode returns the device error byte
func (f *Frame) ErrorCode() uint8 {
	return f.errorCode
}

// Data returns the data section between the error byte and the CRC
func (f *Frame) Data() []byte {
	return f.data
}

// CRC returns the checksum carried by the frame
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Raw returns the complete frame as received, header and CRC included
func (f *Frame) Raw() []byte {
	return f.raw
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Floats decodes the data section as consecutive little-endian float32 values.
func (f *Frame) Floats() ([]float32, error) {
	if len(f.data)%floatValueSize != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of %d", len(f.data), floatValueSize)
	}
	values := make([]float32, 0, len(f.data)/floatValueSize)
	for i := 0; i < len(f.data); i += floatValueSize {
		values = append(values, math.Float32frombits(binary.LittleEndian.Uint32(f.data[i:])))
	}
	return values, nil
}

// FirmwareVersion returns the version byte of a firmware check response.
func (f *Frame) FirmwareVersion() (uint8, error) {
	if f.command != CmdFirmwareCheck {
		return 0, fmt.Errorf("not a firmware check response (command 0x%02X)", f.command)
	}
	if len(f.data) < 1 {
		return 0, fmt.Errorf("firmware check response carries no version byte")
	}
	return f.data[0], nil
}
