// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package imu implements the host side of the IMU serial link.
//
// Every frame starts with a two-byte header and ends with a CRC-16 (see
// package crc16) computed over all preceding bytes and stored low byte first.
//
//	request:  FE FE <command> <crc_lo> <crc_hi>
//	response: FE FE <command> <length> <error> <data...> <crc_lo> <crc_hi>
//
// The response length byte counts the whole frame, header and CRC included.
package imu

import "github.com/Thermoquad/imulink/pkg/crc16"

// Frame header
const (
	HeaderByte = 0xFE
	HeaderSize = 2
)

// Frame size limits
const (
	RequestSize    = HeaderSize + 1 + crc16.Size
	MinFrameSize   = HeaderSize + 3 + crc16.Size // header + command + length + error + CRC
	MaxFrameSize   = 128
	MaxDataSize    = MaxFrameSize - MinFrameSize
	responseFixed  = HeaderSize + 3 // bytes preceding the data section
	floatValueSize = 4
)

// Commands (Host → IMU, echoed in the response)
const (
	CmdReadData      = 0xA0
	CmdFirmwareCheck = 0xD0
)

// Device error codes carried in the response error byte
const (
	DeviceOK = 0x00
)

// Decoder states
const (
	stateIdle = iota
	stateHeader
	stateCommand
	stateLength
	stateBody
)
