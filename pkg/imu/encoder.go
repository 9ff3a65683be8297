// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Thermoquad/imulink/pkg/crc16"
)

// EncodeRequest builds a request frame for the given command.
func EncodeRequest(command uint8) []byte {
	frame := make([]byte, 0, RequestSize)
	frame = append(frame, HeaderByte, HeaderByte, command)
	return crc16.AppendChecksum(frame)
}

// EncodeResponse builds a response frame as the device would send it.
// Used by the loopback simulator and tests.
func EncodeResponse(command, errorCode uint8, data []byte) ([]byte, error) {
	if len(data) > MaxDataSize {
		return nil, fmt.Errorf("data too large: %d bytes (max %d)", len(data), MaxDataSize)
	}

	length := MinFrameSize + len(data)
	frame := make([]byte, 0, length)
	frame = append(frame, HeaderByte, HeaderByte, command, uint8(length), errorCode)
	frame = append(frame, data...)

	return crc16.AppendChecksum(frame), nil
}

// EncodeSensorData packs values as consecutive little-endian float32s.
func EncodeSensorData(values []float32) []byte {
	data := make([]byte, len(values)*floatValueSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*floatValueSize:], math.Float32bits(v))
	}
	return data
}
