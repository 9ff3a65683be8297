// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crc16

import (
	"errors"
	"fmt"
)

// ErrFrameTooShort is returned when a frame cannot hold the trailing checksum.
var ErrFrameTooShort = errors.New("crc16: frame shorter than checksum")

// MismatchError reports a frame whose embedded checksum does not match its payload
type MismatchError struct {
	Computed uint16
	Embedded uint16
}

// Error implements the error interface
func (e *MismatchError) Error() string {
	return fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", e.Computed, e.Embedded)
}

// Embedded returns the little-endian checksum stored in the last two bytes of frame.
func Embedded(frame []byte) (uint16, error) {
	if len(frame) < Size {
		return 0, ErrFrameTooShort
	}
	n := len(frame)
	return uint16(frame[n-2]) | uint16(frame[n-1])<<8, nil
}

// Check validates a frame laid out as [payload...][crc_low][crc_high].
// It returns nil when the checksum matches, a *MismatchError when it does not,
// and ErrFrameTooShort when the frame has fewer than two bytes.
func Check(frame []byte) error {
	embedded, err := Embedded(frame)
	if err != nil {
		return err
	}
	computed := Checksum(frame[:len(frame)-Size])
	if computed != embedded {
		return &MismatchError{Computed: computed, Embedded: embedded}
	}
	return nil
}

// Verify reports whether the trailing checksum of frame matches its payload.
// Frames shorter than two bytes are rejected with ErrFrameTooShort.
func Verify(frame []byte) (bool, error) {
	err := Check(frame)
	if err == nil {
		return true, nil
	}
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		return false, nil
	}
	return false, err
}

// AppendChecksum appends the checksum of dst to dst, low byte first, and
// returns the extended slice.
func AppendChecksum(dst []byte) []byte {
	crc := Checksum(dst)
	return append(dst, byte(crc), byte(crc>>8))
}
