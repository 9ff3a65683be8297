// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crc16

import (
	"bytes"
	"errors"
	"io"

	"github.com/icza/bitio"
)

// ChecksumBitwise computes the same checksum as Checksum by shifting the data
// through the polynomial one bit at a time, most significant bit first.
// It is slow and exists to cross-check the lookup table.
func ChecksumBitwise(data []byte) (uint16, error) {
	r := bitio.NewReader(bytes.NewReader(data))

	var crc uint16
	for {
		bit, err := r.ReadBool()
		if errors.Is(err, io.EOF) {
			return crc, nil
		}
		if err != nil {
			return 0, err
		}

		top := crc&0x8000 != 0
		crc <<= 1
		if top != bit {
			crc ^= Polynomial
		}
	}
}
