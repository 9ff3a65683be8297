// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package crc16 implements the table-driven CRC-16 used on the IMU serial link.
//
// The variant is fixed: polynomial 0x1021, initial value 0x0000, no bit
// reflection and no final XOR (known elsewhere as CRC-16/XMODEM). Frames carry
// the checksum in their last two bytes, low byte first.
package crc16

// Polynomial is the generator polynomial, MSB-first with the x^16 term implied.
const Polynomial = 0x1021

// Size is the size of a CRC-16 checksum in bytes.
const Size = 2

// Check value of the variant: Checksum([]byte("123456789")).
const checkValue = 0x31C3

var table [256]uint16

func init() {
	table = makeTable(Polynomial)
}

// makeTable builds the lookup table by dividing each possible leading byte
// through the polynomial.
func makeTable(poly uint16) [256]uint16 {
	var t [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Table returns a copy of the 256-entry lookup table.
func Table() [256]uint16 {
	return table
}

// Checksum computes the CRC-16 of data. An empty slice yields 0.
func Checksum(data []byte) uint16 {
	return Update(0, data)
}

// Update returns the result of adding the bytes in data to crc.
func Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = table[byte(crc>>8)^b] ^ (crc << 8)
	}
	return crc
}
