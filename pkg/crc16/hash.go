// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crc16

import "hash"

// Hash16 is the common interface implemented by 16-bit hash functions.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

type digest struct {
	crc uint16
}

// New creates a new Hash16 computing the CRC-16 checksum.
func New() Hash16 {
	return &digest{}
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Reset() { d.crc = 0 }

func (d *digest) Write(p []byte) (n int, err error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum16() uint16 { return d.crc }

// Sum appends the checksum in big-endian order, matching hash/crc32.
func (d *digest) Sum(in []byte) []byte {
	return append(in, byte(d.crc>>8), byte(d.crc))
}
