// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"fmt"
	"time"

	"github.com/Thermoquad/imulink/pkg/crc16"
)

// ErrorKind classifies decode failures
type ErrorKind int

const (
	ErrKindLength ErrorKind = iota
	ErrKindCRC
)

// String returns the name of the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindLength:
		return "length"
	case ErrKindCRC:
		return "crc"
	default:
		return "unknown"
	}
}

// DecodeError is returned by the decoder when a frame is rejected
type DecodeError struct {
	Kind ErrorKind
	Raw  []byte // Bytes consumed for the rejected frame
	Err  error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder implements the IMU response decoder state machine
type Decoder struct {
	state  int
	buffer []byte
	length int
}

// NewDecoder creates a new response decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.length = 0
}

// GetRawBytes returns the bytes accumulated for the frame in progress
func (d *Decoder) GetRawBytes() []byte {
	return d.buffer
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the frame is incomplete
// Returns a *DecodeError if the frame is rejected; the decoder then hunts for
// the next header
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		// Waiting for first header byte
		if b == HeaderByte {
			d.buffer = append(d.buffer[:0], b)
			d.state = stateHeader
		}
		return nil, nil

	case stateHeader:
		if b != HeaderByte {
			d.Reset()
			return nil, nil
		}
		d.buffer = append(d.buffer, b)
		d.state = stateCommand
		return nil, nil

	case stateCommand:
		// A run of header bytes keeps the last two as the header
		if b == HeaderByte {
			return nil, nil
		}
		d.buffer = append(d.buffer, b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		d.buffer = append(d.buffer, b)
		if int(b) < MinFrameSize || int(b) > MaxFrameSize {
			err := &DecodeError{
				Kind: ErrKindLength,
				Raw:  append([]byte(nil), d.buffer...),
				Err:  fmt.Errorf("invalid length: %d (valid %d-%d)", b, MinFrameSize, MaxFrameSize),
			}
			d.Reset()
			return nil, err
		}
		d.length = int(b)
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.buffer = append(d.buffer, b)
		if len(d.buffer) < d.length {
			return nil, nil
		}
		return d.finish()

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// finish validates the CRC of a complete frame
func (d *Decoder) finish() (*Frame, error) {
	raw := append([]byte(nil), d.buffer...)
	d.Reset()

	if err := crc16.Check(raw); err != nil {
		return nil, &DecodeError{Kind: ErrKindCRC, Raw: raw, Err: err}
	}

	// Check succeeded, so the CRC bytes are present
	crc, _ := crc16.Embedded(raw)

	return &Frame{
		command:   raw[HeaderSize],
		length:    raw[HeaderSize+1],
		errorCode: raw[HeaderSize+2],
		data:      raw[responseFixed : len(raw)-crc16.Size],
		crc:       crc,
		raw:       raw,
		timestamp: time.Now(),
	}, nil
}

// Decode feeds data through a fresh decoder and returns the first complete frame.
func Decode(data []byte) (*Frame, error) {
	d := NewDecoder()
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
	return nil, fmt.Errorf("incomplete frame (%d bytes)", len(data))
}
