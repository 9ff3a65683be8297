// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a recorded frame
type Direction uint8

const (
	DirectionRx Direction = iota
	DirectionTx
)

// String returns "rx" or "tx"
func (d Direction) String() string {
	if d == DirectionTx {
		return "tx"
	}
	return "rx"
}

// Record is one entry of a session recording
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Raw       []byte    `cbor:"3,keyasint"`
	Valid     bool      `cbor:"4,keyasint"`
}

var recordEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("imu: cbor encode mode: %v", err))
	}
	return em
}()

// Recorder appends records to a CBOR sequence
type Recorder struct {
	enc *cbor.Encoder
}

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: recordEncMode.NewEncoder(w)}
}

// Write appends a record
func (r *Recorder) Write(rec Record) error {
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// WriteFrame records a decoded frame as a valid rx record
func (r *Recorder) WriteFrame(f *Frame) error {
	return r.Write(Record{Time: f.timestamp, Direction: DirectionRx, Raw: f.raw, Valid: true})
}

// ReadRecords reads every record of a CBOR sequence
func ReadRecords(rd io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(rd)
	records := []Record{}
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
