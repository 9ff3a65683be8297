// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/Thermoquad/imulink/pkg/crc16"
)

// ParseRequest validates a request frame and returns its command byte.
func ParseRequest(frame []byte) (uint8, error) {
	if len(frame) != RequestSize {
		return 0, fmt.Errorf("invalid request size: %d (expected %d)", len(frame), RequestSize)
	}
	if frame[0] != HeaderByte || frame[1] != HeaderByte {
		return 0, fmt.Errorf("invalid request header: %02X %02X", frame[0], frame[1])
	}
	if err := crc16.Check(frame); err != nil {
		return 0, err
	}
	return frame[HeaderSize], nil
}

// Device answers requests the way the IMU firmware does.
// It drives the simulate command and the link tests.
type Device struct {
	Version uint8
	Sample  func() []float32

	// CorruptEvery flips the CRC high byte of every Nth response (0 disables)
	CorruptEvery int

	responses int
}

// Respond builds the response for a single command.
func (d *Device) Respond(command uint8) ([]byte, error) {
	var data []byte
	switch command {
	case CmdFirmwareCheck:
		data = []byte{d.Version}
	case CmdReadData:
		if d.Sample != nil {
			data = EncodeSensorData(d.Sample())
		}
	default:
		return nil, fmt.Errorf("unsupported command 0x%02X", command)
	}

	frame, err := EncodeResponse(command, DeviceOK, data)
	if err != nil {
		return nil, err
	}

	d.responses++
	if d.CorruptEvery > 0 && d.responses%d.CorruptEvery == 0 {
		frame[len(frame)-1] ^= 0xFF
	}
	return frame, nil
}

// Serve reads requests from rw and writes responses until ctx is done or the
// stream ends. Bytes that do not form a valid request are skipped.
//
// If rw is also an io.Closer it is closed when ctx is done, which unblocks a
// pending Read. Otherwise cancellation is only observed between reads.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	if c, ok := rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	window := make([]byte, 0, RequestSize)
	buf := make([]byte, 64)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := rw.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		for _, b := range buf[:n] {
			window = append(window, b)
			if len(window) > RequestSize {
				window = window[1:]
			}
			if len(window) < RequestSize {
				continue
			}

			command, err := ParseRequest(window)
			if err != nil {
				continue
			}
			window = window[:0]

			response, err := d.Respond(command)
			if err != nil {
				continue
			}
			if _, err := rw.Write(response); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}
