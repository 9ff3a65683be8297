// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"io"
	"log"

	"github.com/Thermoquad/imulink/pkg/imu"
)

// decodeResult is one decoder outcome, or a fatal read error
type decodeResult struct {
	frame     *imu.Frame
	decodeErr error
	readErr   error
}

// readFrames reads from r, runs every byte through a decoder and sends
// completed frames and decode errors to results. It returns after a
// connection-closing read error (which is also sent) or when ctx is done.
func readFrames(ctx context.Context, r io.Reader, results chan<- decodeResult) {
	decoder := imu.NewDecoder()
	buf := make([]byte, 128)

	send := func(res decodeResult) bool {
		select {
		case results <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		n, err := r.Read(buf)
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				send(decodeResult{readErr: err})
				return
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr == nil && frame == nil {
				continue
			}
			if !send(decodeResult{frame: frame, decodeErr: decodeErr}) {
				return
			}
		}
	}
}
