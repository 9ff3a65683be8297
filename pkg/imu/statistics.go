// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks link statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Transmitted  uint64
	Received     uint64
	ValidFrames  uint64
	CRCErrors    uint64
	LengthErrors uint64
	Timeouts     uint64
	Anomalies    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordTransmit counts a request sent to the device
func (s *Statistics) RecordTransmit() {
	s.Transmitted++
	s.LastUpdateTime = time.Now()
}

// RecordTimeout counts a request that got no response in time
func (s *Statistics) RecordTimeout() {
	s.Timeouts++
	s.LastUpdateTime = time.Now()
}

// Update updates statistics based on a decoded frame or a decode error
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	if decodeErr != nil {
		var de *DecodeError
		if errors.As(decodeErr, &de) && de.Kind == ErrKindCRC {
			// A frame arrived, its checksum did not match
			s.Received++
			s.CRCErrors++
		} else {
			s.LengthErrors++
		}
		s.LastUpdateTime = time.Now()
		return
	}

	if frame == nil {
		return
	}

	s.Received++
	s.ValidFrames++
	if len(validationErrors) > 0 {
		s.Anomalies++
	}

	s.LastUpdateTime = time.Now()
}

// CRCErrorPercent returns the share of received frames that failed the CRC check
func (s *Statistics) CRCErrorPercent() float64 {
	if s.Received == 0 {
		return 0
	}
	return float64(s.Received-s.ValidFrames) * 100.0 / float64(s.Received)
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.Received) / elapsed
		s.ErrorRate = float64(s.CRCErrors+s.LengthErrors+s.Timeouts) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Transmitted:     %8d\n", s.Transmitted)
	result += fmt.Sprintf("Received:        %8d\n", s.Received)
	result += fmt.Sprintf("Valid Frames:    %8d\n", s.ValidFrames)
	result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, s.CRCErrorPercent())

	if s.LengthErrors > 0 {
		result += fmt.Sprintf("Length Errors:   %8d\n", s.LengthErrors)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalous:       %8d\n", s.Anomalies)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
