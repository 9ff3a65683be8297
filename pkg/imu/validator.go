// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyDeviceError AnomalyType = iota
	AnomalyDataLength
	AnomalyInvalidValue
	AnomalyUnexpectedCommand
)

// ValidationError represents a frame that passed its CRC check but carries
// suspicious content
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a CRC-valid frame for anomalies.
// expected is the command that was requested; pass 0 to skip the echo check.
// Returns a slice of validation errors (empty if the frame is valid)
func ValidateFrame(f *Frame, expected uint8) []ValidationError {
	errors := []ValidationError{}

	if expected != 0 && f.command != expected {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnexpectedCommand,
			Message: fmt.Sprintf("Response command 0x%02X does not match request 0x%02X", f.command, expected),
			Details: map[string]interface{}{"command": f.command, "expected": expected},
		})
	}

	if f.errorCode != DeviceOK {
		errors = append(errors, ValidationError{
			Type:    AnomalyDeviceError,
			Message: fmt.Sprintf("Device reported error 0x%02X", f.errorCode),
			Details: map[string]interface{}{"error": f.errorCode},
		})
	}

	switch f.command {
	case CmdReadData:
		errors = append(errors, validateSensorData(f)...)
	case CmdFirmwareCheck:
		if len(f.data) < 1 {
			errors = append(errors, ValidationError{
				Type:    AnomalyDataLength,
				Message: "FIRMWARE_CHECK response carries no version byte",
				Details: map[string]interface{}{"length": len(f.data), "expected": 1},
			})
		}
	}

	return errors
}

// validateSensorData validates a READ_DATA response
func validateSensorData(f *Frame) []ValidationError {
	values, err := f.Floats()
	if err != nil {
		return []ValidationError{{
			Type:    AnomalyDataLength,
			Message: fmt.Sprintf("READ_DATA %v", err),
			Details: map[string]interface{}{"length": len(f.data)},
		}}
	}

	errors := []ValidationError{}
	for i, v := range values {
		f64 := float64(v)
		if math.IsNaN(f64) || math.IsInf(f64, 0) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Value %d is not finite (%v)", i, v),
				Details: map[string]interface{}{"index": i, "value": f64},
			})
		}
	}
	return errors
}
