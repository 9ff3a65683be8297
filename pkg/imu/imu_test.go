// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package imu

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/imulink/pkg/crc16"
)

// READ_DATA response carrying [1.0, -2.5, 0.125]
var sensorFrame = []byte{
	0xFE, 0xFE, 0xA0, 0x13, 0x00,
	0x00, 0x00, 0x80, 0x3F,
	0x00, 0x00, 0x20, 0xC0,
	0x00, 0x00, 0x00, 0x3E,
	0x37, 0xA4,
}

// getFuzzRounds returns the number of random rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a seeded generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// decodeAll feeds data through d and collects frames and errors
func decodeAll(d *Decoder, data []byte) ([]*Frame, []error) {
	frames := []*Frame{}
	errs := []error{}
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeRequest(t *testing.T) {
	tests := []struct {
		name     string
		command  uint8
		expected []byte
	}{
		{"READ_DATA", CmdReadData, []byte{0xFE, 0xFE, 0xA0, 0x77, 0x7D}},
		{"FIRMWARE_CHECK", CmdFirmwareCheck, []byte{0xFE, 0xFE, 0xD0, 0xE0, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := EncodeRequest(tt.command)
			if !bytes.Equal(frame, tt.expected) {
				t.Errorf("expected %X, got %X", tt.expected, frame)
			}
			if ok, err := crc16.Verify(frame); err != nil || !ok {
				t.Errorf("request should verify, got %v, %v", ok, err)
			}
		})
	}
}

func TestEncodeResponse_SensorData(t *testing.T) {
	data := EncodeSensorData([]float32{1.0, -2.5, 0.125})
	frame, err := EncodeResponse(CmdReadData, DeviceOK, data)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	if !bytes.Equal(frame, sensorFrame) {
		t.Errorf("expected %X, got %X", sensorFrame, frame)
	}
}

func TestEncodeResponse_TooLarge(t *testing.T) {
	_, err := EncodeResponse(CmdReadData, DeviceOK, make([]byte, MaxDataSize+1))
	if err == nil {
		t.Error("expected error for oversized data")
	}

	frame, err := EncodeResponse(CmdReadData, DeviceOK, make([]byte, MaxDataSize))
	if err != nil {
		t.Fatalf("max data size should encode: %v", err)
	}
	if len(frame) != MaxFrameSize {
		t.Errorf("expected %d bytes, got %d", MaxFrameSize, len(frame))
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_SensorFrame(t *testing.T) {
	frame, err := Decode(sensorFrame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if frame.Command() != CmdReadData {
		t.Errorf("Command: expected 0x%02X, got 0x%02X", CmdReadData, frame.Command())
	}
	if frame.Length() != 19 {
		t.Errorf("Length: expected 19, got %d", frame.Length())
	}
	if frame.ErrorCode() != DeviceOK {
		t.Errorf("ErrorCode: expected 0, got 0x%02X", frame.ErrorCode())
	}
	if frame.CRC() != 0xA437 {
		t.Errorf("CRC: expected 0xA437, got 0x%04X", frame.CRC())
	}
	if !bytes.Equal(frame.Raw(), sensorFrame) {
		t.Errorf("Raw: expected %X, got %X", sensorFrame, frame.Raw())
	}
	if frame.Timestamp().IsZero() {
		t.Error("Timestamp should be set")
	}

	values, err := frame.Floats()
	if err != nil {
		t.Fatalf("Floats: %v", err)
	}
	expected := []float32{1.0, -2.5, 0.125}
	if len(values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("value %d: expected %v, got %v", i, expected[i], values[i])
		}
	}
}

func TestDecoder_FirmwareFrame(t *testing.T) {
	raw, err := EncodeResponse(CmdFirmwareCheck, DeviceOK, []byte{0x12})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	// Reference CRC computed independently for FE FE D0 08 00 12
	if raw[len(raw)-2] != 0x30 || raw[len(raw)-1] != 0xD2 {
		t.Errorf("unexpected CRC bytes %X", raw[len(raw)-2:])
	}

	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	version, err := frame.FirmwareVersion()
	if err != nil {
		t.Fatalf("FirmwareVersion: %v", err)
	}
	if version != 0x12 {
		t.Errorf("expected version 0x12, got 0x%02X", version)
	}
}

func TestDecoder_CRCError(t *testing.T) {
	corrupted := append([]byte(nil), sensorFrame...)
	corrupted[len(corrupted)-1] ^= 0xFF

	d := NewDecoder()
	frames, errs := decodeAll(d, corrupted)
	if len(frames) != 0 {
		t.Fatalf("corrupted frame should not decode, got %d frames", len(frames))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}

	var de *DecodeError
	if !errors.As(errs[0], &de) {
		t.Fatalf("expected *DecodeError, got %T", errs[0])
	}
	if de.Kind != ErrKindCRC {
		t.Errorf("expected CRC error kind, got %s", de.Kind)
	}
	if !bytes.Equal(de.Raw, corrupted) {
		t.Errorf("Raw: expected %X, got %X", corrupted, de.Raw)
	}

	var mismatch *crc16.MismatchError
	if !errors.As(errs[0], &mismatch) {
		t.Fatalf("expected wrapped *crc16.MismatchError")
	}
	if mismatch.Computed != 0xA437 {
		t.Errorf("Computed: expected 0xA437, got 0x%04X", mismatch.Computed)
	}
	if !strings.HasPrefix(errs[0].Error(), "CRC mismatch") {
		t.Errorf("unexpected message: %q", errs[0].Error())
	}
}

func TestDecoder_PayloadCorruption(t *testing.T) {
	corrupted := append([]byte(nil), sensorFrame...)
	corrupted[7] ^= 0x01

	_, err := Decode(corrupted)
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != ErrKindCRC {
		t.Errorf("expected CRC decode error, got %v", err)
	}
}

func TestDecoder_InvalidLength(t *testing.T) {
	for _, length := range []byte{0x00, 0x06, 0x81, 0xFF} {
		d := NewDecoder()
		_, errs := decodeAll(d, []byte{0xFE, 0xFE, 0xA0, length})
		if len(errs) != 1 {
			t.Errorf("length %d: expected 1 error, got %d", length, len(errs))
			continue
		}
		var de *DecodeError
		if !errors.As(errs[0], &de) || de.Kind != ErrKindLength {
			t.Errorf("length %d: expected length error, got %v", length, errs[0])
		}
	}
}

func TestDecoder_SkipsGarbage(t *testing.T) {
	stream := []byte{0x00, 0x13, 0xFE, 0x55, 0xAA}
	stream = append(stream, sensorFrame...)

	d := NewDecoder()
	frames, errs := decodeAll(d, stream)
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
}

func TestDecoder_LeadingHeaderByte(t *testing.T) {
	fw, _ := EncodeResponse(CmdFirmwareCheck, DeviceOK, []byte{0x01})

	for extra := 1; extra <= 3; extra++ {
		stream := bytes.Repeat([]byte{HeaderByte}, extra)
		stream = append(stream, fw...)

		frames, errs := decodeAll(NewDecoder(), stream)
		if len(errs) != 0 {
			t.Errorf("%d extra header bytes: unexpected errors: %v", extra, errs)
		}
		if len(frames) != 1 {
			t.Fatalf("%d extra header bytes: expected 1 frame, got %d", extra, len(frames))
		}
		if !bytes.Equal(frames[0].Raw(), fw) {
			t.Errorf("%d extra header bytes: raw = % X, want % X", extra, frames[0].Raw(), fw)
		}
	}
}

func TestDecoder_TrailingHeaderByteBeforeNextFrame(t *testing.T) {
	// Previous frame ending in 0xFE followed directly by the next frame
	stream := append([]byte{0x00, HeaderByte}, sensorFrame...)

	frames, errs := decodeAll(NewDecoder(), stream)
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if len(frames) != 1 || frames[0].Command() != CmdReadData {
		t.Fatalf("expected 1 READ_DATA frame, got %d", len(frames))
	}
}

func TestDecoder_ResyncAfterError(t *testing.T) {
	corrupted := append([]byte(nil), sensorFrame...)
	corrupted[5] ^= 0x10

	stream := append(corrupted, sensorFrame...)
	d := NewDecoder()
	frames, errs := decodeAll(d, stream)
	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %d", len(errs))
	}
	if len(frames) != 1 {
		t.Errorf("expected 1 frame after resync, got %d", len(frames))
	}
}

func TestDecoder_BackToBackFrames(t *testing.T) {
	fw, _ := EncodeResponse(CmdFirmwareCheck, DeviceOK, []byte{0x03})
	stream := append(append(append([]byte(nil), sensorFrame...), fw...), sensorFrame...)

	frames, errs := decodeAll(NewDecoder(), stream)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[1].Command() != CmdFirmwareCheck {
		t.Errorf("second frame: expected FIRMWARE_CHECK, got 0x%02X", frames[1].Command())
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	decodeAll(d, sensorFrame[:8])
	if len(d.GetRawBytes()) != 8 {
		t.Errorf("expected 8 buffered bytes, got %d", len(d.GetRawBytes()))
	}
	d.Reset()
	if len(d.GetRawBytes()) != 0 {
		t.Error("Reset should clear buffered bytes")
	}

	frames, _ := decodeAll(d, sensorFrame)
	if len(frames) != 1 {
		t.Error("decoder should work after Reset")
	}
}

func TestDecode_Incomplete(t *testing.T) {
	if _, err := Decode(sensorFrame[:10]); err == nil {
		t.Error("expected error for incomplete frame")
	}
}

func TestDecoder_RandomRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	d := NewDecoder()
	for i := 0; i < getFuzzRounds(); i++ {
		data := make([]byte, rng.Intn(MaxDataSize+1))
		rng.Read(data)
		command := uint8(rng.Intn(256))
		raw, err := EncodeResponse(command, uint8(rng.Intn(4)), data)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}

		frames, errs := decodeAll(d, raw)
		if len(errs) != 0 || len(frames) != 1 {
			t.Fatalf("round %d: frames=%d errs=%v raw=%X", i, len(frames), errs, raw)
		}
		if !bytes.Equal(frames[0].Data(), data) {
			t.Fatalf("round %d: data mismatch", i)
		}
	}
}

func TestDecoder_RandomBitFlipRejected(t *testing.T) {
	rng := newFuzzRng(t)
	for i := 0; i < getFuzzRounds(); i++ {
		data := make([]byte, rng.Intn(32))
		rng.Read(data)
		raw, _ := EncodeResponse(CmdReadData, DeviceOK, data)

		// Flip a bit past the header and length so framing stays intact
		pos := HeaderSize + 2 + rng.Intn(len(raw)-HeaderSize-2)
		raw[pos] ^= byte(1) << uint(rng.Intn(8))

		frames, errs := decodeAll(NewDecoder(), raw)
		if len(frames) != 0 {
			t.Fatalf("round %d: corrupted frame accepted: %X", i, raw)
		}
		if len(errs) != 1 {
			t.Fatalf("round %d: expected 1 error, got %d", i, len(errs))
		}
	}
}

// ============================================================
// Frame Tests
// ============================================================

func TestFrame_FloatsOddLength(t *testing.T) {
	raw, _ := EncodeResponse(CmdReadData, DeviceOK, []byte{1, 2, 3})
	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := frame.Floats(); err == nil {
		t.Error("expected error for 3-byte data section")
	}
}

func TestFrame_FirmwareVersionWrongCommand(t *testing.T) {
	frame, _ := Decode(sensorFrame)
	if _, err := frame.FirmwareVersion(); err == nil {
		t.Error("expected error for non firmware frame")
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateFrame_Valid(t *testing.T) {
	frame, _ := Decode(sensorFrame)
	if errs := ValidateFrame(frame, CmdReadData); len(errs) != 0 {
		t.Errorf("expected no validation errors, got %v", errs)
	}
}

func TestValidateFrame_Anomalies(t *testing.T) {
	nan := EncodeSensorData([]float32{float32(math.NaN()), 1.0})
	tests := []struct {
		name     string
		command  uint8
		errCode  uint8
		data     []byte
		expected uint8
		anomaly  AnomalyType
	}{
		{"device error", CmdReadData, 0x02, nil, CmdReadData, AnomalyDeviceError},
		{"odd data length", CmdReadData, DeviceOK, []byte{1, 2}, CmdReadData, AnomalyDataLength},
		{"NaN value", CmdReadData, DeviceOK, nan, CmdReadData, AnomalyInvalidValue},
		{"missing version", CmdFirmwareCheck, DeviceOK, nil, CmdFirmwareCheck, AnomalyDataLength},
		{"wrong echo", CmdFirmwareCheck, DeviceOK, []byte{1}, CmdReadData, AnomalyUnexpectedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := EncodeResponse(tt.command, tt.errCode, tt.data)
			frame, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			errs := ValidateFrame(frame, tt.expected)
			if len(errs) != 1 {
				t.Fatalf("expected 1 validation error, got %d: %v", len(errs), errs)
			}
			if errs[0].Type != tt.anomaly {
				t.Errorf("expected anomaly %d, got %d (%s)", tt.anomaly, errs[0].Type, errs[0].Message)
			}
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	frame, _ := Decode(sensorFrame)
	out := FormatFrame(frame)
	if !strings.Contains(out, "READ_DATA (0xA0) len=19") {
		t.Errorf("missing header in %q", out)
	}
	if !strings.Contains(out, "crc=0xA437") {
		t.Errorf("missing CRC in %q", out)
	}
	if !strings.Contains(out, "[1.0000, -2.5000, 0.1250]") {
		t.Errorf("missing data in %q", out)
	}
}

func TestFormatCommand(t *testing.T) {
	if FormatCommand(CmdReadData) != "READ_DATA" {
		t.Error("READ_DATA name")
	}
	if FormatCommand(CmdFirmwareCheck) != "FIRMWARE_CHECK" {
		t.Error("FIRMWARE_CHECK name")
	}
	if FormatCommand(0x42) != "UNKNOWN" {
		t.Error("unknown command name")
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0xFE, 0x0A, 0x00}); got != "FE 0A 00" {
		t.Errorf("expected \"FE 0A 00\", got %q", got)
	}
	if got := FormatHex(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Counting(t *testing.T) {
	s := NewStatistics()
	frame, _ := Decode(sensorFrame)

	for i := 0; i < 4; i++ {
		s.RecordTransmit()
	}
	s.Update(frame, nil, nil)
	s.Update(frame, nil, nil)
	s.Update(frame, nil, []ValidationError{{Type: AnomalyDeviceError}})
	s.Update(nil, &DecodeError{Kind: ErrKindCRC, Err: errors.New("CRC mismatch")}, nil)
	s.Update(nil, &DecodeError{Kind: ErrKindLength, Err: errors.New("invalid length")}, nil)
	s.RecordTimeout()

	if s.Transmitted != 4 {
		t.Errorf("Transmitted: expected 4, got %d", s.Transmitted)
	}
	if s.Received != 4 {
		t.Errorf("Received: expected 4, got %d", s.Received)
	}
	if s.ValidFrames != 3 {
		t.Errorf("ValidFrames: expected 3, got %d", s.ValidFrames)
	}
	if s.CRCErrors != 1 || s.LengthErrors != 1 || s.Timeouts != 1 || s.Anomalies != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if pct := s.CRCErrorPercent(); pct != 25.0 {
		t.Errorf("CRCErrorPercent: expected 25.0, got %.2f", pct)
	}

	out := s.String()
	if !strings.Contains(out, "CRC Errors:") || !strings.Contains(out, "(25.0%)") {
		t.Errorf("unexpected summary: %q", out)
	}

	s.Reset()
	if s.Received != 0 || s.Transmitted != 0 || s.CRCErrorPercent() != 0 {
		t.Error("Reset should clear counters")
	}
}

// ============================================================
// Recorder Tests
// ============================================================

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)

	frame, _ := Decode(sensorFrame)
	tx := Record{Time: time.Now(), Direction: DirectionTx, Raw: EncodeRequest(CmdReadData), Valid: true}
	if err := rec.Write(tx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rec.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	bad := Record{Time: time.Now(), Direction: DirectionRx, Raw: []byte{0xFE, 0xFE, 0x00}, Valid: false}
	if err := rec.Write(bad); err != nil {
		t.Fatalf("Write: %v", err)
	}

	records, err := ReadRecords(&buf)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Direction != DirectionTx || records[1].Direction != DirectionRx {
		t.Errorf("unexpected directions: %s, %s", records[0].Direction, records[1].Direction)
	}
	if !bytes.Equal(records[1].Raw, sensorFrame) {
		t.Errorf("raw mismatch: %X", records[1].Raw)
	}
	if !records[1].Time.Equal(frame.Timestamp()) {
		t.Errorf("time mismatch: %v != %v", records[1].Time, frame.Timestamp())
	}
	if records[2].Valid {
		t.Error("third record should be invalid")
	}
}

func TestReadRecords_Truncated(t *testing.T) {
	var buf bytes.Buffer
	NewRecorder(&buf).WriteFrame(mustDecode(t, sensorFrame))
	truncated := buf.Bytes()[:buf.Len()-3]

	if _, err := ReadRecords(bytes.NewReader(truncated)); err == nil {
		t.Error("expected error for truncated recording")
	}
}

func mustDecode(t *testing.T, raw []byte) *Frame {
	t.Helper()
	frame, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return frame
}
