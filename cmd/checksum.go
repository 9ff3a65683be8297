// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/imulink/pkg/crc16"
	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/spf13/cobra"
)

var (
	crcFilePath string
	crcAppend   bool
)

var crcCmd = &cobra.Command{
	Use:   "crc [hex bytes...]",
	Short: "Compute the CRC-16 of a byte sequence",
	Long: `Compute the CRC-16 (polynomial 0x1021, initial value 0) of the given bytes.

Bytes are given as hex, with or without separators:
  imulink crc FE FE A0
  imulink crc 0xFE,0xFE,0xA0
  imulink crc --file payload.bin

With --append the input is printed again with the checksum appended low byte
first, ready to send as a frame.`,
	RunE: runCRC,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <hex bytes...>",
	Short: "Verify the trailing CRC-16 of a frame",
	Long: `Check that the last two bytes of a frame (low byte first) match the
CRC-16 of the bytes before them.

Exit codes:
  0 - CRC matches
  1 - CRC mismatch
  2 - Frame shorter than two bytes or unparsable input`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(crcCmd)
	rootCmd.AddCommand(verifyCmd)
	crcCmd.Flags().StringVarP(&crcFilePath, "file", "f", "", "Read input bytes from a file")
	crcCmd.Flags().BoolVar(&crcAppend, "append", false, "Print the input with the CRC appended")
}

// parseHexBytes parses hex byte arguments, accepting spaces, commas, colons
// and 0x prefixes
func parseHexBytes(args []string) ([]byte, error) {
	joined := strings.Join(args, " ")
	replacer := strings.NewReplacer(",", " ", ":", " ", "\t", " ", "\n", " ")
	fields := strings.Fields(replacer.Replace(joined))

	var digits strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f)%2 != 0 {
			f = "0" + f
		}
		digits.WriteString(f)
	}

	data, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func runCRC(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if crcFilePath != "" {
		data, err = os.ReadFile(crcFilePath)
	} else {
		data, err = parseHexBytes(args)
	}
	if err != nil {
		return err
	}

	printCRC(cmd.OutOrStdout(), data, crcAppend)
	return nil
}

func printCRC(w io.Writer, data []byte, appendCRC bool) {
	crc := crc16.Checksum(data)
	fmt.Fprintf(w, "CRC-16: 0x%04X (%d)\n", crc, crc)
	fmt.Fprintf(w, "Bytes:  %02X %02X (low, high)\n", byte(crc), byte(crc>>8))
	if appendCRC {
		frame := crc16.AppendChecksum(append([]byte(nil), data...))
		fmt.Fprintf(w, "Frame:  %s\n", imu.FormatHex(frame))
	}
}

// verifyExitCode maps the result of a frame check to the command's exit code
func verifyExitCode(w io.Writer, frame []byte) int {
	err := crc16.Check(frame)
	var mismatch *crc16.MismatchError
	switch {
	case err == nil:
		embedded, _ := crc16.Embedded(frame)
		fmt.Fprintf(w, "OK: CRC 0x%04X matches\n", embedded)
		return 0
	case errors.As(err, &mismatch):
		fmt.Fprintf(w, "MISMATCH: computed 0x%04X, frame carries 0x%04X\n", mismatch.Computed, mismatch.Embedded)
		return 1
	default:
		fmt.Fprintf(w, "ERROR: %v\n", err)
		return 2
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	frame, err := parseHexBytes(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	os.Exit(verifyExitCode(cmd.OutOrStdout(), frame))
	return nil
}
