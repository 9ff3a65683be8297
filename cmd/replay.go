// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/imulink/pkg/crc16"
	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording.cbor>",
	Short: "Print a recorded session",
	Long: `Read a CBOR recording made with raw_log --record or poll --record and
print every frame. Each frame's CRC is verified again, so a recording can be
used to check a changed table or decoder against captured traffic. A summary
with the same statistics as the poll command closes the output.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := imu.ReadRecords(f)
	if err != nil {
		return err
	}

	stats := replayRecords(cmd.OutOrStdout(), records)
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), stats.String())
	return nil
}

// replayRecords prints each record and collects statistics from a fresh CRC check
func replayRecords(w io.Writer, records []imu.Record) *imu.Statistics {
	stats := imu.NewStatistics()

	for _, rec := range records {
		timestamp := rec.Time.Format("15:04:05.000")
		if rec.Direction == imu.DirectionTx {
			stats.RecordTransmit()
			fmt.Fprintf(w, "[%s] tx %s\n", timestamp, imu.FormatHex(rec.Raw))
			continue
		}

		frame, err := imu.Decode(rec.Raw)
		stats.Update(frame, err, nil)
		if err != nil {
			fmt.Fprintf(w, "[%s] rx %s\n  \033[1;31mREJECTED:\033[0m %v\n", timestamp, imu.FormatHex(rec.Raw), err)
			continue
		}

		ok := "OK"
		if !rec.Valid {
			// Recorded as bad but verifies now
			ok = "OK (was rejected when recorded)"
		}
		crc, _ := crc16.Embedded(rec.Raw)
		fmt.Fprintf(w, "[%s] rx %s (0x%02X) crc=0x%04X %s\n", timestamp, imu.FormatCommand(frame.Command()), frame.Command(), crc, ok)
	}

	return stats
}
