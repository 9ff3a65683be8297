// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/spf13/cobra"
)

var rawLogRecordPath string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display IMU response frames as they arrive.

Nothing is sent to the device; use this alongside another master. Each frame
is shown with timestamp, command, length, device error, CRC and decoded data.
Frames that fail the CRC check are reported with their raw bytes.

With --record every frame, valid or not, is appended to a CBOR file that the
replay command can read back.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogRecordPath, "record", "", "Record frames to a CBOR file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, _, err := openFromFlags(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	var recorder *imu.Recorder
	if rawLogRecordPath != "" {
		f, err := os.Create(rawLogRecordPath)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		recorder = imu.NewRecorder(f)
	}

	fmt.Printf("imulink - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := make(chan decodeResult, 16)
	go readFrames(ctx, conn, results)

	for {
		select {
		case <-ctx.Done():
			return nil

		case res := <-results:
			if res.readErr != nil {
				log.Printf("Connection closed")
				return nil
			}
			if res.decodeErr != nil {
				fmt.Printf("[ERROR] %v\n", res.decodeErr)
				if raw := rejectedBytes(res.decodeErr); raw != nil {
					fmt.Printf("  Raw: %s\n", imu.FormatHex(raw))
					recordOrLog(recorder, imu.Record{Time: time.Now(), Direction: imu.DirectionRx, Raw: raw})
				}
				continue
			}
			fmt.Print(imu.FormatFrame(res.frame))
			if recorder != nil {
				if err := recorder.WriteFrame(res.frame); err != nil {
					log.Printf("Record error: %v", err)
				}
			}
		}
	}
}

func recordOrLog(recorder *imu.Recorder, rec imu.Record) {
	if recorder == nil {
		return
	}
	if err := recorder.Write(rec); err != nil {
		log.Printf("Record error: %v", err)
	}
}
