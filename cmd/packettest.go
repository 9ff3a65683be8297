// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
	packetTestSend    bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid IMU frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any frame
that passes its CRC check. Invalid bytes and rejected frames are ignored.
With --send a FIRMWARE_CHECK request is sent first, for devices that only
answer when asked.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestSend, "send", false, "Send a FIRMWARE_CHECK request first")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, _, err := openFromFlags(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("imulink - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	if packetTestSend {
		if _, err := conn.Write(imu.EncodeRequest(imu.CmdFirmwareCheck)); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(packetTestTimeout)*time.Second)
	defer cancel()

	frame, rejected, err := waitForFrame(ctx, conn)
	switch {
	case frame != nil:
		if rejected > 0 {
			fmt.Printf("(ignored %d rejected frames before a valid one)\n", rejected)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X)\n", imu.FormatCommand(frame.Command()), frame.Command())
		fmt.Printf("  Length: %d bytes\n", frame.Length())
		fmt.Printf("  CRC: 0x%04X\n", frame.CRC())
		os.Exit(0)

	case err != nil:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	default:
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}

// waitForFrame returns the first valid frame, the number of frames rejected
// before it, and a read error if the connection failed. All are zero when ctx
// expires first.
func waitForFrame(ctx context.Context, conn Connection) (*imu.Frame, int, error) {
	results := make(chan decodeResult, 16)
	go readFrames(ctx, conn, results)

	rejected := 0
	for {
		select {
		case <-ctx.Done():
			return nil, rejected, nil
		case res := <-results:
			switch {
			case res.readErr != nil:
				return nil, rejected, res.readErr
			case res.decodeErr != nil:
				rejected++
			case res.frame != nil:
				return res.frame, rejected, nil
			}
		}
	}
}
