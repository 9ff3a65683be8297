// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/spf13/cobra"
)

var (
	simVersion      int
	simValues       int
	simCorruptEvery int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as the IMU on the connection",
	Long: `Answer READ_DATA and FIRMWARE_CHECK requests like the IMU firmware does.

READ_DATA responses carry --values float32 samples of slowly moving sine
waves. With --corrupt-every N the CRC of every Nth response is damaged, which
exercises the CRC error path of a master (for example a second imulink
running poll on the other end of a virtual serial pair).`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simVersion, "version", 1, "Firmware version byte to report")
	simulateCmd.Flags().IntVar(&simValues, "values", 6, "Number of float32 values per READ_DATA response")
	simulateCmd.Flags().IntVar(&simCorruptEvery, "corrupt-every", 0, "Corrupt the CRC of every Nth response (0 = never)")
}

// sineSampler returns n values that follow phase-shifted sine waves over time
func sineSampler(n int, start time.Time) func() []float32 {
	return func() []float32 {
		t := time.Since(start).Seconds()
		values := make([]float32, n)
		for i := range values {
			values[i] = float32(math.Sin(t + float64(i)*math.Pi/float64(n)))
		}
		return values
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simVersion < 0 || simVersion > 0xFF {
		return fmt.Errorf("version must fit in a byte (got %d)", simVersion)
	}
	if simValues < 0 || simValues*4 > imu.MaxDataSize {
		return fmt.Errorf("values must be between 0 and %d", imu.MaxDataSize/4)
	}

	conn, connInfo, _, err := openFromFlags(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("imulink - Device Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Firmware version: 0x%02X, %d values per sample\n", simVersion, simValues)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	device := &imu.Device{
		Version:      uint8(simVersion),
		Sample:       sineSampler(simValues, time.Now()),
		CorruptEvery: simCorruptEvery,
	}
	return device.Serve(ctx, conn)
}
