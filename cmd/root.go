// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/imulink/pkg/config"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "imulink",
	Short: "IMU Serial Link Tool",
	Long: `imulink - A CLI tool for talking to the IMU over its CRC-16 protected serial link.

Provides commands for computing and verifying CRC-16 checksums, polling the
IMU for sensor data, logging and recording raw frames, and simulating the
device for bench tests.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a YAML file given with --config; flags set on the
command line take precedence.

For WebSocket authentication, the password is read from the IMULINK_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig reads the --config file (or defaults) and applies any connection
// flags that were set explicitly
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") || cfg.Connection.Port == "" {
		cfg.Connection.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("url") || cfg.Connection.URL == "" {
		cfg.Connection.URL = wsURL
	}
	if flags.Changed("username") || cfg.Connection.Username == "" {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}

	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
