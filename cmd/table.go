// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/Thermoquad/imulink/pkg/crc16"
	"github.com/spf13/cobra"
)

var tableCheck bool

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the CRC-16 lookup table",
	Long: `Print the 256-entry lookup table used by the CRC-16 engine, eight entries
per row, in the layout of a C array initialiser.

With --check every entry is recomputed by bit-serial polynomial division and
compared against the table. Firmware and host must agree bit for bit, so this
is the quickest way to compare against a table copied into device code.`,
	RunE: runTable,
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.Flags().BoolVar(&tableCheck, "check", false, "Cross-check the table against bit-serial division")
}

func runTable(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	printTable(out)

	if !tableCheck {
		return nil
	}

	mismatches, err := checkTable()
	if err != nil {
		return err
	}
	if mismatches > 0 {
		return fmt.Errorf("%d table entries disagree with bit-serial division", mismatches)
	}
	fmt.Fprintf(out, "\nAll 256 entries match bit-serial division (polynomial 0x%04X)\n", crc16.Polynomial)
	return nil
}

func printTable(w io.Writer) {
	table := crc16.Table()
	fmt.Fprintf(w, "// CRC-16 polynomial 0x%04X\n", crc16.Polynomial)
	fmt.Fprintf(w, "const uint16_t crc_table[256] = {\n")
	for row := 0; row < len(table); row += 8 {
		fmt.Fprint(w, "   ")
		for i := row; i < row+8; i++ {
			fmt.Fprintf(w, " 0x%04X,", table[i])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "};\n")
}

// checkTable returns the number of entries that differ from the bit-serial result
func checkTable() (int, error) {
	table := crc16.Table()
	mismatches := 0
	for i := range table {
		crc, err := crc16.ChecksumBitwise([]byte{byte(i)})
		if err != nil {
			return 0, err
		}
		if crc != table[i] {
			mismatches++
		}
	}
	return mismatches, nil
}
