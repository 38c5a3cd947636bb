// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

var (
	ledBlink    int
	ledInterval time.Duration
)

var ledCmd = &cobra.Command{
	Use:   "led <index|all> <on|off>",
	Short: "Set one LED, or all of them",
	Long: `Send {"ledcb<N>":<bool>} commands to a device.

The index is 0-7 or "all". The value accepts on/off, true/false, yes/no
and 1/0.

With --blink N the LED is toggled N times, --interval apart, starting from
the given value, and left in that state at the end.

Exit codes:
  0 - All commands sent
  1 - One or more commands failed
  2 - Connection error`,
	Args: cobra.ExactArgs(2),
	RunE: runLED,
}

func init() {
	rootCmd.AddCommand(ledCmd)
	ledCmd.Flags().IntVar(&ledBlink, "blink", 0, "Toggle this many times before settling")
	ledCmd.Flags().DurationVar(&ledInterval, "interval", 250*time.Millisecond, "Delay between blink toggles")
}

// parseLEDArgs resolves the index and value arguments
func parseLEDArgs(indexArg, valueArg string) ([]int, bool, error) {
	var indexes []int
	if indexArg == "all" {
		for i := 0; i < dipmsg.NumLEDs; i++ {
			indexes = append(indexes, i)
		}
	} else {
		idx, err := strconv.Atoi(indexArg)
		if err != nil || idx < 0 || idx >= dipmsg.NumLEDs {
			return nil, false, fmt.Errorf("invalid LED index %q (0-%d or all)", indexArg, dipmsg.NumLEDs-1)
		}
		indexes = []int{idx}
	}

	raw, err := json.Marshal(valueArg)
	if err != nil {
		return nil, false, err
	}
	value := dipmsg.ParseBool(raw)
	if value == dipmsg.Unparseable {
		return nil, false, fmt.Errorf("invalid LED value %q", valueArg)
	}
	return indexes, value.Bool(), nil
}

func runLED(cmd *cobra.Command, args []string) error {
	indexes, on, err := parseLEDArgs(args[0], args[1])
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("dipwatch - LED Control\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	stats := dipmsg.NewStatistics()

	// A blink sequence ends on the requested value
	level := on
	if ledBlink%2 == 1 {
		level = !on
	}

	for step := 0; step <= ledBlink; step++ {
		for _, idx := range indexes {
			err := conn.SetLED(idx, level)
			stats.RecordCommand(err)
			if err != nil {
				fmt.Printf("LED %d %s: SEND FAILED: %v\n", idx, onOff(level), err)
				continue
			}
			fmt.Printf("LED %d %s\n", idx, onOff(level))
		}

		if step < ledBlink {
			time.Sleep(ledInterval)
			level = !level
		}
	}

	fmt.Printf("\n--- LED statistics ---\n")
	fmt.Printf("%d commands sent, %d failed\n", stats.CommandsSent, stats.CommandsFailed)

	if stats.CommandsFailed > 0 {
		closeAndExit(conn, 1)
	}
	return conn.Close()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
