// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a valid status report",
	Long: `Wait for a valid status report on the connection until timeout.

This command connects to a serial bridge or WebSocket and waits for one
well-formed switch status report. Undecodable frames are counted and skipped.

Exit codes:
  0 - Report received before timeout
  1 - Timeout reached without receiving a valid report
  2 - Connection error

A 404 on connect usually means another client already holds the device.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a report")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("dipwatch - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for status report...\n\n")

	reportChan := make(chan dipmsg.Switches, 1)
	errChan := make(chan error, 1)

	go func() {
		badFrames := 0
		for {
			sw, err := conn.ReadStatus()
			var frameErr *FrameError
			if errors.As(err, &frameErr) {
				badFrames++
				continue
			}
			if err != nil {
				errChan <- err
				return
			}
			if badFrames > 0 {
				fmt.Printf("(skipped %d bad frames before first report)\n", badFrames)
			}
			reportChan <- sw
			return
		}
	}()

	select {
	case sw := <-reportChan:
		fmt.Printf("SUCCESS: Received status report\n")
		fmt.Printf("  Switches: %s\n", FormatSwitches(sw, sw, true, false))
		fmt.Printf("  Register: 0x%02X\n", sw.Mask())
		closeAndExit(conn, 0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		closeAndExit(conn, 2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No status report received within %d seconds\n", probeTimeout)
		closeAndExit(conn, 1)
	}

	return nil
}
