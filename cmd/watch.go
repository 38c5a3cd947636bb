// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

var (
	watchAll      bool
	watchDuration time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print switch status reports as they arrive",
	Long: `Connect to a device and print the DIP switch state.

By default only changes are printed. Use --all to print every report.
Statistics are printed on exit (Ctrl+C or --duration).

Supports both serial and WebSocket connections.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Print every report, not only changes")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 = run until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	color := term.IsTerminal(int(os.Stdout.Fd()))

	fmt.Printf("dipwatch - Switch Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := dipmsg.NewStatistics()
	reports := make(chan statusResult, 16)
	readErr := make(chan error, 1)

	go func() {
		for {
			sw, err := conn.ReadStatus()
			var frameErr *FrameError
			if errors.As(err, &frameErr) {
				reports <- statusResult{err: frameErr.Err}
				continue
			}
			if err != nil {
				readErr <- err
				return
			}
			reports <- statusResult{switches: sw}
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var deadline <-chan time.Time
	if watchDuration > 0 {
		deadline = time.After(watchDuration)
	}

	var last dipmsg.Switches
	first := true

	for {
		select {
		case r := <-reports:
			stats.Update(r.switches, r.err)
			if r.err != nil {
				fmt.Printf("[%s] [ERROR] %v\n", timestamp(), r.err)
				continue
			}
			if watchAll || first || r.switches != last {
				fmt.Printf("[%s] %s\n", timestamp(), FormatSwitches(r.switches, last, first, color))
			}
			last = r.switches
			first = false

		case err := <-readErr:
			if errors.Is(err, ErrConnectionClosed) {
				log.Printf("Connection closed")
			} else {
				log.Printf("Read error: %v", err)
			}
			fmt.Print("\n" + stats.String())
			return nil

		case <-sigs:
			fmt.Print("\n" + stats.String())
			return nil

		case <-deadline:
			fmt.Print("\n" + stats.String())
			return nil
		}
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05.000")
}

// FormatSwitches renders a switch vector as "1:On 2:Off ...". Switches that
// differ from prev are bracketed, or highlighted when color is set.
func FormatSwitches(sw, prev dipmsg.Switches, first, color bool) string {
	parts := make([]string, 0, dipmsg.NumSwitches)
	for i, on := range sw {
		label := fmt.Sprintf("%d:%s", i+1, dipmsg.Label(on))
		if !first && on != prev[i] {
			if color {
				label = "\033[1;33m" + label + "\033[0m"
			} else {
				label = "[" + label + "]"
			}
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}
