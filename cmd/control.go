// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for switches and LEDs",
	Long: `Monitor the DIP switches and drive the LEDs from an interactive terminal UI.

Features:
  - Live switch display with change highlighting
  - LED toggles (arrow keys + space, or keys 0-7)
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

The server accepts one client at a time, so a browser tab on the same
device keeps this UI in the reconnecting state until it is closed.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// setLED sends one command on the current connection
func (cm *connectionManager) setLED(index int, on bool) error {
	conn := cm.getConn()
	if conn == nil {
		return errors.New("not connected")
	}
	return conn.SetLED(index, on)
}

func runControl(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	m := initialControlModel(cm, connInfo)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done) // Signal goroutines to stop
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromConnection()

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection reads status reports until the connection fails.
// Returns true if connection was lost, false if shutdown requested.
func (cm *connectionManager) readFromConnection() bool {
	batchChan := make(chan controlDataMsg, 100)
	readerDone := make(chan struct{})

	// Reader goroutine - decodes reports and sends to batch channel
	go func() {
		defer close(readerDone)
		conn := cm.getConn()
		if conn == nil {
			return
		}
		for {
			sw, err := conn.ReadStatus()

			var frameErr *FrameError
			switch {
			case errors.As(err, &frameErr):
				select {
				case batchChan <- controlDataMsg{decodeErr: frameErr.Err}:
				default:
				}
				continue
			case err != nil:
				return
			}

			select {
			case batchChan <- controlDataMsg{switches: sw}:
			default:
			}
		}
	}()

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch controlBatchMsg

			drainLoop:
				for {
					select {
					case msg := <-batchChan:
						batch.messages = append(batch.messages, msg)
					default:
						break drainLoop
					}
				}

				if len(batch.messages) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	select {
	case <-readerDone:
	case <-cm.done:
		return false
	}

	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		cm.p.Send(reconnectFailedMsg{err: err, retryIn: min(backoff*2, maxBackoff)})

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
