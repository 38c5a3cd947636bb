// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
	"github.com/Thermoquad/dipwatch/pkg/framer"
)

// Connection is a client view of a device: a stream of switch states and
// a way to drive LEDs
type Connection interface {
	// ReadStatus blocks for the next status report. A *FrameError means
	// one frame could not be decoded and the connection is still usable.
	ReadStatus() (dipmsg.Switches, error)
	SetLED(index int, on bool) error
	io.Closer
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// FrameError reports one frame that was not a valid status report
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return "bad frame: " + e.Err.Error() }

func (e *FrameError) Unwrap() error { return e.Err }

//////////////////////////////////////////////////////////////
// Serial
//////////////////////////////////////////////////////////////

// SerialConnection talks to a switch bridge MCU. Each received byte is a
// switch register; LED commands are written as JSON text.
type SerialConnection struct {
	port serial.Port
	buf  [1]byte
}

func (s *SerialConnection) ReadStatus() (dipmsg.Switches, error) {
	for {
		n, err := s.port.Read(s.buf[:])
		if err != nil {
			return dipmsg.Switches{}, err
		}
		if n == 1 {
			return dipmsg.SwitchesFromMask(s.buf[0]), nil
		}
	}
}

func (s *SerialConnection) SetLED(index int, on bool) error {
	data, err := dipmsg.EncodeCommand(index, on)
	if err != nil {
		return err
	}
	_, err = s.port.Write(data)
	return err
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

//////////////////////////////////////////////////////////////
// WebSocket
//////////////////////////////////////////////////////////////

// WebSocketConnection reads status reports from a dipwatch server.
// Reports are delimited with the same framer the server uses, so a report
// split across messages still decodes.
type WebSocketConnection struct {
	conn    *websocket.Conn
	framer  *framer.Framer
	pending []statusResult
	closed  bool // Track if connection has failed/closed

	writeMu sync.Mutex
}

type statusResult struct {
	switches dipmsg.Switches
	err      error
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	return &WebSocketConnection{conn: conn, framer: framer.New(framer.DefaultCapacity)}
}

func (w *WebSocketConnection) ReadStatus() (dipmsg.Switches, error) {
	for {
		if len(w.pending) > 0 {
			r := w.pending[0]
			w.pending = w.pending[1:]
			return r.switches, r.err
		}

		// Return immediately if connection is known to be closed
		if w.closed {
			return dipmsg.Switches{}, ErrConnectionClosed
		}

		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// Mark connection as closed to prevent further read attempts
			w.closed = true
			return dipmsg.Switches{}, err
		}

		// Status reports are text
		if messageType != websocket.TextMessage {
			continue
		}

		w.framer.Feed(data, w.decodeFrame, func(err error) {
			w.pending = append(w.pending, statusResult{err: &FrameError{Err: err}})
		})
	}
}

func (w *WebSocketConnection) decodeFrame(frame []byte) {
	sw, err := dipmsg.DecodeStatus(frame)
	if err != nil {
		w.pending = append(w.pending, statusResult{err: &FrameError{Err: err}})
		return
	}
	w.pending = append(w.pending, statusResult{switches: sw})
}

func (w *WebSocketConnection) SetLED(index int, on bool) error {
	data, err := dipmsg.EncodeCommand(index, on)
	if err != nil {
		return err
	}

	// One writer at a time; ReadStatus may run on another goroutine
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocketConnection) Close() error {
	w.writeMu.Lock()
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("WebSocket connection refused (HTTP 404): wrong path or another client is connected")
			}
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("DIPWATCH_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on flags
func OpenConnection() (Connection, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// osExit is replaced in tests
var osExit = os.Exit

// closeAndExit closes the connection before exiting so a WebSocket peer
// receives a close frame; deferred calls do not run on os.Exit.
func closeAndExit(conn io.Closer, code int) {
	conn.Close()
	osExit(code)
}
