// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"io"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
	"github.com/Thermoquad/dipwatch/pkg/framer"
)

// RunReader serves inbound traffic until ctx is cancelled. It waits for a
// client, feeds every received byte to the framer and applies each complete
// LED command. When the connection ends it clears the slot and goes back to
// waiting, so the next client can connect.
func (m *Manager) RunReader(ctx context.Context) error {
	f := framer.New(m.cfg.FrameCapacity)
	buf := make([]byte, f.Capacity())

	for {
		c := m.current()
		if c == nil {
			select {
			case <-m.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		f.Reset()
		err := m.readConnection(ctx, c, f, buf)
		m.release(c, disconnectReason(ctx, err), err)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// readConnection returns when the stream fails or ctx is cancelled
func (m *Manager) readConnection(ctx context.Context, c *connection, f *framer.Framer, buf []byte) error {
	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	onFrame := func(frame []byte) {
		m.metrics.recordFrame()
		m.applyCommand(c, frame)
	}
	onError := func(err error) {
		m.metrics.recordOverflow()
		m.logger.Warn("inbound frame discarded", "conn", c.id, "error", err)
	}

	for {
		messageType, r, err := c.stream.NextReader()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			// Unread payload is skipped by the next NextReader call
			m.logger.Debug("ignoring non-text message", "conn", c.id, "type", messageType)
			continue
		}

		for {
			n, err := r.Read(buf)
			if n > 0 {
				f.Feed(buf[:n], onFrame, onError)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
		}
	}
}

// applyCommand decodes one frame and drives the addressed LED
func (m *Manager) applyCommand(c *connection, frame []byte) {
	cmd, err := dipmsg.DecodeCommand(frame)
	if err != nil {
		m.metrics.recordCommand("malformed")
		m.logger.Warn("ignoring malformed command", "conn", c.id, "error", err)
		return
	}

	result := "applied"
	if cmd.Value == dipmsg.Unparseable {
		// Drives the LED off
		result = "unparseable"
		m.logger.Warn("unparseable LED value, driving off", "conn", c.id, "led", cmd.Index)
	}

	if err := m.actuator.Set(cmd.Index, cmd.On()); err != nil {
		m.metrics.recordCommand("failed")
		m.logger.Error("failed to set LED", "conn", c.id, "led", cmd.Index, "error", err)
		return
	}

	m.metrics.recordCommand(result)
	m.logger.Debug("LED set", "conn", c.id, "led", cmd.Index, "on", cmd.On())
}

func disconnectReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "shutdown"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return "closed"
	default:
		return "error"
	}
}
