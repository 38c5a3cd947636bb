// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
	"github.com/Thermoquad/dipwatch/pkg/hal"
)

// RunReporter sends the switch status to the connected client until ctx is
// cancelled. While no client is connected it sleeps for the idle tick. A
// failed write closes the connection; the reader then clears the slot.
func (m *Manager) RunReporter(ctx context.Context) error {
	limit := rate.Inf
	if m.cfg.ReportInterval > 0 {
		limit = rate.Every(m.cfg.ReportInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	idle := time.NewTicker(m.cfg.IdleTick)
	defer idle.Stop()

	for {
		c := m.current()
		if c == nil || c.closed.Load() {
			select {
			case <-idle.C:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		err := m.report(c)
		switch {
		case errors.Is(err, errSample):
			m.logger.Warn("failed to sample switches", "error", err)
			select {
			case <-idle.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err != nil:
			m.logger.Warn("status write failed, closing connection", "conn", c.id, "error", err)
			c.close()
		}
	}
}

// errSample marks a hardware read failure; the connection stays up
var errSample = errors.New("sample failed")

// report samples the switches once and writes a status message to c
func (m *Manager) report(c *connection) error {
	start := time.Now()

	sw, err := hal.SampleSwitches(m.sampler)
	if err != nil {
		m.metrics.recordSampleError()
		return fmt.Errorf("%w: %w", errSample, err)
	}

	data, err := dipmsg.EncodeStatus(sw)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if m.cfg.WriteTimeout > 0 {
		if err := c.stream.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if err := c.stream.WriteMessage(c.messageType, data); err != nil {
		return err
	}

	m.metrics.recordReport(len(data), time.Since(start))
	return nil
}
