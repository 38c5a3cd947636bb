// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session owns the single WebSocket client of the device. It
// accepts or rejects upgrade requests, runs the reader that turns inbound
// frames into LED commands, and the reporter that pushes switch status.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/dipwatch/pkg/framer"
	"github.com/Thermoquad/dipwatch/pkg/hal"
)

// DefaultPath is the resource the browser page connects to
const DefaultPath = "/INDEX"

// ErrUpgradeRejected is reported when an upgrade request is refused
// because of its path or because a client is already connected
var ErrUpgradeRejected = errors.New("websocket upgrade rejected")

// Stream is the part of *websocket.Conn the session uses
type Stream interface {
	NextReader() (messageType int, r io.Reader, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Stream = (*websocket.Conn)(nil)

// Config holds session settings
type Config struct {
	// Path is the upgrade resource, compared case-insensitively
	Path string

	// FrameCapacity bounds one inbound message
	FrameCapacity int

	// ReportInterval paces status reports while a client is connected.
	// Zero sends reports back to back.
	ReportInterval time.Duration

	// IdleTick is how long the reporter sleeps between checks while idle
	IdleTick time.Duration

	// WriteTimeout bounds one status write. Zero waits forever.
	WriteTimeout time.Duration

	// CheckOrigin is passed to the upgrader; nil allows any origin
	CheckOrigin func(r *http.Request) bool

	Logger          *slog.Logger
	MetricsRegistry *prometheus.Registry
}

// DefaultConfig returns the settings the device ships with
func DefaultConfig() Config {
	return Config{
		Path:           DefaultPath,
		FrameCapacity:  framer.DefaultCapacity,
		ReportInterval: 100 * time.Millisecond,
		IdleTick:       time.Second,
	}
}

// connection is one accepted client
type connection struct {
	id          string
	stream      Stream
	messageType int
	connectedAt time.Time

	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stream.Close()
	})
}

// Manager owns the connection slot. At most one client is connected at a
// time; the slot is written only by accept and by the reader's teardown.
type Manager struct {
	cfg      Config
	sampler  hal.Sampler
	actuator hal.Actuator
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *Metrics

	mu       sync.Mutex
	slot     *connection
	reserved bool

	// wake holds at most one pending signal for the reader
	wake chan struct{}
}

// NewManager creates a session manager sampling switches from sampler and
// applying LED commands through actuator
func NewManager(cfg Config, sampler hal.Sampler, actuator hal.Actuator) *Manager {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.FrameCapacity <= 0 {
		cfg.FrameCapacity = def.FrameCapacity
	}
	if cfg.IdleTick <= 0 {
		cfg.IdleTick = def.IdleTick
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(_ *http.Request) bool { return true }
	}

	return &Manager{
		cfg:      cfg,
		sampler:  sampler,
		actuator: actuator,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  cfg.Logger.With("component", "session"),
		metrics: newMetrics(cfg.MetricsRegistry),
		wake:    make(chan struct{}, 1),
	}
}

// Path returns the upgrade resource path
func (m *Manager) Path() string {
	return m.cfg.Path
}

// Active reports whether a client is connected
func (m *Manager) Active() bool {
	return m.current() != nil
}

// ServeHTTP lets the manager be mounted directly on a mux
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.HandleUpgrade(w, r)
}

// HandleUpgrade accepts the request as the session client if it targets
// the configured path and no client is connected. Every other request gets
// a 404 and any existing connection is left alone.
func (m *Manager) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	m.Upgrade(w, r)
}

// Upgrade is HandleUpgrade with the outcome returned. The error wraps
// ErrUpgradeRejected when the request was answered with a 404.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) error {
	if !websocket.IsWebSocketUpgrade(r) || !m.matchPath(r.URL.Path) {
		return m.reject(w, r, "path")
	}
	if !m.reserve() {
		return m.reject(w, r, "busy")
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request
		m.unreserve()
		m.metrics.recordRejected("handshake")
		m.logger.Warn("websocket handshake failed", "remote", r.RemoteAddr, "error", err)
		return fmt.Errorf("handshake: %w", err)
	}

	m.install(ws, r.RemoteAddr)
	return nil
}

func (m *Manager) matchPath(path string) bool {
	return strings.EqualFold(path, m.cfg.Path)
}

func (m *Manager) reject(w http.ResponseWriter, r *http.Request, reason string) error {
	m.metrics.recordRejected(reason)
	m.logger.Debug("upgrade rejected", "path", r.URL.Path, "remote", r.RemoteAddr, "reason", reason)
	http.NotFound(w, r)
	return fmt.Errorf("%w: %s", ErrUpgradeRejected, reason)
}

// reserve claims the slot for an in-flight handshake
func (m *Manager) reserve() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot != nil || m.reserved {
		return false
	}
	m.reserved = true
	return true
}

func (m *Manager) unreserve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved = false
}

// install places an upgraded stream in the slot and wakes the reader
func (m *Manager) install(stream Stream, remote string) *connection {
	c := &connection{
		id:          uuid.NewString(),
		stream:      stream,
		messageType: websocket.TextMessage,
		connectedAt: time.Now(),
	}

	m.mu.Lock()
	m.slot = c
	m.reserved = false
	m.mu.Unlock()

	m.metrics.recordAccepted()
	m.logger.Info("client connected", "conn", c.id, "remote", remote)

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return c
}

func (m *Manager) current() *connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slot
}

// release closes c and clears the slot if it still holds c
func (m *Manager) release(c *connection, reason string, err error) {
	c.close()

	m.mu.Lock()
	if m.slot == c {
		m.slot = nil
	}
	m.mu.Unlock()

	m.metrics.recordDisconnected(reason)
	m.logger.Info("client disconnected",
		"conn", c.id,
		"reason", reason,
		"duration", time.Since(c.connectedAt).Round(time.Millisecond),
		"error", err)
}
