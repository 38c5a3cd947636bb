// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package web serves the device's HTTP surface: the browser page, a JSON
// status snapshot, optional metrics and the WebSocket upgrade endpoint.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
	"github.com/Thermoquad/dipwatch/pkg/hal"
)

//go:embed static/index.html
var static embed.FS

var page = template.Must(template.ParseFS(static, "static/index.html"))

// Session is the upgrade endpoint the page connects to
type Session interface {
	http.Handler
	Path() string
	Active() bool
}

// Options configures the handler
type Options struct {
	Session  Session
	Sampler  hal.Sampler
	Actuator hal.Actuator

	// Metrics is mounted at /metrics when non-nil
	Metrics http.Handler

	Logger *slog.Logger
}

// Status is the body of GET /api/status
type Status struct {
	Connected bool                 `json:"connected"`
	Switches  *dipmsg.DipSwitches  `json:"dipSwitches,omitempty"`
	LEDs      [dipmsg.NumLEDs]bool `json:"leds"`
	Error     string               `json:"error,omitempty"`
}

type handler struct {
	opts Options
	mux  *http.ServeMux
}

// NewHandler builds the device HTTP handler. Every WebSocket upgrade
// request goes to the session, whatever its path, so the session alone
// decides between accept and 404.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &handler{opts: opts, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.handlePage)
	h.mux.HandleFunc("GET /index.html", h.handlePage)
	h.mux.HandleFunc("GET /api/status", h.handleStatus)
	if opts.Metrics != nil {
		h.mux.Handle("GET /metrics", opts.Metrics)
	}
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.opts.Session.ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *handler) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := page.Execute(w, struct{ WSPath string }{WSPath: h.opts.Session.Path()})
	if err != nil {
		h.opts.Logger.Error("failed to render page", "error", err)
	}
}

func (h *handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		Connected: h.opts.Session.Active(),
		LEDs:      h.opts.Actuator.State(),
	}

	sw, err := hal.SampleSwitches(h.opts.Sampler)
	if err != nil {
		status.Error = err.Error()
	} else {
		report := dipmsg.NewStatusReport(sw)
		status.Switches = &report.DipSwitches
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
