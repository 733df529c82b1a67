// File: internal/dashcast/server.go
// Brief: Browser dashboard server: page, WebSocket stream and JSON API.

// Package dashcast serves the leakwatch dashboard to browsers. The server is
// the display surface of the scan controller, the canvas of its flicker
// animation and a sink of the live feed; every change is pushed to connected
// pages over a WebSocket as escaped, server-rendered markup.
package dashcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/example/leakwatch/internal/alertstore"
	"github.com/example/leakwatch/internal/anim"
	"github.com/example/leakwatch/internal/dashboard"
	"github.com/example/leakwatch/internal/eventsource"
	"github.com/example/leakwatch/internal/feed"
	"github.com/example/leakwatch/internal/metrics"
	"github.com/example/leakwatch/internal/model"
	"github.com/example/leakwatch/internal/render"
)

const (
	defaultCanvasWidth  = 480
	defaultCanvasHeight = 240
	maxCanvasSide       = 4096
	maxIngestBody       = 64 * 1024
)

// Scanner is the controller as seen by the server.
type Scanner interface {
	StartScan()
	State() dashboard.State
	Generation() uint64
}

// AlertLister serves stored alert history.
type AlertLister interface {
	Recent(ctx context.Context, n int) ([]alertstore.Alert, error)
}

// Config wires a Server. Only Addr is required.
type Config struct {
	Addr    string
	Title   string
	Logger  logr.Logger
	Metrics *metrics.Metrics
	Alerts  AlertLister
	// Ingest receives events posted to /api/feed.
	Ingest func(ctx context.Context, ev model.LiveEvent) error
}

type Server struct {
	addr     string
	title    string
	hub      *hub
	upgrader websocket.Upgrader
	logger   logr.Logger
	metrics  *metrics.Metrics
	alerts   AlertLister
	ingest   func(ctx context.Context, ev model.LiveEvent) error

	scanner atomic.Pointer[scannerRef]

	width  atomic.Int64
	height atomic.Int64

	// mu orders state updates with their broadcasts so a joining client
	// sees a snapshot followed by every later change exactly once.
	mu      sync.Mutex
	view    *render.View
	enabled bool
	entries []feed.Entry // newest first
}

type scannerRef struct{ Scanner }

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	title := cfg.Title
	if strings.TrimSpace(title) == "" {
		title = "leakwatch"
	}
	s := &Server{
		addr:    cfg.Addr,
		title:   title,
		hub:     newHub(logger, cfg.Metrics),
		logger:  logger,
		metrics: cfg.Metrics,
		alerts:  cfg.Alerts,
		ingest:  cfg.Ingest,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.width.Store(defaultCanvasWidth)
	s.height.Store(defaultCanvasHeight)
	return s
}

// SetScanner attaches the controller that scan requests are forwarded to.
func (s *Server) SetScanner(sc Scanner) {
	if sc == nil {
		s.scanner.Store(nil)
		return
	}
	s.scanner.Store(&scannerRef{sc})
}

func (s *Server) loadScanner() Scanner {
	if ref := s.scanner.Load(); ref != nil {
		return ref.Scanner
	}
	return nil
}

// SeedFeed loads existing feed entries, newest first, for joining clients.
func (s *Server) SeedFeed(entries []feed.Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, entries...)
	s.mu.Unlock()
}

// ShowScanning implements dashboard.Surface.
func (s *Server) ShowScanning(v render.View) {
	s.showView(v)
}

// ShowView implements dashboard.Surface.
func (s *Server) ShowView(v render.View) {
	s.showView(v)
}

func (s *Server) showView(v render.View) {
	msg, err := encode(envelope{Type: msgView, View: newViewPayload(v)})
	if err != nil {
		s.logger.Error(err, "encode view")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = &v
	s.hub.Broadcast(msg)
}

// SetScanEnabled implements dashboard.Surface.
func (s *Server) SetScanEnabled(enabled bool) {
	msg, err := encode(envelope{Type: msgControl, Enabled: &enabled})
	if err != nil {
		s.logger.Error(err, "encode control")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	s.hub.Broadcast(msg)
}

// ScanEnabled reports whether the scan-again action is offered.
func (s *Server) ScanEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Size implements anim.Canvas using the most recent page size.
func (s *Server) Size() (int, int) {
	return int(s.width.Load()), int(s.height.Load())
}

// Draw implements anim.Canvas.
func (s *Server) Draw(f anim.Frame) error {
	if s.hub.Len() == 0 {
		return nil
	}
	msg, err := encode(envelope{Type: msgFrame, Frame: newFramePayload(f)})
	if err != nil {
		return err
	}
	s.hub.Broadcast(msg)
	return nil
}

// Prepend implements feed.Sink.
func (s *Server) Prepend(_ context.Context, e feed.Entry) error {
	msg, err := encode(envelope{Type: msgFeed, Feed: []feedPayload{newFeedPayload(e)}})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]feed.Entry{e}, s.entries...)
	s.hub.Broadcast(msg)
	return nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/feed", s.handleFeed)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/state", s.handleState)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "ok")
	})
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.hub.Close()
	}()
	s.logger.Info("dashboard ready", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	rendered := strings.ReplaceAll(indexHTML, "{{TITLE}}", template.HTMLEscapeString(s.title))
	_, _ = w.Write([]byte(rendered))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(err, "upgrade dashboard websocket")
		return
	}
	c := newClient(conn, s.logger)
	if err := s.join(c); err != nil {
		s.logger.Error(err, "encode dashboard snapshot")
		c.Close()
		return
	}
	go c.writeLoop()
	c.readLoop(s.handleClientMessage, func() {
		s.hub.Unregister(c)
	})
}

// join registers c and queues the current state as its first message.
func (s *Server) join(c *client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := envelope{Type: msgSnapshot, Enabled: &s.enabled}
	if s.view != nil {
		snap.View = newViewPayload(*s.view)
	}
	snap.Feed = make([]feedPayload, 0, len(s.entries))
	for _, e := range s.entries {
		snap.Feed = append(snap.Feed, newFeedPayload(e))
	}
	msg, err := encode(snap)
	if err != nil {
		return err
	}
	c.send <- msg
	s.hub.Register(c)
	return nil
}

func (s *Server) handleClientMessage(data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.logger.V(1).Info("ignoring malformed client message", "err", err)
		return
	}
	switch in.Type {
	case msgResize:
		s.resize(in.Width, in.Height)
	case msgScan:
		if err := s.requestScan(); err != nil {
			s.logger.V(1).Info("scan request refused", "err", err)
		}
	}
}

func (s *Server) resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	s.width.Store(int64(min(w, maxCanvasSide)))
	s.height.Store(int64(min(h, maxCanvasSide)))
}

var (
	errNoScanner   = errors.New("no scanner attached")
	errScanPending = errors.New("scan already in progress")
)

// requestScan starts a scan only while the scan-again action is offered.
func (s *Server) requestScan() error {
	sc := s.loadScanner()
	if sc == nil {
		return errNoScanner
	}
	if !s.ScanEnabled() {
		return errScanPending
	}
	sc.StartScan()
	return nil
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	switch err := s.requestScan(); {
	case errors.Is(err, errNoScanner):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, errScanPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scanning"})
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.ingest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "live feed disabled"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}
	ev, err := eventsource.Decode(body)
	if err != nil {
		s.metrics.IncInvalidEvents()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.ingest(r.Context(), ev); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": ev.ID})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeJSON(w, http.StatusOK, []alertstore.Alert{})
		return
	}
	n := int(parseInt64(r.URL.Query().Get("n"), alertstore.DefaultRecent))
	alerts, err := s.alerts.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error(err, "list alerts")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "alert history unavailable"})
		return
	}
	if alerts == nil {
		alerts = []alertstore.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

type stateResponse struct {
	State       string `json:"state"`
	Generation  uint64 `json:"generation"`
	ScanEnabled bool   `json:"scan_enabled"`
	FeedLength  int    `json:"feed_length"`
	Clients     int    `json:"clients"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{State: dashboard.StateIdle.String(), Clients: s.hub.Len()}
	if sc := s.loadScanner(); sc != nil {
		resp.State = sc.State().String()
		resp.Generation = sc.Generation()
	}
	s.mu.Lock()
	resp.ScanEnabled = s.enabled
	resp.FeedLength = len(s.entries)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func parseInt64(v string, def int64) int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
