// Package api serves the Carbon Pulse query API.
//
// Endpoints:
//
//	GET  /                                      — service info
//	GET  /health                                — liveness probe
//	GET  /ready                                 — readiness probe (store reachable)
//	GET  /metrics                               — Prometheus-compatible metrics
//	GET  /zones                                 — zone metadata list
//	GET  /zones/{zone}/carbon-intensity         — latest transformed reading
//	GET  /zones/{zone}/carbon-intensity/history — window of readings, oldest first
//	GET  /zones/{zone}/carbon-intensity/average — rollup over the last N hours
//	GET  /summary                               — per-zone rollups over the last N hours
//	POST /ingest                                — run an ingestion batch
//
// Every JSON endpoint wraps its payload in a uniform envelope with
// success, data, message, and timestamp fields.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/aggregate"
	"github.com/ajosegun/carbon-pulse/pkg/pipeline"
	"github.com/ajosegun/carbon-pulse/pkg/store"
)

// defaultWindowHours is the lookback for history, average, and summary
// endpoints when the request does not specify one.
const defaultWindowHours = 24

// Response is the uniform JSON envelope.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server hosts the query API over one store and one ingestion engine.
type Server struct {
	name   string
	addr   string
	store  store.Store
	engine *pipeline.Engine
	log    *zap.Logger

	startedAt time.Time
	ready     atomic.Bool
	server    *http.Server
}

// NewServer creates an API server. The engine may be nil, which
// disables the ingest endpoint.
func NewServer(name, addr string, st store.Store, engine *pipeline.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		name:      name,
		addr:      addr,
		store:     st,
		engine:    engine,
		log:       log,
		startedAt: time.Now(),
	}
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Router builds the full route table with CORS and panic recovery.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ready", s.handleReady).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	r.HandleFunc("/zones", s.handleZones).Methods("GET")
	r.HandleFunc("/zones/{zone}/carbon-intensity", s.handleLatest).Methods("GET")
	r.HandleFunc("/zones/{zone}/carbon-intensity/history", s.handleHistory).Methods("GET")
	r.HandleFunc("/zones/{zone}/carbon-intensity/average", s.handleAverage).Methods("GET")
	r.HandleFunc("/summary", s.handleSummary).Methods("GET")
	if s.engine != nil {
		r.HandleFunc("/ingest", s.handleIngest).Methods("POST")
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.RecoveryHandler()(cors(r))
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.log.Info("api server listening", zap.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ═══════════════════════════════════════════
// Handlers
// ═══════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"service": s.name,
		"uptime":  time.Since(s.startedAt).String(),
	}, "carbon intensity monitoring api")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{"status": "ok"}, "")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		s.respondError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"ready": true}, "")
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.store.Zones(r.Context())
	if err != nil {
		s.internalError(w, "list zones", err)
		return
	}

	list := make([]v1.ZoneMetadata, 0, len(zones))
	for _, z := range zones {
		list = append(list, z)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Zone < list[j].Zone })
	s.respond(w, http.StatusOK, list, "")
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]
	reading, err := s.store.Latest(r.Context(), zone)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("no readings for zone %s", zone))
		return
	}
	if err != nil {
		s.internalError(w, "latest reading", err)
		return
	}
	s.respond(w, http.StatusOK, reading, "")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]

	end := time.Now().UTC()
	start := end.Add(-defaultWindowHours * time.Hour)
	var err error
	if raw := r.URL.Query().Get("start"); raw != "" {
		if start, err = time.Parse(time.RFC3339, raw); err != nil {
			s.respondError(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if end, err = time.Parse(time.RFC3339, raw); err != nil {
			s.respondError(w, http.StatusBadRequest, "end must be RFC 3339")
			return
		}
	}
	if end.Before(start) {
		s.respondError(w, http.StatusBadRequest, "end must not precede start")
		return
	}

	readings, err := s.store.History(r.Context(), zone, start, end)
	if err != nil {
		s.internalError(w, "history", err)
		return
	}
	if readings == nil {
		readings = []v1.TransformedReading{}
	}
	s.respond(w, http.StatusOK, readings, "")
}

// averageWindow is the average endpoint payload: the zone rollup plus
// the bounds the caller asked for, which may be wider than the span of
// readings actually found (first_reading/last_reading).
type averageWindow struct {
	Hours       int       `json:"hours"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	v1.ZoneSummary
}

func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]
	hours, ok := s.windowHours(w, r)
	if !ok {
		return
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	readings, err := s.store.History(r.Context(), zone, start, end)
	if err != nil {
		s.internalError(w, "average window", err)
		return
	}

	meta, err := s.store.Zone(r.Context(), zone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, "zone metadata", err)
		return
	}

	summary := aggregate.Summarize(readings, meta)
	if summary.Zone == "" {
		summary.Zone = zone
	}
	s.respond(w, http.StatusOK, averageWindow{
		Hours:       hours,
		WindowStart: start,
		WindowEnd:   end,
		ZoneSummary: summary,
	}, "")
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	hours, ok := s.windowHours(w, r)
	if !ok {
		return
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.store.Window(r.Context(), since)
	if err != nil {
		s.internalError(w, "summary window", err)
		return
	}
	zones, err := s.store.Zones(r.Context())
	if err != nil {
		s.internalError(w, "zone metadata", err)
		return
	}

	summaries := aggregate.SummarizeAll(readings, zones)
	if summaries == nil {
		summaries = []v1.ZoneSummary{}
	}
	s.respond(w, http.StatusOK, summaries, "")
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var readings []v1.RawReading
	if err := json.NewDecoder(r.Body).Decode(&readings); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("decode batch: %v", err))
		return
	}

	report, err := s.engine.Run(r.Context(), readings)
	if err != nil {
		s.internalError(w, "ingest", err)
		return
	}
	s.respond(w, http.StatusOK, report,
		fmt.Sprintf("accepted %d of %d readings", report.Accepted, report.ReadingsIn))
}

// windowHours parses the hours query parameter, defaulting to 24.
func (s *Server) windowHours(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return defaultWindowHours, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		s.respondError(w, http.StatusBadRequest, "hours must be a positive integer")
		return 0, false
	}
	return hours, true
}

// ═══════════════════════════════════════════
// Metrics
// ═══════════════════════════════════════════

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	uptime := time.Since(s.startedAt).Seconds()
	fmt.Fprintf(w, "# HELP carbonpulse_uptime_seconds API server uptime.\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_uptime_seconds gauge\n")
	fmt.Fprintf(w, "carbonpulse_uptime_seconds{service=%q} %.1f\n", s.name, uptime)

	ready := 0
	if s.ready.Load() {
		ready = 1
	}
	fmt.Fprintf(w, "# HELP carbonpulse_ready Service readiness (1=ready).\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_ready gauge\n")
	fmt.Fprintf(w, "carbonpulse_ready{service=%q} %d\n", s.name, ready)

	if s.engine == nil {
		return
	}
	totals := s.engine.Totals()

	fmt.Fprintf(w, "# HELP carbonpulse_ingestion_runs_total Completed ingestion runs.\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_ingestion_runs_total counter\n")
	fmt.Fprintf(w, "carbonpulse_ingestion_runs_total{service=%q} %d\n", s.name, totals.Runs)

	fmt.Fprintf(w, "# HELP carbonpulse_readings_in_total Readings received for validation.\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_readings_in_total counter\n")
	fmt.Fprintf(w, "carbonpulse_readings_in_total{service=%q} %d\n", s.name, totals.ReadingsIn)

	fmt.Fprintf(w, "# HELP carbonpulse_readings_accepted_total Readings that passed the gate.\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_readings_accepted_total counter\n")
	fmt.Fprintf(w, "carbonpulse_readings_accepted_total{service=%q} %d\n", s.name, totals.Accepted)

	fmt.Fprintf(w, "# HELP carbonpulse_readings_rejected_total Readings the gate refused.\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_readings_rejected_total counter\n")
	fmt.Fprintf(w, "carbonpulse_readings_rejected_total{service=%q} %d\n", s.name, totals.Rejected)

	fmt.Fprintf(w, "# HELP carbonpulse_readings_inserted_total Readings written to the store.\n")
	fmt.Fprintf(w, "# TYPE carbonpulse_readings_inserted_total counter\n")
	fmt.Fprintf(w, "carbonpulse_readings_inserted_total{service=%q} %d\n", s.name, totals.Inserted)
}

// ═══════════════════════════════════════════
// Envelope helpers
// ═══════════════════════════════════════════

func (s *Server) respond(w http.ResponseWriter, code int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Response{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("request failed", zap.String("op", op), zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, "internal error")
}
