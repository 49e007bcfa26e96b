// Package api serves the operational status endpoint used by
// external monitoring.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dual-llm-trader/internal/credpool"
	"dual-llm-trader/internal/health"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/trade"
	"dual-llm-trader/internal/types"
)

type Server struct {
	addr    string
	symbol  string
	planner interfaces.Planner
	machine *trade.Machine
	pool    *credpool.Pool
	monitor *health.Monitor
	sink    interfaces.Sink
	started time.Time
}

func NewServer(addr, symbol string, planner interfaces.Planner, machine *trade.Machine,
	pool *credpool.Pool, monitor *health.Monitor, sink interfaces.Sink) *Server {
	return &Server{
		addr:    addr,
		symbol:  symbol,
		planner: planner,
		machine: machine,
		pool:    pool,
		monitor: monitor,
		sink:    sink,
		started: time.Now(),
	}
}

type statusPayload struct {
	Symbol        string          `json:"symbol"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Position      string          `json:"position"`
	EntryPrice    float64         `json:"entry_price,omitempty"`
	Directive     *directiveBrief `json:"directive"`
	Credentials   credsBrief      `json:"credentials"`
	AuditDegraded bool            `json:"audit_degraded"`
	Degraded      bool            `json:"degraded"`
}

type credsBrief struct {
	Total    int `json:"total"`
	Usable   int `json:"usable"`
	Cooldown int `json:"cooldown"`
}

type directiveBrief struct {
	ID         string `json:"id"`
	Bias       string `json:"bias"`
	Confidence int    `json:"confidence"`
	Version    uint64 `json:"version"`
	ExpiresAt  string `json:"expires_at"`
}

// Run serves until ctx is done. Failures to bind are returned; the
// caller decides whether status is load-bearing.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)

	srv := &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	logger.Info(ctx, "Status server listening", "addr", s.addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

// handleHealthz answers 503 only for the sustained dual-cadence
// credential starvation condition; everything else is 200.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.monitor.Degraded() {
		http.Error(w, "degraded: both cadences credential-starved", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := statusPayload{
		Symbol:        s.symbol,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Position:      string(types.PositionFlat),
		Credentials:   credsBrief(s.pool.Health()),
		AuditDegraded: s.sink.Degraded(),
		Degraded:      s.monitor.Degraded(),
	}
	if pos := s.machine.Position(); pos != nil {
		p.Position = string(types.PositionOpen)
		p.EntryPrice = pos.EntryPrice
	}
	if d := s.planner.Current(); d != nil {
		p.Directive = &directiveBrief{
			ID:         d.ID,
			Bias:       d.Bias,
			Confidence: d.Confidence,
			Version:    d.Version,
			ExpiresAt:  d.CreatedAt.Add(d.ValidFor).UTC().Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		logger.Warn(r.Context(), "Status encode failed", "error", err)
	}
}
