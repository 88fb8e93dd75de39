package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/khanglvm/search-tracker/internal/logger"
	"github.com/khanglvm/search-tracker/internal/metrics"
	"github.com/khanglvm/search-tracker/internal/tracking"
)

const maxRequestSize = 1 << 20

// Serve request operations.
const (
	opQuery = "query"
	opTrack = "track"
	opAdd   = "add"
	opFlush = "flush"
	opPurge = "purge"

	// opInvalid labels requests that could not be decoded or named no known op.
	opInvalid = "invalid"
)

// NewServeCmd creates the 'serve' command, a long-running tracker fed with
// JSON lines on stdin.
func NewServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker as a sidecar reading JSON lines on stdin",
		Long: `Start a long-running tracker that reads one JSON request per line on stdin
and writes one JSON response per line on stdout.

Requests:
  {"op":"query","query_id":"8f2c"}                      set the current query id
  {"op":"track","type":"click","value":"sku-1"}         record with automatic attribution
  {"op":"add","query_id":"8f2c","type":"click","value":"sku-1","metadata":{"position":3}}
  {"op":"add","query_id":"8f2c","type":"click","value":42}   numeric values are keyed as "42"
  {"op":"flush"}                                        deliver pending events now
  {"op":"purge"}                                        drop expired submitted events

Pending events are also retried every tracking.flushIntervalSeconds and
expired events purged every tracking.purgeIntervalSeconds.
The process exits on SIGINT, SIGTERM, SIGQUIT or when stdin is closed, after
in-flight deliveries finish.`,
		Example: `  # Run with Prometheus metrics on :9464
  search-tracker serve --metrics-addr :9464

  # Pipe requests in
  echo '{"op":"add","query_id":"q1","type":"click","value":"sku-1"}' | search-tracker serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.address)")

	return cmd
}

// runServe starts the tracker with signal handling and graceful shutdown.
func runServe(cmd *cobra.Command, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Address = metricsAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, appOptions{Registry: reg})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Metrics.Address != "" {
		srv := startMetricsServer(cfg.Metrics.Address, reg, a.log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("metrics server shutdown failed", logger.Error(err))
			}
		}()
	}

	sched, err := startMaintenance(a, cfg.FlushInterval(), cfg.PurgeInterval())
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			a.log.Warn("scheduler shutdown failed", logger.Error(err))
		}
	}()

	a.log.Info("search-tracker serving",
		logger.String("collection", cfg.Collector.Collection),
		logger.String("backend", cfg.Storage.Backend),
		logger.Int("events", a.tracker.Len()),
		logger.Int("pending", a.tracker.Pending()),
		logger.Duration("flush_interval", cfg.FlushInterval()),
	)

	err = serveLoop(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
	a.log.Info("shutting down, waiting for in-flight deliveries")
	return err
}

func startMetricsServer(addr string, reg *prometheus.Registry, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", logger.String("address", addr), logger.Error(err))
		}
	}()
	return srv
}

// serveRequest is one line of input.
type serveRequest struct {
	Op       string            `json:"op"`
	QueryID  string            `json:"query_id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Value    any               `json:"value,omitempty"`
	Metadata tracking.Metadata `json:"metadata,omitempty"`
}

// serveResponse is one line of output.
type serveResponse struct {
	Op      string                `json:"op"`
	Outcome string                `json:"outcome,omitempty"`
	Flush   *tracking.FlushResult `json:"flush,omitempty"`
	Purged  *int                  `json:"purged,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// serveLoop handles requests from in until EOF or ctx is done.
func serveLoop(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxRequestSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("failed to read requests: %w", err)
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			resp := handleRequest(ctx, a, line)
			countRequest(a.metrics, resp)
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}

// handleRequest runs one request. Flush and purge are not cancelled with ctx.
func handleRequest(ctx context.Context, a *app, line []byte) serveResponse {
	var req serveRequest
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return serveResponse{Error: fmt.Sprintf("invalid request: %v", err)}
	}

	resp := serveResponse{Op: req.Op}
	switch req.Op {
	case opQuery:
		if req.QueryID == "" {
			resp.Error = "query_id is required"
			break
		}
		a.tracker.UpdateQueryID(req.QueryID)

	case opTrack, opAdd:
		value, err := requestValue(req.Value)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		var outcome tracking.Outcome
		if req.Op == opTrack {
			outcome = a.tracker.Track(ctx, req.Type, value, req.Metadata)
		} else {
			outcome = a.tracker.Add(ctx, req.QueryID, req.Type, value, req.Metadata)
		}
		resp.Outcome = outcome.String()

	case opFlush:
		res := a.tracker.Flush(context.WithoutCancel(ctx))
		resp.Flush = &res

	case opPurge:
		n := a.tracker.Purge(context.WithoutCancel(ctx))
		resp.Purged = &n

	default:
		resp.Error = fmt.Sprintf("unknown op %q", req.Op)
	}
	return resp
}

// requestValue turns a decoded JSON value into a ledger key. Strings are kept
// as they are and numbers are formatted, so 42 and "42" share an entry.
func requestValue(v any) (string, error) {
	switch v.(type) {
	case nil:
		return "", nil
	case string, json.Number:
		return tracking.FormatValue(v), nil
	default:
		return "", fmt.Errorf("value must be a string or number, got %T", v)
	}
}

// countRequest records the request in m when metrics are enabled.
func countRequest(m *metrics.Collector, resp serveResponse) {
	if m == nil {
		return
	}
	op := resp.Op
	switch op {
	case opQuery, opTrack, opAdd, opFlush, opPurge:
	default:
		op = opInvalid
	}
	m.RequestHandled(op, resp.Error == "")
}
