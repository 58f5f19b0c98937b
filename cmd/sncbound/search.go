package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/sncbound/internal/config"
	"github.com/cwbudde/sncbound/internal/opt"
	"github.com/cwbudde/sncbound/internal/store"
	"github.com/cwbudde/sncbound/internal/symbolic"
)

// searchFlags are the per-command overrides of the search settings.
type searchFlags struct {
	thetaGranularity   float64
	hoelderGranularity float64
	maxIterations      int
	workers            int
	traceDir           string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.thetaGranularity, "theta-granularity", 0, "Theta step size (overrides config)")
	cmd.Flags().Float64Var(&f.hoelderGranularity, "hoelder-granularity", 0, "Hölder step size (overrides config)")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "Cap on committed search steps (overrides config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent neighbour evaluations (overrides config)")
	cmd.Flags().StringVar(&f.traceDir, "trace-dir", "", "Directory for run records and traces (overrides config)")
}

// apply layers the flags that were set over cfg and validates the result.
func (f *searchFlags) apply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	if cmd.Flags().Changed("theta-granularity") {
		cfg.ThetaGranularity = f.thetaGranularity
	}
	if cmd.Flags().Changed("hoelder-granularity") {
		cfg.HoelderGranularity = f.hoelderGranularity
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = f.maxIterations
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if cmd.Flags().Changed("trace-dir") {
		cfg.TraceDir = f.traceDir
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newGradient(cfg config.Config) *opt.Gradient {
	return opt.NewGradient(cfg.Workers, cfg.MaxIterations)
}

// run persists one computation when a trace directory is configured.
// Without one every method is a no-op.
type run struct {
	id    string
	store store.Store
	trace *store.TraceWriter
}

// startRun opens the trace of a fresh run and hooks it to g.
func startRun(cfg config.Config, g *opt.Gradient) (*run, error) {
	if cfg.TraceDir == "" {
		return &run{}, nil
	}

	st, err := store.NewFSStore(cfg.TraceDir)
	if err != nil {
		return nil, err
	}
	r := &run{id: uuid.NewString(), store: st}
	if g != nil {
		tw, err := store.NewTraceWriter(cfg.TraceDir, r.id)
		if err != nil {
			return nil, err
		}
		r.trace = tw
		g.Observer = func(s opt.Step) {
			if err := tw.Write(traceEntry(s)); err != nil {
				slog.Warn("Failed to write trace entry", "run_id", r.id, "error", err)
			}
		}
	}

	slog.Info("Recording run", "run_id", r.id, "dir", cfg.TraceDir)
	return r, nil
}

// close flushes the trace. It is safe to call more than once.
func (r *run) close() {
	if r.trace == nil {
		return
	}
	if err := r.trace.Close(); err != nil {
		slog.Warn("Failed to close trace", "run_id", r.id, "error", err)
	}
	r.trace = nil
}

// finish closes the trace and saves rec under the run id.
func (r *run) finish(rec *store.Record) error {
	r.close()
	if r.store == nil {
		return nil
	}
	rec.RunID = r.id
	rec.Timestamp = time.Now().UTC()
	if err := r.store.SaveRun(rec); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func newRecord(model, mode string, cfg config.Config, res *opt.Result) *store.Record {
	return &store.Record{
		Model:              model,
		Mode:               mode,
		Strategy:           config.StrategyGradient,
		ThetaGranularity:   cfg.ThetaGranularity,
		HoelderGranularity: cfg.HoelderGranularity,
		Cost:               store.Float(res.Cost),
		Theta:              res.Position.Theta,
		Hoelder:            hoelderValues(res.Position.Params),
		Iterations:         res.Iterations,
		Evaluations:        res.Evaluations,
		Capped:             res.Capped,
	}
}

func traceEntry(s opt.Step) store.TraceEntry {
	return store.TraceEntry{
		Iteration: s.Iteration,
		Cost:      store.Float(s.Cost),
		Change:    s.Change.String(),
		Hoelder:   int(s.Hoelder),
		Theta:     s.Position.Theta,
		Params:    hoelderValues(s.Position.Params),
		Timestamp: time.Now().UTC(),
	}
}

func hoelderValues(params symbolic.Assignment) []store.HoelderValue {
	if len(params) == 0 {
		return nil
	}
	values := make([]store.HoelderValue, 0, len(params))
	for _, id := range params.IDs() {
		h := params[id]
		values = append(values, store.HoelderValue{ID: int(h.ID), P: h.P, Q: h.Q})
	}
	return values
}

func printResult(w io.Writer, label string, res *opt.Result, runID string) {
	if math.IsNaN(res.Cost) {
		fmt.Fprintf(w, "%s: undefined\n", label)
		return
	}
	fmt.Fprintf(w, "%s: %g\n", label, res.Cost)
	fmt.Fprintf(w, "  theta: %g\n", res.Position.Theta)
	for _, id := range res.Position.Params.IDs() {
		h := res.Position.Params[id]
		fmt.Fprintf(w, "  hoelder %d: p=%g q=%g\n", h.ID, h.P, h.Q)
	}
	fmt.Fprintf(w, "  iterations: %d, evaluations: %d\n", res.Iterations, res.Evaluations)
	if res.Capped {
		fmt.Fprintln(w, "  stopped at the iteration cap")
	}
	if runID != "" {
		fmt.Fprintf(w, "  run: %s\n", runID)
	}
}
