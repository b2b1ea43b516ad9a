// Package pipeline implements the Carbon Pulse ingestion engine.
//
// A run takes a batch of raw readings through the gate and the
// transformer, then hands the survivors to the store:
//
//	snapshot keys → validate → transform (+zone join) → insert
//
// The engine holds no per-run state beyond counters: two concurrent
// runs against the same store are safe, and the store's uniqueness
// constraints arbitrate any overlap the snapshots missed.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/store"
	"github.com/ajosegun/carbon-pulse/pkg/transform"
	"github.com/ajosegun/carbon-pulse/pkg/validate"
)

// Engine runs ingestion batches against one store.
type Engine struct {
	store      store.Store
	thresholds v1.Thresholds
	batchSize  int
	log        *zap.Logger

	// Cumulative counters across runs, for the metrics endpoint.
	readingsIn atomic.Int64
	accepted   atomic.Int64
	rejected   atomic.Int64
	inserted   atomic.Int64
	runs       atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets the insert chunk size (default 500).
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an ingestion engine.
func New(st store.Store, thresholds v1.Thresholds, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		thresholds: thresholds,
		batchSize:  500,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rejection records one reading the gate refused, with every rule it
// violated.
type Rejection struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Zone     string           `json:"zone,omitempty"`
	Failures []v1.RuleFailure `json:"failures"`
}

// Report is the outcome of one ingestion run.
type Report struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	ReadingsIn int         `json:"readings_in"`
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	Inserted   int         `json:"inserted"`
	Skipped    int         `json:"skipped"` // accepted but already stored
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Run ingests one batch of raw readings. Rule failures never abort the
// run: rejected readings are reported and the rest proceed. Returned
// errors are operational (store unreachable, snapshot failed).
func (e *Engine) Run(ctx context.Context, readings []v1.RawReading) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		ReadingsIn: len(readings),
	}
	log := e.log.With(zap.String("run_id", report.RunID))
	log.Info("ingestion run started", zap.Int("readings_in", len(readings)))

	keys, err := e.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot keys: %w", err)
	}
	zones, err := e.store.Zones(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}

	results := validate.ValidateBatch(readings, keys)

	accepted := make([]v1.RawReading, 0, len(readings))
	for i, res := range results {
		if res.Accepted {
			accepted = append(accepted, readings[i])
			continue
		}
		report.Rejections = append(report.Rejections, Rejection{
			Index:    i,
			ID:       readings[i].ID,
			Zone:     readings[i].Zone,
			Failures: res.Failures,
		})
		log.Debug("reading rejected",
			zap.String("id", readings[i].ID),
			zap.String("zone", readings[i].Zone),
			zap.Int("rule_failures", len(res.Failures)))
	}
	report.Accepted = len(accepted)
	report.Rejected = len(report.Rejections)

	transformed := transform.ApplyBatch(accepted, zones, e.thresholds)

	for start := 0; start < len(transformed); start += e.batchSize {
		end := start + e.batchSize
		if end > len(transformed) {
			end = len(transformed)
		}
		n, err := e.store.InsertReadings(ctx, transformed[start:end])
		if err != nil {
			return nil, fmt.Errorf("insert readings: %w", err)
		}
		report.Inserted += n
	}
	report.Skipped = report.Accepted - report.Inserted
	report.FinishedAt = time.Now().UTC()

	e.runs.Add(1)
	e.readingsIn.Add(int64(report.ReadingsIn))
	e.accepted.Add(int64(report.Accepted))
	e.rejected.Add(int64(report.Rejected))
	e.inserted.Add(int64(report.Inserted))

	log.Info("ingestion run complete",
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

// Totals is a snapshot of the engine's cumulative counters.
type Totals struct {
	Runs       int64
	ReadingsIn int64
	Accepted   int64
	Rejected   int64
	Inserted   int64
}

// Totals returns cumulative counters across all runs.
func (e *Engine) Totals() Totals {
	return Totals{
		Runs:       e.runs.Load(),
		ReadingsIn: e.readingsIn.Load(),
		Accepted:   e.accepted.Load(),
		Rejected:   e.rejected.Load(),
		Inserted:   e.inserted.Load(),
	}
}
