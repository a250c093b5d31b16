package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/envmonitor"
	"github.com/oceanrelay/marinetelemetryd/internal/store"
	"go.uber.org/zap"
)

// EnvironmentalConfig is database.environmental from the JSON config file,
// one persistence period per metric.
type EnvironmentalConfig struct {
	Periods [7]time.Duration // indexed by envmonitor.MetricID
}

func (c EnvironmentalConfig) period(id envmonitor.MetricID) time.Duration {
	return c.Periods[id]
}

// EnvironmentalStatusHandler persists each environmental metric on its own
// cadence, so a slow metric (e.g. cabin temperature every 5 minutes) never
// delays a fast one (wind speed every 30s).
type EnvironmentalStatusHandler struct {
	log *zap.Logger
	cfg EnvironmentalConfig

	lastPersist map[envmonitor.MetricID]time.Time
	now         func() time.Time
}

func NewEnvironmentalStatusHandler(cfg EnvironmentalConfig, log *zap.Logger) *EnvironmentalStatusHandler {
	return &EnvironmentalStatusHandler{
		cfg:         cfg,
		log:         log,
		lastPersist: make(map[envmonitor.MetricID]time.Time),
		now:         time.Now,
	}
}

// metricsDue reports every metric whose configured period has elapsed
// since it was last persisted. A metric that has never been persisted has
// no lastPersist entry and is immediately due.
func (h *EnvironmentalStatusHandler) metricsDue() []envmonitor.MetricID {
	now := h.now()
	var due []envmonitor.MetricID
	for _, id := range envmonitor.AllMetrics {
		last, ok := h.lastPersist[id]
		if !ok || now.Sub(last) >= h.cfg.period(id) {
			due = append(due, id)
		}
	}
	return due
}

// Handle computes and persists every metric that is due and has samples,
// clearing its buffer on success, and returns how many metrics were
// actually persisted. A single metric's store error is returned
// immediately without affecting the metrics already persisted; the caller
// warns and carries on.
func (h *EnvironmentalStatusHandler) Handle(ctx context.Context, s store.Store, mon *envmonitor.Monitor, at time.Time) (int, error) {
	persisted := 0
	for _, id := range h.metricsDue() {
		if !mon.HasSamples(id) {
			continue
		}
		data, ok := mon.Calculate(id)
		if !ok {
			continue
		}

		row := store.EnvironmentalDataRow{
			TimestampUTCMs: at.UnixMilli(),
			MetricID:       int(id),
			ValueAvg:       data.Avg,
			ValueMax:       data.Max,
			ValueMin:       data.Min,
			Unit:           id.Unit(),
		}
		if err := s.UpsertEnvironmentalData(ctx, row); err != nil {
			return persisted, fmt.Errorf("handler: persist %s: %w", id, err)
		}

		h.lastPersist[id] = h.now()
		mon.Cleanup(id)
		persisted++
	}
	return persisted, nil
}
