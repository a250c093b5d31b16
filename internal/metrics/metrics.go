// Package metrics exposes the daemon's Prometheus counters/gauges and a
// periodic summary logger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Metrics is the daemon's full counter/gauge set, registered once on a
// private prometheus.Registry so test instances never collide with the
// default global registry.
type Metrics struct {
	Registry *prometheus.Registry

	CANFrames      prometheus.Counter
	NMEAMessages   prometheus.Counter
	VesselReports  prometheus.Counter
	EnvReports     prometheus.Counter
	CANErrors      prometheus.Counter
	FastPacketLive prometheus.Gauge
	FilterDropped  prometheus.Counter
	DecodeErrors   prometheus.Counter
	StoreHealthy   prometheus.Gauge
	KnownSources   prometheus.Gauge
	GNSSTimeSkewMs prometheus.Gauge
	GNSSSynced     prometheus.Gauge
}

// New builds and registers every metric under the given namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CANFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "can_frames_total", Help: "CAN frames read from the bus.",
		}),
		NMEAMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "nmea_messages_total", Help: "NMEA2000 messages decoded.",
		}),
		VesselReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "vessel_reports_total", Help: "VesselStatus rows persisted.",
		}),
		EnvReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "environmental_reports_total", Help: "Environmental rows persisted.",
		}),
		CANErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "can_errors_total", Help: "CAN read errors triggering reconnect.",
		}),
		FastPacketLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fastpacket_buffers_live", Help: "In-flight fast-packet reassembly buffers.",
		}),
		FilterDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_filtered_total", Help: "Frames discarded by the source filter.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_errors_total", Help: "Frames that failed PGN decoding.",
		}),
		StoreHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "store_healthy", Help: "1 if the last store health check succeeded.",
		}),
		KnownSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "known_sources", Help: "Distinct CAN source addresses seen since startup.",
		}),
		GNSSTimeSkewMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gnss_time_skew_ms", Help: "Most recently measured GNSS/wall-clock skew.",
		}),
		GNSSSynced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gnss_time_synced", Help: "1 if GNSS time is within threshold.",
		}),
	}
	reg.MustRegister(
		m.CANFrames, m.NMEAMessages, m.VesselReports, m.EnvReports, m.CANErrors,
		m.FastPacketLive, m.FilterDropped, m.DecodeErrors, m.StoreHealthy,
		m.KnownSources, m.GNSSTimeSkewMs, m.GNSSSynced,
	)
	return m
}

// SummaryLogger periodically logs a snapshot of the counters, a cheap
// substitute for a dashboard when running headless.
type SummaryLogger struct {
	m            *Metrics
	log          *zap.Logger
	interval     time.Duration
	lastLoggedAt time.Time
	now          func() time.Time
}

func NewSummaryLogger(m *Metrics, log *zap.Logger, interval time.Duration) *SummaryLogger {
	return &SummaryLogger{m: m, log: log, interval: interval, now: time.Now}
}

// CheckAndLog logs the current counters if interval has elapsed since the
// last log. The last-logged time advances whenever the interval has
// elapsed, even when no logger is attached; otherwise it is left as is.
func (s *SummaryLogger) CheckAndLog() {
	now := s.now()
	if now.Sub(s.lastLoggedAt) < s.interval {
		return
	}
	s.lastLoggedAt = now
	if s.log == nil {
		return
	}
	s.log.Info("metrics snapshot",
		zap.Float64("can_frames", counterValue(s.m.CANFrames)),
		zap.Float64("nmea_messages", counterValue(s.m.NMEAMessages)),
		zap.Float64("vessel_reports", counterValue(s.m.VesselReports)),
		zap.Float64("environmental_reports", counterValue(s.m.EnvReports)),
		zap.Float64("can_errors", counterValue(s.m.CANErrors)),
	)
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
