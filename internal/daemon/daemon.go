// Package daemon drives the single-threaded cooperative main loop: read a
// CAN frame, decode its identifier, filter, reassemble fast-packets,
// decode the PGN, feed the time monitor then (gated on time sync) the
// vessel and environmental monitors, attempt persistence, and run
// periodic housekeeping.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/broadcast"
	"github.com/oceanrelay/marinetelemetryd/internal/can"
	"github.com/oceanrelay/marinetelemetryd/internal/device"
	"github.com/oceanrelay/marinetelemetryd/internal/envmonitor"
	"github.com/oceanrelay/marinetelemetryd/internal/fastpacket"
	"github.com/oceanrelay/marinetelemetryd/internal/filter"
	"github.com/oceanrelay/marinetelemetryd/internal/handler"
	"github.com/oceanrelay/marinetelemetryd/internal/ident"
	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/oceanrelay/marinetelemetryd/internal/metrics"
	"github.com/oceanrelay/marinetelemetryd/internal/store"
	"github.com/oceanrelay/marinetelemetryd/internal/timemonitor"
	"github.com/oceanrelay/marinetelemetryd/internal/utils"
	"github.com/oceanrelay/marinetelemetryd/internal/vesselmonitor"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

// Config holds everything the daemon needs beyond the Store handle itself,
// assembled by cmd/marinetelemetryd/main.go from the loaded config.Config.
type Config struct {
	CANInterface  string
	CANReadTimeout time.Duration

	SourceFilter map[uint32]uint8

	SkewThresholdMs int64
	SetSystemTime   bool

	VesselStatus  handler.VesselStatusConfig
	Environmental handler.EnvironmentalConfig

	UDPEnabled bool
	UDPAddress string

	// SilentSourceWindow is how long a previously-active CAN source can go
	// quiet before the housekeeping tick warns about it.
	SilentSourceWindow time.Duration

	HousekeepingInterval time.Duration
	CANReconnectBackoff  time.Duration

	StoreReconnectMaxAttempts int
	StoreReconnectBaseBackoff time.Duration
	StoreReconnectMaxBackoff  time.Duration

	// OnMessage, if set, is invoked for every successfully decoded message
	// before it reaches the monitors — the hook cmd/marinetelemetryd uses
	// for --dump mode. Never called for Unknown.
	OnMessage func(env message.Envelope)
}

// DefaultConfig returns the standard housekeeping and backoff timings.
func DefaultConfig() Config {
	return Config{
		CANReadTimeout:            500 * time.Millisecond,
		SilentSourceWindow:        5 * time.Minute,
		HousekeepingInterval:      60 * time.Second,
		CANReconnectBackoff:       10 * time.Second,
		StoreReconnectMaxAttempts: 3,
		StoreReconnectBaseBackoff: 2 * time.Second,
		StoreReconnectMaxBackoff:  30 * time.Second,
	}
}

// Daemon wires every component package into one cooperative loop.
type Daemon struct {
	cfg Config
	log *zap.Logger

	canConn *can.Conn

	sourceFilter *filter.SourceFilter
	reassembler  *fastpacket.Reassembler
	timeMon      *timemonitor.Monitor
	vesselMon    *vesselmonitor.Monitor
	envMon       *envmonitor.Monitor
	vesselH      *handler.VesselStatusHandler
	envH         *handler.EnvironmentalStatusHandler
	devices      *device.Registry
	broadcaster  *broadcast.Broadcaster

	metrics       *metrics.Metrics
	summaryLogger *metrics.SummaryLogger

	lastHousekeepingAt time.Time
}

// New opens the CAN interface and assembles every component. The Store
// handle itself is supplied to Run, not New, since store lifecycle
// (reconnect, close) is the caller's responsibility.
func New(cfg Config, log *zap.Logger) (*Daemon, error) {
	conn, err := can.Open(cfg.CANInterface)
	if err != nil {
		return nil, fmt.Errorf("daemon: open can interface: %w", err)
	}
	if err := conn.SetReadTimeout(cfg.CANReadTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("daemon: set read timeout: %w", err)
	}

	m := metrics.New("marinetelemetry")

	d := &Daemon{
		cfg:           cfg,
		log:           log,
		canConn:       conn,
		sourceFilter:  filter.New(cfg.SourceFilter, log),
		reassembler:   fastpacket.New(),
		timeMon:       timemonitor.New(cfg.SkewThresholdMs, cfg.SetSystemTime, log),
		vesselMon:     vesselmonitor.New(),
		envMon:        envmonitor.New(),
		vesselH:       handler.NewVesselStatusHandler(cfg.VesselStatus, log),
		envH:          handler.NewEnvironmentalStatusHandler(cfg.Environmental, log),
		devices:       device.NewRegistry(),
		broadcaster:   broadcast.New(cfg.UDPAddress, cfg.UDPEnabled, log),
		metrics:       m,
		summaryLogger: metrics.NewSummaryLogger(m, log, cfg.HousekeepingInterval),
	}
	return d, nil
}

// Metrics exposes the Prometheus registry, for the HTTP /metrics endpoint.
func (d *Daemon) Metrics() *metrics.Metrics { return d.metrics }

// IsTimeSynced reports TimeMonitor's gate, for the /healthz endpoint.
func (d *Daemon) IsTimeSynced() bool { return d.timeMon.IsValidAndSynced() }

// Close releases the CAN socket and the UDP broadcaster.
func (d *Daemon) Close() error {
	berr := d.broadcaster.Close()
	cerr := d.canConn.Close()
	if cerr != nil {
		return cerr
	}
	return berr
}

// Run drives the loop until ctx is canceled or a fatal, non-recoverable
// error occurs. st is the persistence backend; on reconnect it is swapped
// in-place via store.Reconnector, never replaced, so handler.LoadTrip's
// reference stays valid.
func (d *Daemon) Run(ctx context.Context, st store.Store) error {
	if err := d.vesselH.LoadTrip(ctx, st); err != nil {
		d.log.Warn("daemon: failed to load active trip at startup", zap.Error(err))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := d.canConn.ReadFrame()
		switch {
		case errors.Is(err, can.ErrReadTimeout):
			// No frame within the poll window; normal, fall through to
			// housekeeping below.
		case err != nil:
			d.metrics.CANErrors.Inc()
			d.log.Warn("daemon: can read error, reconnecting", zap.Error(err))
			if rerr := d.reconnectCAN(ctx); rerr != nil {
				return fmt.Errorf("daemon: can reconnect failed: %w", rerr)
			}
			continue
		default:
			d.metrics.CANFrames.Inc()
			d.processFrame(ctx, st, frame)
		}

		d.housekeeping(ctx, st)
	}
}

func (d *Daemon) processFrame(ctx context.Context, st store.Store, frame can.Frame) {
	id := ident.Decode(frame.ID)
	if !filter.ShouldProcessByID(d.sourceFilter, id) {
		d.metrics.FilterDropped.Inc()
		return
	}
	d.devices.Observe(id.Source, id.PGN)

	data := frame.Data[:frame.Length]
	var payload []byte
	if fastpacket.IsFastPacketPGN(id.PGN) && frame.Length == 8 {
		complete, ok := d.reassembler.Append(id.PGN, id.Source, data)
		if !ok {
			d.metrics.FastPacketLive.Set(float64(d.reassembler.Len()))
			return
		}
		payload = complete
	} else {
		payload = data
	}
	d.metrics.FastPacketLive.Set(float64(d.reassembler.Len()))

	msg := message.Decode(id.PGN, id.Source, payload)
	if _, unknown := msg.(message.Unknown); unknown {
		d.metrics.DecodeErrors.Inc()
		if ce := d.log.Check(zap.DebugLevel, "daemon: undecodable PGN payload"); ce != nil {
			ce.Write(zap.Uint32("pgn", id.PGN), zap.String("payload", utils.FormatSpaces(payload)))
		}
		return
	}
	d.metrics.NMEAMessages.Inc()

	env := message.Envelope{PGN: id.PGN, Source: id.Source, Priority: id.Priority, Message: msg}
	if !filter.ShouldProcessMessage(d.sourceFilter, msg) {
		return
	}

	d.broadcaster.Send(id.PGN, id.Source, id.Priority, msg)
	if d.cfg.OnMessage != nil {
		d.cfg.OnMessage(env)
	}

	d.dispatch(ctx, st, frame.At, msg)
}

// dispatch feeds the time monitor unconditionally, then, only once time
// is synchronized, the vessel/environmental monitors and their handlers.
// Rows persisted while the clock is skewed would carry timestamps nobody
// can correlate, so everything downstream of the sync gate waits.
func (d *Daemon) dispatch(ctx context.Context, st store.Store, at time.Time, msg message.Message) {
	if sysTime, ok := msg.(message.SystemTime); ok {
		d.timeMon.ProcessSystemTime(sysTime)
	}
	d.metrics.GNSSTimeSkewMs.Set(float64(d.timeMon.LastMeasuredSkewMs()))
	if d.timeMon.IsTimeSynchronized() {
		d.metrics.GNSSSynced.Set(1)
	} else {
		d.metrics.GNSSSynced.Set(0)
	}

	if !d.timeMon.IsValidAndSynced() {
		return
	}

	switch m := msg.(type) {
	case message.PositionRapidUpdate:
		d.vesselMon.ProcessPosition(m)
	case message.COGSOGRapidUpdate:
		d.vesselMon.ProcessCOGSOG(m)
	case message.VesselHeading:
		d.vesselMon.ProcessHeading(m)
	case message.WindData:
		d.vesselMon.ProcessWind(m)
		d.envMon.ProcessWind(m)
	case message.EngineRapidUpdate:
		d.vesselMon.ProcessEngine(m)
	case message.Temperature:
		d.envMon.ProcessTemperature(m)
	case message.Humidity:
		d.envMon.ProcessHumidity(m)
	case message.ActualPressure:
		d.envMon.ProcessActualPressure(m)
	case message.Attitude:
		d.envMon.ProcessAttitude(m)
	}

	if status, ok := d.vesselMon.GenerateStatus(); ok {
		persisted, err := d.vesselH.Handle(ctx, st, status)
		if err != nil {
			d.log.Warn("daemon: vessel status persist failed", zap.Error(err))
		} else if persisted {
			d.metrics.VesselReports.Inc()
		}
	}
	if n, err := d.envH.Handle(ctx, st, d.envMon, at); err != nil {
		d.log.Warn("daemon: environmental status persist failed", zap.Error(err))
	} else {
		d.metrics.EnvReports.Add(float64(n))
	}
}

// reconnectCAN closes and reopens the CAN interface after a fixed
// backoff. Bus-off and interface-down conditions clear themselves on the
// hardware side; reopening the socket is all that's needed here.
func (d *Daemon) reconnectCAN(ctx context.Context) error {
	d.canConn.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.cfg.CANReconnectBackoff):
	}
	conn, err := can.Open(d.cfg.CANInterface)
	if err != nil {
		return err
	}
	if err := conn.SetReadTimeout(d.cfg.CANReadTimeout); err != nil {
		conn.Close()
		return err
	}
	d.canConn = conn
	return nil
}

// housekeeping runs the 60s-cadence tasks: metrics summary logging, store
// health-check plus bounded-retry reconnect, and silent-source warnings.
func (d *Daemon) housekeeping(ctx context.Context, st store.Store) {
	d.summaryLogger.CheckAndLog()

	now := time.Now()
	if now.Sub(d.lastHousekeepingAt) < d.cfg.HousekeepingInterval {
		return
	}
	d.lastHousekeepingAt = now

	d.metrics.KnownSources.Set(float64(d.devices.Count()))

	for _, node := range d.devices.SilentSince(now.Add(-d.cfg.SilentSourceWindow)) {
		d.log.Warn("daemon: CAN source has gone silent",
			zap.Uint8("source", node.Source), zap.Time("last_seen", node.LastSeen))
	}

	if err := st.HealthCheck(ctx); err != nil {
		d.metrics.StoreHealthy.Set(0)
		d.log.Warn("daemon: store health check failed, attempting reconnect", zap.Error(err))
		d.reconnectStore(ctx, st)
		return
	}
	d.metrics.StoreHealthy.Set(1)
}

// reconnectStore retries up to StoreReconnectMaxAttempts times with
// exponential backoff capped at StoreReconnectMaxBackoff. On success it
// reloads the in-progress trip, since a dropped connection may have
// outlived the handler's in-memory trip state.
func (d *Daemon) reconnectStore(ctx context.Context, st store.Store) {
	reconnector, ok := st.(store.Reconnector)
	if !ok {
		d.log.Warn("daemon: store backend does not support reconnect")
		return
	}

	correlationID := xid.New().String()
	backoff := d.cfg.StoreReconnectBaseBackoff
	for attempt := 1; attempt <= d.cfg.StoreReconnectMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err := reconnector.Reconnect(ctx); err != nil {
			d.log.Warn("daemon: store reconnect attempt failed",
				zap.String("correlation_id", correlationID), zap.Int("attempt", attempt), zap.Error(err))
			backoff *= 2
			if backoff > d.cfg.StoreReconnectMaxBackoff {
				backoff = d.cfg.StoreReconnectMaxBackoff
			}
			continue
		}

		d.log.Info("daemon: store reconnected",
			zap.String("correlation_id", correlationID), zap.Int("attempt", attempt))
		d.metrics.StoreHealthy.Set(1)
		if err := d.vesselH.LoadTrip(ctx, st); err != nil {
			d.log.Warn("daemon: failed to reload active trip after reconnect", zap.Error(err))
		}
		return
	}
	d.log.Warn("daemon: store reconnect exhausted attempts", zap.Int("attempts", d.cfg.StoreReconnectMaxAttempts))
}
