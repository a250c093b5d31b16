package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oceanrelay/marinetelemetryd/internal/config"
	"github.com/oceanrelay/marinetelemetryd/internal/daemon"
	"github.com/oceanrelay/marinetelemetryd/internal/handler"
	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/oceanrelay/marinetelemetryd/internal/store"
	"github.com/oceanrelay/marinetelemetryd/internal/webapi"
)

func main() {
	app := &cli.App{
		Name:  "marinetelemetryd",
		Usage: "NMEA2000 CAN bus telemetry daemon",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name: "config", Aliases: []string{"c"},
				Value: cli.NewStringSlice("/etc/marinetelemetryd/config.json", "./config.json"),
				Usage: "config file search path, tried in order",
			},
			&cli.BoolFlag{
				Name: "validate-config", Aliases: []string{"v"},
				Usage: "load and validate the configuration, then exit",
			},
			&cli.StringFlag{Name: "udp-address", Usage: "override udp.address and enable UDP rebroadcast"},
			&cli.IntFlag{Name: "web-port", Usage: "override web.port and enable the /healthz and /metrics endpoints"},
			&cli.BoolFlag{Name: "dump", Usage: "print decoded messages as JSON to stdout instead of persisting"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	bootstrap, _ := zap.NewProduction()
	defer bootstrap.Sync()

	cfg, err := config.Load(c.StringSlice("config"), bootstrap)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if c.Bool("validate-config") {
		fmt.Println("config OK:", c.StringSlice("config"))
		return nil
	}

	if addr := c.String("udp-address"); addr != "" {
		cfg.UDP.Address = addr
		cfg.UDP.Enabled = true
	}
	if port := c.Int("web-port"); port != 0 {
		cfg.Web.Port = port
		cfg.Web.Enabled = true
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dump := c.Bool("dump")

	var st store.Store
	if dump {
		st = store.NewMemory()
		log.Info("dump mode: persistence disabled, decoded messages print to stdout")
	} else {
		st, err = store.Open(ctx, toStoreConnectionConfig(cfg.Database.Connection), log)
		if err != nil {
			return fmt.Errorf("connect store: %w", err)
		}
	}
	defer st.Close()

	dcfg := daemon.DefaultConfig()
	dcfg.CANInterface = cfg.CANInterface
	dcfg.SourceFilter = cfg.SourceFilterMap()
	dcfg.SkewThresholdMs = cfg.Time.SkewThresholdMs
	dcfg.SetSystemTime = bool(cfg.Time.SetSystemTime)
	moored, underway := cfg.VesselStatusIntervals()
	dcfg.VesselStatus = handler.VesselStatusConfig{IntervalMoored: moored, IntervalUnderway: underway}
	dcfg.Environmental = handler.EnvironmentalConfig{Periods: cfg.EnvironmentalPeriods()}
	dcfg.UDPEnabled = cfg.UDP.Enabled
	dcfg.UDPAddress = cfg.UDP.Address
	if dump {
		dcfg.OnMessage = dumpToStdout
	}

	d, err := daemon.New(dcfg, log)
	if err != nil {
		return fmt.Errorf("init daemon: %w", err)
	}
	defer d.Close()

	if cfg.Web.Enabled {
		srv := webapi.New(cfg.Web.Port, d.Metrics().Registry, st, d, log)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Warn("webapi: server exited", zap.Error(err))
			}
		}()
	}

	log.Info("marinetelemetryd starting", zap.String("can_interface", cfg.CANInterface))
	return d.Run(ctx, st)
}

func dumpToStdout(env message.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	fmt.Println(string(b))
}

func toStoreConnectionConfig(c config.ConnectionConfig) store.ConnectionConfig {
	return store.ConnectionConfig{
		Host:         c.Host,
		Port:         c.Port,
		Username:     c.Username,
		Password:     c.Password,
		DatabaseName: c.DatabaseName,
	}
}

// newLogger builds a zap.Logger writing JSON lines to a date-stamped file
// under cfg.Directory. The date in the file name is the rotation scheme:
// a long-running process reopens nothing, but each restart lands in the
// current day's file.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	if cfg.Directory == "" {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		return zcfg.Build()
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = "marinetelemetryd"
	}
	path := fmt.Sprintf("%s/%s-%s.log", cfg.Directory, prefix, time.Now().UTC().Format("2006-01-02"))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(file),
		level,
	)
	return zap.New(core), nil
}
