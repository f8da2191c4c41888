package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/config"
	"github.com/bluekiller/homemate-bridge/internal/discovery"
	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/mqtt"
	"github.com/bluekiller/homemate-bridge/internal/notify"
	"github.com/bluekiller/homemate-bridge/internal/server"
)

var (
	configPath string
	bindAddr   string
	bindPort   int
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge server",
	Long: `Start the HomeMate bridge and accept device connections.

Without a config file the bridge listens on 0.0.0.0:10001 (the port HomeMate
firmware connects to) with MQTT, diagnostics and mDNS disabled. Flags override
the corresponding config file values.`,
	Example: `  # Start with defaults, devices only
  homemate-bridge serve

  # Start with a config file (MQTT, device names, diagnostics)
  homemate-bridge serve --config /etc/homemate-bridge.yaml

  # Debug the wire protocol
  homemate-bridge serve --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	serveCmd.Flags().StringVar(&bindAddr, "bind", "", "Listen address for device connections")
	serveCmd.Flags().IntVar(&bindPort, "port", 0, "Listen port for device connections")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("bind") {
		cfg.BindAddress = bindAddr
	}
	if cmd.Flags().Changed("port") {
		cfg.BindPort = bindPort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	hub := notify.NewHub()
	srv := server.New(cfg, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Entity consumers. With MQTT enabled devices get topics; without it
	// state changes only show up in the log, but the queues still drain.
	factory := notify.EntityFactory(newLogEntity)
	var pub *mqtt.Publisher
	if cfg.MQTT.Enabled {
		pub, err = mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return err
		}
		defer pub.Disconnect()
		factory = pub.Entity
	}

	for _, kind := range []notify.Kind{notify.KindLight, notify.KindCover} {
		updater := notify.NewUpdater(hub.Queue(kind), factory)
		go updater.Run(ctx)
	}

	if cfg.Diagnostics.Enabled {
		diag := server.NewDiag(cfg.Diagnostics.Listen, srv.Registry())
		go func() {
			if err := diag.Start(); err != nil {
				logging.Error("Diagnostics endpoint failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = diag.Shutdown(shutdownCtx)
		}()
	}

	if cfg.MDNS.Enabled {
		adv, err := discovery.Advertise(cfg.MDNS.Instance, cfg.BindPort)
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping bridge...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// logEntity is the hub consumer used when MQTT is disabled.
type logEntity struct {
	device notify.Device
	handle notify.CallbackHandle
}

func newLogEntity(d notify.Device) notify.Entity {
	logging.Info("Device online",
		zap.String("uid", d.UID()),
		zap.String("name", d.DeviceName()),
	)
	e := &logEntity{device: d}
	e.handle = d.RegisterCallback(func() {
		logging.Debug("Device state changed", zap.String("uid", d.UID()))
	})
	return e
}

func (e *logEntity) Rebind(d notify.Device) {
	logging.Info("Device reconnected",
		zap.String("uid", d.UID()),
		zap.String("name", d.DeviceName()),
	)
	old, oldHandle := e.device, e.handle
	e.device = d
	e.handle = d.RegisterCallback(func() {
		logging.Debug("Device state changed", zap.String("uid", d.UID()))
	})
	old.RemoveCallback(oldHandle)
}
