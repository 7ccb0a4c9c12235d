// Command view_start_positions plots the player start positions of the
// running CARLA town on its map image.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/carlaviz/startpositions/internal/carla"
	"github.com/carlaviz/startpositions/internal/config"
	"github.com/carlaviz/startpositions/internal/display"
	"github.com/carlaviz/startpositions/internal/display/window"
	"github.com/carlaviz/startpositions/internal/logging"
	"github.com/carlaviz/startpositions/internal/maps"
	"github.com/carlaviz/startpositions/internal/metrics"
	intOtel "github.com/carlaviz/startpositions/internal/otel"
	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"
)

const appName = "view_start_positions"

const (
	exitOK    = 0
	exitAbort = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	configDir, _ := fs.GetString("config")
	found, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if err := bindFlags(fs); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	// every record carries the attempt number once the viewer exists
	var current atomic.Pointer[viewer.Viewer]
	attemptAttrs := func() []slog.Attr {
		if v := current.Load(); v != nil && v.Attempts() > 0 {
			return []slog.Attr{slog.Int("attempt", v.Attempts())}
		}
		return nil
	}

	sessionStart := time.Now()
	slogManager, cleanup := setupLogging(stdout, sessionStart, attemptAttrs)
	defer cleanup()
	logger := slogManager.Logger()
	logger.Debug("Starting", "version", Version, "build", BuildDate, "config_found", found, "config_dir", configDir)

	viewerCfg := config.GetViewerConfig()
	selector, err := viewer.ParseSelector(viewerCfg.Positions)
	if err != nil {
		logger.Error("Invalid positions", "error", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCfg := config.GetServerConfig()
	logger.Info(fmt.Sprintf("listening to server %s:%d", serverCfg.Host, serverCfg.Port))

	viewerMetrics, err := metrics.NewViewer()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	sinks := createSinks(ctx, logger, logging.NewZerolog(stderr, slogManager.Level()))
	defer sinks.close(logger)
	logger.Debug("Report sinks", "sinks", sinks.String())

	v := viewer.New(viewer.Options{
		Host: serverCfg.Host,
		Port: serverCfg.Port,
		Dial: viewer.CarlaDialer(carla.Config{
			Host:            serverCfg.Host,
			Port:            serverCfg.Port,
			ConnectAttempts: serverCfg.ConnectAttempts,
			RetryDelay:      carla.DefaultRetryDelay,
			Timeout:         serverCfg.Timeout,
			Logger:          logger,
		}),
		Settings: carla.DefaultSettings(),
		Maps: maps.Config{
			AssetsDir:    config.GetMapConfig().AssetsDir,
			PixelDensity: config.GetMapConfig().PixelDensity,
			NodeDensity:  config.GetMapConfig().NodeDensity,
		},
		Selector: selector,
		Display:  newDisplay(config.GetDisplayConfig(), logger),
		Sinks:    sinks.sinks,
		Backoff:  viewerCfg.Backoff,
		Logger:   logger,
		Metrics:  viewerMetrics,
	})
	current.Store(v)

	err = v.Run(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stdout, "Cancelled by user. Bye!")
		return exitOK
	default:
		logger.Error("Aborted", "error", err)
		return exitAbort
	}
}

// setupLogging wires the console, the optional session log file, Graylog and
// OTel into one slog pipeline. cleanup flushes and closes all of them.
func setupLogging(console io.Writer, sessionStart time.Time, attrs logging.ContextProvider) (*logging.SlogManager, func()) {
	manager := logging.NewSlogManager()
	level := viper.GetString("logLevel")
	manager.Setup(logging.Options{Level: level, Console: console})
	logger := manager.Logger()

	opts := logging.Options{Level: level, Console: console, Context: attrs}
	var closers []func()

	var logFile *os.File
	if dir := viper.GetString("logsDir"); dir != "" {
		f, path, err := logging.OpenLogFile(dir, appName, sessionStart)
		if err != nil {
			logger.Error("Failed to create/open log file!", "error", err)
		} else {
			logFile = f
			opts.File = f
			closers = append(closers, func() { _ = f.Close() })
			logger.Debug("Begin logging in logs directory", "path", path)
		}
	}

	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGELFWriter(viper.GetString("graylog.address"))
		if err != nil {
			logger.Warn("Graylog disabled", "error", err)
		} else {
			opts.GELF = w
			closers = append(closers, func() { _ = w.Close() })
		}
	}

	otelCfg := config.GetOTelConfig()
	var provider *intOtel.Provider
	if otelCfg.Enabled {
		p, err := intOtel.New(context.Background(), intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    fileWriter(logFile),
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			provider = p
			opts.LoggerProvider = p.LoggerProvider()
		}
	}

	manager.Setup(opts)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := manager.Flush(ctx); err != nil {
			slog.Debug("log flush failed", "error", err)
		}
		if provider != nil {
			_ = provider.Shutdown(ctx)
		}
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return manager, cleanup
}

// fileWriter avoids handing a typed nil *os.File to an io.Writer field.
func fileWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

func newDisplay(cfg config.DisplayConfig, logger *slog.Logger) display.Display {
	if cfg.Mode == "file" {
		path := cfg.Output
		if path == "" {
			path = "start_positions.png"
		}
		return &display.File{Path: path, Logger: logger}
	}
	return window.New()
}
