package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/client"
	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/common/config"
	"github.com/amoylab/janus/internal/tap"
	"github.com/amoylab/janus/pkg/helper"
	"github.com/amoylab/janus/pkg/logger"
	"github.com/amoylab/janus/pkg/metrics"
	"github.com/amoylab/janus/pkg/trace"
	"github.com/amoylab/janus/pkg/utils"
	"github.com/amoylab/janus/pkg/version"
)

var (
	configPath string
	endpoint   string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of janus",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "janus version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:           cnst.CommandName,
		Short:         "Browser remote debugging client",
		Long:          `janus talks to Chrome and Firefox over the DevTools protocol, multiplexing any number of target sessions over one connection`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "", "path to configuration file, like /etc/janus/janus.yaml")
	rootCmd.PersistentFlags().StringVar(&endpoint, "url", "", "debugger endpoint, ws://... or http://host:port")
	rootCmd.AddCommand(versionCmd, callCmd, targetsCmd, watchCmd, serveCmd)
}

// loadConfig reads --conf, else janus.yaml when one is found, else defaults.
// --url overrides client.url.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configPath != "":
		c, _, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	case helper.CfgExists(cnst.JanusYaml):
		c, _, err := config.LoadConfig(cnst.JanusYaml)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		cfg = config.Default()
	}

	cfg.Client.URL = utils.FirstNonEmpty(endpoint, cfg.Client.URL, os.Getenv("JANUS_URL"))
	if cfg.Client.URL == "" {
		return nil, errors.New("no debugger endpoint: pass --url or set client.url")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app wires a client with the logging, metrics, tracing and diagnostic
// sinks described by the configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	sinks   *tap.Composite
	client  *client.Client

	// reconnected is signalled each time a reconnect reaches StateReady
	reconnected chan struct{}

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: lg, reconnected: make(chan struct{}, 1)}
	a.shutdownTracing, err = trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Warn("tracing disabled", zap.Error(err))
		a.shutdownTracing = func(context.Context) error { return nil }
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics)
	}
	a.sinks, err = tap.New(ctx, lg, &cfg.Tap)
	if err != nil {
		_ = a.shutdownTracing(ctx)
		return nil, err
	}

	opts := append(client.FromConfig(lg, cfg),
		client.WithSink(a.sinks),
		client.WithMetrics(a.metrics),
		client.WithStateHandler(func(from, to client.State) {
			lg.Debug("client state", zap.Stringer("from", from), zap.Stringer("to", to))
			if from == client.StateReconnecting && to == client.StateReady {
				select {
				case a.reconnected <- struct{}{}:
				default:
				}
			}
		}),
	)
	a.client = client.New(lg, opts...)
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	return a.client.Connect(ctx, a.cfg.Client.URL)
}

func (a *app) Close() {
	if err := a.client.Disconnect(); err != nil {
		a.logger.Warn("disconnect failed", zap.Error(err))
	}
	if err := a.sinks.Close(); err != nil {
		a.logger.Warn("failed to close diagnostic sinks", zap.Error(err))
	}
	if err := a.shutdownTracing(context.Background()); err != nil {
		a.logger.Warn("failed to shut down tracing", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
