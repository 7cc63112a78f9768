// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ysyzqq/lcepoll"
	"github.com/ysyzqq/lcepoll/internal/echo"
	"github.com/ysyzqq/lcepoll/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the echo server",
	Long: `Start the echo server. Every flag can also be set through an environment
variable LCEPOLL_<FLAG> (e.g. LCEPOLL_MAX_CONNECTIONS=500), and a yaml file given
with --config provides defaults that flags and environment override.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("config", "", "yaml configuration file")
	flags.Int("port", 8888, "TCP port to listen on")
	flags.String("bind", "", "address to bind, empty or \"any\" for all interfaces")
	flags.Int("workers", 4, "number of worker loops")
	flags.Int("max-connections", 200, "maximum number of open connections")
	flags.Bool("reuse-port", false, "set SO_REUSEPORT on the listening socket")
	flags.Duration("keepalive", 0, "TCP keepalive idle time, 0 disables it")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// loadServeConfig merges the config file, environment and flags.
func loadServeConfig() (cfg lcepoll.Config, err error) {
	cfg = lcepoll.Config{Port: 8888, Workers: 4, MaxConnections: 200}
	if path := viper.GetString("config"); path != "" {
		if cfg, err = lcepoll.LoadConfig(path); err != nil {
			return
		}
	}
	if viper.IsSet("port") {
		cfg.Port = viper.GetInt("port")
	}
	if viper.IsSet("bind") {
		cfg.BindAddress = viper.GetString("bind")
	}
	if viper.IsSet("workers") {
		cfg.Workers = viper.GetInt("workers")
	}
	if viper.IsSet("max-connections") {
		cfg.MaxConnections = viper.GetInt("max-connections")
	}
	return cfg, cfg.Validate()
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := logging.NewZapLogger(logging.ParseLevel(viper.GetString("log-level")))
	logging.SetDefaultLogger(logger)

	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	proto, err := echo.New(viper.GetString("protocol"), logger)
	if err != nil {
		return err
	}

	svr, err := lcepoll.NewServer(cfg,
		lcepoll.WithLogger(logger),
		lcepoll.WithReusePort(viper.GetBool("reuse-port")),
		lcepoll.WithTCPKeepAlive(viper.GetDuration("keepalive")),
	)
	if err != nil {
		return err
	}
	defer func() { logging.Error(svr.Destroy()) }()

	echo.Install(svr, proto)
	if err = svr.Start(); err != nil {
		return err
	}
	defer svr.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := viper.GetString("metrics-addr"); addr != "" {
		hs := &http.Server{Addr: addr, Handler: metricsHandler(svr)}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = hs.Shutdown(shutdownCtx)
		}()
		logger.Infof("metrics on http://%s/metrics", addr)
	}

	<-ctx.Done()
	logger.Infof("shutting down")
	return nil
}

func metricsHandler(svr *lcepoll.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		svr.WriteMetrics(w)
	})
	return mux
}
