/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command httpcored is a minimal embedding example: it loads a Config,
// builds a Server around a small routed handler chain, and runs it behind
// an Acceptor until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	core "github.com/badu/httpcore"
	"github.com/badu/httpcore/accept"
	"github.com/badu/httpcore/chain"
	"github.com/badu/httpcore/config"
	"github.com/badu/httpcore/detect"
	"github.com/badu/httpcore/mux"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "httpcored",
		Short: "Runs an embeddable httpcore Server as a standalone daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "httpcored.yaml", "path to the connector configuration file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
	return cmd
}

func run(configPath, metricsAddr string) error {
	log := logrus.StandardLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Warn("no usable config file, falling back to defaults")
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("httpcored: %w", err)
	}

	srv := core.NewServer()
	srv.Log = log
	srv.ReadHeaderTimeout = cfg.Connector.MaxIdleTime
	srv.IdleTimeout = cfg.Connector.MaxIdleTime
	srv.MaxHeaderBytes = cfg.HTTP.RequestHeaderSize

	errHandle := core.NewErrorHandler()
	errHandle.ShowStacks = cfg.ErrorHandler.ShowStacks
	srv.SetErrorHandler(errHandle)

	srv.Handler = buildHandler(log)

	registry := prometheus.NewRegistry()
	acc := accept.New(srv, detect.HTTP1Factory{}, accept.Options{
		Addr:               fmt.Sprintf("%s:%d", cfg.Connector.Host, cfg.Connector.Port),
		Acceptors:          cfg.Connector.Acceptors,
		TCPKeepAlivePeriod: cfg.Connector.MaxIdleTime,
		SoLinger:           cfg.Connector.SoLinger,
		StopTimeout:        10 * time.Second,
	})
	acc.Stats().MustRegister(registry)

	metricsSrv := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics listener stopped")
		}
	}()

	if err := acc.Start(); err != nil {
		return fmt.Errorf("httpcored: starting acceptor: %w", err)
	}
	log.WithField("addr", acc.Addr()).Info("httpcored: accepting connections")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("httpcored: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = metricsSrv.Shutdown(ctx)
	if err := acc.Stop(ctx); err != nil {
		return fmt.Errorf("httpcored: during shutdown: %w", err)
	}
	return srv.Close()
}

// buildHandler wires a routed mux behind a chain.Scoped request-logging
// handler, the way a real deployment would layer cross-cutting concerns
// ahead of application routing.
func buildHandler(log *logrus.Logger) core.Handler {
	routes := mux.NewServeMux()
	routes.RegisterFunc("/healthz", func(_ string, _ *core.BaseRequest, w core.ResponseWriter, _ *core.Request) error {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(core.StatusOK)
		_, err := w.Write([]byte("ok\n"))
		return err
	})

	logging := chain.NewScoped(
		func(target string, base *core.BaseRequest, w core.ResponseWriter, r *core.Request, next func() error) error {
			start := time.Now()
			err := next()
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"target":   target,
				"duration": time.Since(start),
			}).Info("request")
			return err
		},
		nil,
	)

	return chain.Build([]core.Handler{logging, chain.NewWrapper(routes)})
}
