// Package app wires configuration, logging, metrics and the connector
// together for the posnet commands.
package app

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/posnet/internal/cliconfig"
	"github.com/bft-labs/posnet/internal/metrics"
	"github.com/bft-labs/posnet/internal/spool"
	"github.com/bft-labs/posnet/pkg/log"
	"github.com/bft-labs/posnet/pkg/posnet"
)

// ShutdownTimeout bounds the metrics server shutdown.
const ShutdownTimeout = 5 * time.Second

// NewConnector builds a connector from a validated config.
func NewConnector(cfg cliconfig.Config, logger log.Logger, observer posnet.Observer) (*posnet.Connector, error) {
	method, err := posnet.ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}

	opts := []posnet.Option{
		posnet.WithLogger(logger),
		posnet.WithMethod(method),
		posnet.WithDebugLevel(cfg.DebugLevel),
	}
	if observer != nil {
		opts = append(opts, posnet.WithObserver(observer))
	}
	if cfg.CAFile != "" {
		tlsCfg, err := loadCA(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, posnet.WithTLSConfig(tlsCfg))
	}

	c := posnet.New(cfg.URL, opts...)
	if cfg.ForceTLS {
		c.ForceTLS()
	}
	return c, nil
}

func loadCA(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s contains no certificates", path)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Send submits one payload, bounded by cfg.Timeout when set.
func Send(ctx context.Context, cfg cliconfig.Config, c *posnet.Connector, payload string) (string, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	return c.Send(ctx, payload)
}

// Watch runs the spool watcher until ctx is done, serving /metrics on
// cfg.MetricsAddr when set.
func Watch(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	c, err := NewConnector(cfg, logger, collector)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	w := spool.New(spool.Config{
		Dir:           cfg.SpoolDir,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		SendTimeout:   cfg.Timeout,
	}, c, logger)
	return w.Run(ctx)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", log.Err(err))
		}
	}()
	logger.Info("metrics listening", log.String("addr", ln.Addr().String()))

	return func() { shutdownServer(srv, ShutdownTimeout, logger) }, nil
}

func shutdownServer(srv *http.Server, timeout time.Duration, logger log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", log.Err(err))
	}
}
