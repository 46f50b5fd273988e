package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/gateway"
	"github.com/podlease/podlease/internal/manifest"
	"github.com/podlease/podlease/internal/metrics"
)

const metricsReadHeaderTimeout = 10 * time.Second

// Config holds all configuration options for the controller.
// Values are typically populated from CLI flags or environment variables.
type Config struct {
	// Namespace is the namespace holding workload pods and their records.
	Namespace string

	// NameTemplate renders pod and record names from the tenant identity.
	// It must contain exactly one %s verb.
	NameTemplate string

	// DefaultImage is the workload image used when discovery finds no
	// running workload to copy the image from.
	DefaultImage string

	// ListenAddr is the address for the gateway HTTP endpoint.
	ListenAddr string

	// MetricsAddr is the address for the Prometheus metrics endpoint.
	// Empty disables the metrics listener.
	MetricsAddr string

	// SweepInterval is how often idle records are scanned for eviction.
	SweepInterval time.Duration

	// WatchBackoff is the delay before re-establishing a broken watch.
	WatchBackoff time.Duration

	// Defaults is the workload spec applied to records created on first
	// touch.
	Defaults gateway.WorkloadDefaults
}

// Run wires the controller together and blocks until the context is
// cancelled or the gateway server fails.
//
// The function performs the following steps:
//  1. Builds the scheme and a watch-capable cluster client
//  2. Registers the Prometheus collector
//  3. Starts the record watcher and the idle sweeper
//  4. Serves metrics and the gateway HTTP endpoint until shutdown
//
//nolint:funlen,noinlineerr // controller setup requires multiple steps
func Run(ctx context.Context, cfg *Config) error {
	logger := slog.Default().With("component", "controller")
	logger.Info("initializing controller", "namespace", cfg.Namespace)

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))

	kubeClient, err := client.NewWithWatch(ctrl.GetConfigOrDie(), client.Options{Scheme: scheme})
	if err != nil {
		return errors.Wrap(err, "failed to create cluster client")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := metrics.NewCollector(registry)

	clusterGateway := cluster.New(kubeClient, cfg.Namespace)
	synthesizer := manifest.NewSynthesizer(clusterGateway, cfg.DefaultImage, collector, logger)
	reconciler := NewReconciler(clusterGateway, synthesizer, cfg.NameTemplate, collector, logger)

	watcher := NewWatcher(clusterGateway, reconciler, cfg.WatchBackoff, collector, logger)
	if err := watcher.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start record watcher")
	}

	defer watcher.Stop()

	sweeper := NewSweeper(clusterGateway, cfg.SweepInterval, collector, logger)

	go sweeper.Run(ctx)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, registry, logger)
	}

	service := gateway.NewService(clusterGateway, cfg.NameTemplate, cfg.Defaults, collector, logger)
	server := gateway.NewServer(cfg.ListenAddr, service, collector, logger)

	logger.Info("starting gateway server", "addr", cfg.ListenAddr)

	if err := server.Run(ctx); err != nil {
		return errors.Wrap(err, "gateway server failed")
	}

	return nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
