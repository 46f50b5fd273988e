package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/controller"
	"github.com/podlease/podlease/internal/gateway"
)

//nolint:gochecknoglobals // set by SetVersion from main
var (
	version = "development"
	gitsha  = "development"
)

func SetVersion(ver, sha string) {
	version = ver
	gitsha = sha
}

//nolint:gochecknoglobals // cobra command pattern
var rootCmd = &cobra.Command{
	Use:   "podlease",
	Short: "Per-tenant workload pod controller and gateway",
	Long: `A Kubernetes controller that lazily provisions one workload pod per
tenant identity, tracks each pod through a TenantWorkload record, routes
requests to ready pods, and evicts workloads after their idle timeout.`,
	RunE:          runController,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.Flags().String("namespace", "default", "Namespace for workload pods and records")
	rootCmd.Flags().String("name-template", "tw-%s", "Template rendering pod and record names from the tenant ID")
	rootCmd.Flags().String("default-image", "", "Workload image used when no running workload can be discovered (required)")
	rootCmd.Flags().String("listen-addr", ":8080", "Address for the gateway HTTP endpoint")
	rootCmd.Flags().String("metrics-addr", ":9090", "Address for the metrics endpoint (empty disables)")
	rootCmd.Flags().Duration("sweep-interval", controller.DefaultSweepInterval, "How often idle records are scanned for eviction")
	rootCmd.Flags().Duration("watch-backoff", controller.DefaultWatchBackoff, "Delay before re-establishing a broken watch")

	// Defaults applied to records created on first touch
	rootCmd.Flags().String("default-model", v1alpha1.DefaultModel, "Model assigned to new workloads")
	rootCmd.Flags().String("default-cpu", v1alpha1.DefaultCPU, "CPU request and limit for new workloads")
	rootCmd.Flags().String("default-memory", v1alpha1.DefaultMemory, "Memory request and limit for new workloads")
	rootCmd.Flags().Int64("default-timeout-seconds", v1alpha1.DefaultTimeoutSeconds, "Idle timeout for new workloads")
	rootCmd.Flags().Int32("default-port", v1alpha1.DefaultPort, "Container port for new workloads")

	_ = viper.BindPFlags(rootCmd.Flags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	viper.SetEnvPrefix("PODLEASE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("namespace", "default")
	viper.SetDefault("name-template", "tw-%s")
	viper.SetDefault("listen-addr", ":8080")
	viper.SetDefault("metrics-addr", ":9090")
	viper.SetDefault("sweep-interval", controller.DefaultSweepInterval)
	viper.SetDefault("watch-backoff", controller.DefaultWatchBackoff)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "json")
	viper.SetDefault("default-model", v1alpha1.DefaultModel)
	viper.SetDefault("default-cpu", v1alpha1.DefaultCPU)
	viper.SetDefault("default-memory", v1alpha1.DefaultMemory)
	viper.SetDefault("default-timeout-seconds", v1alpha1.DefaultTimeoutSeconds)
	viper.SetDefault("default-port", v1alpha1.DefaultPort)
}

func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "command execution failed")
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo

	switch viper.GetString("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if viper.GetString("log-format") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

//nolint:noinlineerr // inline error handling is fine here
func runController(_ *cobra.Command, _ []string) error {
	logger := setupLogger()
	slog.SetDefault(logger)

	ctrl.SetLogger(logr.FromSlogHandler(logger.Handler()))

	logger.Info("starting podlease",
		"version", version,
		"gitsha", gitsha,
	)

	defaultImage := viper.GetString("default-image")
	if defaultImage == "" {
		return errors.New("default-image is required (use --default-image or PODLEASE_DEFAULT_IMAGE env var)")
	}

	nameTemplate := viper.GetString("name-template")
	if !strings.Contains(nameTemplate, "%s") {
		return errors.Newf("name-template %q must contain a %%s verb", nameTemplate)
	}

	cfg := controller.Config{
		Namespace:     viper.GetString("namespace"),
		NameTemplate:  nameTemplate,
		DefaultImage:  defaultImage,
		ListenAddr:    viper.GetString("listen-addr"),
		MetricsAddr:   viper.GetString("metrics-addr"),
		SweepInterval: viper.GetDuration("sweep-interval"),
		WatchBackoff:  viper.GetDuration("watch-backoff"),

		Defaults: gateway.WorkloadDefaults{
			Model:          viper.GetString("default-model"),
			CPU:            viper.GetString("default-cpu"),
			Memory:         viper.GetString("default-memory"),
			TimeoutSeconds: viper.GetInt64("default-timeout-seconds"),
			Port:           viper.GetInt32("default-port"),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := controller.Run(ctx, &cfg); err != nil {
		return errors.Wrap(err, "failed to run controller")
	}

	return nil
}
