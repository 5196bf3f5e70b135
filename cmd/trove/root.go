package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacentio/trove/document"
	"github.com/jacentio/trove/internal/backend"
	"github.com/jacentio/trove/internal/config"
	"github.com/jacentio/trove/internal/logging"
	"github.com/jacentio/trove/repository"
)

// app carries state shared by every command of one invocation.
type app struct {
	out  io.Writer
	open func(context.Context, *config.Config, *zap.Logger) (*backend.Backend, error)

	configFile string
	verbose    bool

	logger   *zap.Logger
	backend  *backend.Backend
	registry *prometheus.Registry
	metrics  *repository.Metrics
}

func newApp(out io.Writer) *app {
	return &app{out: out, open: backend.Open, logger: zap.NewNop()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "trove",
		Short: "Typed document repository over DynamoDB, MongoDB or memory",
		Long: `Trove reads and writes documents through the repository layer.
Filters, ordering and limits are translated to the configured backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a config file")
	root.PersistentFlags().String("backend", "", "Backend to use (memory, dynamodb, mongodb)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newGetCmd(a),
		newFindCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newClearCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.NewLoader(a.configFile).
		BindFlag("backend", cmd.Flags().Lookup("backend")).
		Load()
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		if a.metrics, err = repository.NewMetrics(a.registry); err != nil {
			return err
		}
	}

	b, err := a.open(cmd.Context(), cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	a.backend = b
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.registry != nil {
		families, err := a.registry.Gather()
		if err == nil {
			for _, mf := range families {
				a.logger.Debug("metric", zap.String("name", mf.GetName()), zap.Int("series", len(mf.GetMetric())))
			}
		}
	}
	_ = a.logger.Sync()
	if a.backend == nil {
		return nil
	}
	return a.backend.Close(ctx)
}

func (a *app) repo(collection string) (*repository.Repository[document.Fields], error) {
	return repository.FromRegistry[document.Fields](a.backend.Registry, a.backend.Name, collection,
		repository.WithLogger(a.logger),
		repository.WithMetrics(a.metrics),
	)
}

type output struct {
	UID  string          `json:"uid"`
	Data document.Fields `json:"data"`
}

func (a *app) write(doc repository.Document[document.Fields]) error {
	return json.NewEncoder(a.out).Encode(output{UID: doc.UID, Data: doc.Data})
}
