package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entityframe/internal/cli/ui"
	"github.com/conduit-lang/entityframe/internal/orm/modelcache"
	"github.com/conduit-lang/entityframe/internal/repro"
)

var (
	reproIterations  int
	reproConcurrency int
	reproTimeout     time.Duration
)

// NewReproCommand creates the repro command
func NewReproCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repro",
		Short: "Replay the Northwind customers-with-orders query concurrently",
		Long: `Run "customers that have orders" against a Northwind database over and over,
from several workers at once, each query with its own timeout. The run stops
at the first failure.

Defaults come from the repro section of entityframe.yml.`,
		Example: `  entityframe repro --iterations 1000 --concurrency 8`,
		Args:    cobra.NoArgs,
		RunE:    runRepro,
	}

	cmd.Flags().IntVarP(&reproIterations, "iterations", "n", 0, "Number of queries to run (default from config)")
	cmd.Flags().IntVar(&reproConcurrency, "concurrency", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().DurationVar(&reproTimeout, "timeout", 0, "Timeout of each query (default from config)")

	return cmd
}

func runRepro(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return err
	}
	if reproIterations > 0 {
		cfg.Repro.Iterations = reproIterations
	}
	if reproConcurrency > 0 {
		cfg.Repro.Concurrency = reproConcurrency
	}
	if reproTimeout > 0 {
		cfg.Repro.Timeout = reproTimeout
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, dialect, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runner := repro.NewRunner(db, modelcache.NewSource(logger), repro.Options{
		Iterations:  cfg.Repro.Iterations,
		Concurrency: cfg.Repro.Concurrency,
		Timeout:     cfg.Repro.Timeout,
		Dialect:     dialect,
	}, logger)

	var stats repro.Stats
	message := fmt.Sprintf("Running %d queries on %d workers", cfg.Repro.Iterations, cfg.Repro.Concurrency)
	err = ui.WithSpinner(out, message, noColor, func() error {
		var runErr error
		stats, runErr = runner.Run(ctx)
		return runErr
	})

	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("Iterations", fmt.Sprintf("%d/%d", stats.Iterations, cfg.Repro.Iterations))
	kv.AddRow("Rows", fmt.Sprint(stats.Rows))
	kv.Render()

	return err
}
