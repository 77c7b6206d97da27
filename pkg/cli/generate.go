package cli

import (
	"fmt"
	"io"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/export"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/services"
	"github.com/ekaya-inc/ekaya-datagen/pkg/services/workqueue"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [generator...]",
		Short: "Generate datasets",
		Long: `Generate one or more datasets. With no arguments the generators listed
in configuration run; if none are configured, every generator runs.`,
		Example: `  ekaya-datagen generate credit_card marketing --seed 7 --format csv,zip
  ekaya-datagen generate loan_risk --params params.yaml --sink sqlite`,
		RunE: runGenerate,
	}

	cmd.Flags().Int64("seed", 0, "Base seed (overrides configuration; unset draws a fresh seed per generator)")
	cmd.Flags().StringP("out", "o", "", "Output directory")
	cmd.Flags().StringSliceP("format", "f", nil, "Output formats: csv, zip, xlsx")
	cmd.Flags().StringP("params", "p", "", "YAML file of per-generator parameter overrides")
	cmd.Flags().Int("concurrency", 0, "Generators run at once")
	cmd.Flags().Duration("timeout", 0, "Per-generator time limit")
	cmd.Flags().Int("retry-empty", -1, "Reseed and retry this many times after an empty population")
	cmd.Flags().String("sink", "", "Sink type: none, postgres, mssql, mysql, sqlite")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := applyGenerateFlags(cmd, cfg); err != nil {
		return err
	}

	keys := args
	if len(keys) == 0 {
		keys = cfg.Generation.Generators
	}
	if len(keys) == 0 {
		keys = generators.Keys()
	}

	var overrides params.Overrides
	if cfg.Generation.ParamsFile != "" {
		overrides, err = params.LoadFile(cfg.Generation.ParamsFile)
		if err != nil {
			return err
		}
	}
	requests, err := buildRequests(keys, overrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger, features{runLog: true, cache: true, sink: true})
	if err != nil {
		return err
	}
	defer a.Close()

	seed, err := cfg.Seed.Value()
	if err != nil {
		return err
	}
	var (
		progressMu sync.Mutex
		progress   workqueue.Progress
	)
	svc := services.NewGenerationService(services.GenerationOptions{
		Seed:        seed,
		Concurrency: cfg.Generation.Concurrency,
		Timeout:     cfg.Generation.Timeout,
		RetryEmpty:  cfg.Generation.RetryEmpty,
		Formats:     cfg.Output.Formats,
		IORetry: workqueue.RetryConfig{
			MaxRetries:     cfg.Generation.IORetries,
			InitialBackoff: cfg.Generation.IOBackoff,
			MaxBackoff:     20 * cfg.Generation.IOBackoff,
			BackoffFactor:  2,
		},
		OnProgress: func(p workqueue.Progress) {
			progressMu.Lock()
			progress = p
			progressMu.Unlock()
		},
	}, services.GenerationDeps{
		Writer: export.NewWriter(cfg.Output.Dir, logger),
		Sink:   a.sink,
		Cache:  a.cache(),
		Runs:   a.runs(),
	}, logger)

	started := time.Now()
	logger.Info("Starting generation",
		zap.Strings("generators", keys),
		zap.String("seed", seedLabel(seed)),
		zap.Strings("formats", cfg.Output.Formats),
		zap.String("sink", cfg.Sink.Type))

	results, runErr := svc.Run(ctx, requests)
	printResults(cmd.OutOrStdout(), results)
	progressMu.Lock()
	printProgress(cmd.OutOrStdout(), progress)
	progressMu.Unlock()

	logger.Info("Generation finished",
		zap.Int("generators", len(results)),
		zap.Duration("elapsed", time.Since(started)))
	return runErr
}

// applyGenerateFlags lets explicitly set flags override loaded configuration.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		v, _ := flags.GetInt64("seed")
		cfg.Seed = config.SeedOf(v)
	}
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("format") {
		cfg.Output.Formats, _ = flags.GetStringSlice("format")
	}
	if flags.Changed("params") {
		cfg.Generation.ParamsFile, _ = flags.GetString("params")
	}
	if flags.Changed("concurrency") {
		cfg.Generation.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("timeout") {
		cfg.Generation.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("retry-empty") {
		cfg.Generation.RetryEmpty, _ = flags.GetInt("retry-empty")
	}
	if flags.Changed("sink") {
		cfg.Sink.Type, _ = flags.GetString("sink")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// buildRequests pairs each key with its overrides. Overrides for generators
// that are not being run are ignored; unknown keys are reported by the
// generation service.
func buildRequests(keys []string, overrides params.Overrides) ([]services.GenerationRequest, error) {
	seen := make(map[string]bool, len(keys))
	requests := make([]services.GenerationRequest, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if seen[key] {
			return nil, fmt.Errorf("generator %s requested twice", key)
		}
		seen[key] = true
		requests = append(requests, services.GenerationRequest{Generator: key, Overrides: overrides[key]})
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("no generators requested")
	}
	return requests, nil
}

func seedLabel(seed *int64) string {
	if seed == nil {
		return "random"
	}
	return strconv.FormatInt(*seed, 10)
}

// printProgress summarizes the task queue: every generator run plus its
// exports and sink loads.
func printProgress(w io.Writer, p workqueue.Progress) {
	if p.Total == 0 {
		return
	}
	fmt.Fprintf(w, "\ntasks: %d total, %d completed, %d failed, %d cancelled\n",
		p.Total, p.Completed, p.Failed, p.Cancelled)
}

func printResults(w io.Writer, results []*services.GenerationResult) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GENERATOR\tSTATUS\tSEED\tTABLES\tROWS\tLOADED\tFILES")
	for _, r := range results {
		rows := 0
		for _, n := range r.Counts {
			rows += n
		}
		status := string(r.Status)
		if r.CacheHit {
			status += " (cached)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.Generator, status, r.Seed, len(r.Counts), rows, r.SinkRows, len(r.Files))
	}
	_ = tw.Flush()

	// Failed and partial runs also list the tables they completed.
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s: %v\n", r.Generator, r.Err)
		if len(r.Counts) > 0 {
			names := make([]string, 0, len(r.Counts))
			for name := range r.Counts {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintf(w, "  %-28s %d\n", name, r.Counts[name])
			}
		}
	}
}
