package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to the configured sink, run log and cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			failed := runChecks(ctx, cmd.OutOrStdout(), cfg, logger)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

// runChecks opens each enabled feature on its own so one failure does not
// hide the others. It returns the number of failed checks.
func runChecks(ctx context.Context, w io.Writer, cfg *config.Config, logger *zap.Logger) int {
	failed := 0
	report := func(name string, enabled bool, err error) {
		switch {
		case !enabled:
			fmt.Fprintf(w, "  - %-10s disabled\n", name)
		case err != nil:
			fmt.Fprintf(w, "  ✗ %-10s %v\n", name, err)
			failed++
		default:
			fmt.Fprintf(w, "  ✓ %-10s ok\n", name)
		}
	}

	fmt.Fprintln(w, "Connectivity:")

	err := withApp(ctx, cfg, logger, features{sink: true}, func(a *app) error {
		return a.sink.Ping(ctx)
	})
	report("sink", cfg.Sink.Enabled(), err)

	err = withApp(ctx, cfg, logger, features{runLog: true}, func(a *app) error {
		return a.db.Ping(ctx)
	})
	report("run log", cfg.Database.Enabled, err)

	err = withApp(ctx, cfg, logger, features{cache: true}, func(a *app) error {
		return a.redis.Ping(ctx).Err()
	})
	report("cache", cfg.Redis.Enabled, err)

	return failed
}

func withApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, want features, fn func(*app) error) error {
	a, err := openApp(ctx, cfg, logger, want)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case want.sink && a.sink == nil, want.runLog && a.db == nil, want.cache && a.redis == nil:
		return nil
	}
	return fn(a)
}
