package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/attribution"
	"github.com/railzwaylabs/atelier/internal/client"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/commission"
	"github.com/railzwaylabs/atelier/internal/config"
	"github.com/railzwaylabs/atelier/internal/consultant"
	consultantdomain "github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/events"
	"github.com/railzwaylabs/atelier/internal/migration"
	"github.com/railzwaylabs/atelier/internal/notification"
	"github.com/railzwaylabs/atelier/internal/observability"
	"github.com/railzwaylabs/atelier/internal/order"
	"github.com/railzwaylabs/atelier/internal/payment"
	"github.com/railzwaylabs/atelier/internal/redis"
	"github.com/railzwaylabs/atelier/internal/reporting"
	reportingdomain "github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/railzwaylabs/atelier/internal/scheduler"
	"github.com/railzwaylabs/atelier/internal/seed"
	"github.com/railzwaylabs/atelier/internal/server"
	"github.com/railzwaylabs/atelier/pkg/db"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "atelier",
		Short:   "Atelier consultant attribution and commission engine",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(
		newMigrateCmd(),
		newServeCmd(),
		newSchedulerCmd(),
		newAllCmd(),
		newReportCmd(),
		newSeedCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and activate schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront, webhook and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(base(), server.Module).Run()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the monthly report and retention jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(base(), fx.Invoke(scheduler.Start)).Run()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			fx.New(base(), server.Module, fx.Invoke(scheduler.Start)).Run()
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Monthly consultant reports",
	}

	var period string
	run := &cobra.Command{
		Use:   "run",
		Short: "Send the monthly report batch now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReports(cmd.Context(), period)
		},
	}
	run.Flags().StringVar(&period, "period", "", "month to report as YYYY-MM (default: previous month)")
	report.AddCommand(run)
	return report
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert consultants from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "consultants.yaml", "path to the consultant seed file")
	return cmd
}

// base is every module except the long-running entrypoints.
func base() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		fx.Invoke(migration.EnforceSchemaGate),
		clock.Module,
		redis.Module,
		events.Module,
		attribution.Module,
		consultant.Module,
		client.Module,
		commission.Module,
		order.Module,
		payment.Module,
		notification.Module,
		reporting.Module,
		scheduler.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runReports(ctx context.Context, rawPeriod string) error {
	var (
		reports reportingdomain.Service
		clk     clock.Clock
	)
	app := fx.New(base(), fx.Populate(&reports, &clk))

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer app.Stop(context.Background())

	period := reportingdomain.PriorMonth(clk.Now(ctx))
	if rawPeriod != "" {
		parsed, err := reportingdomain.ParsePeriod(rawPeriod)
		if err != nil {
			return err
		}
		period = parsed
	}

	var bar *progressbar.ProgressBar
	result, err := reports.Run(ctx, period, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("reports "+period.String()),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	})
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d sent, %d failed of %d consultants\n",
		result.RunID, result.Sent, len(result.Failures), result.Processed)
	for _, f := range result.Failures {
		fmt.Printf("  %s: %s\n", f.ConsultantCode, f.Error)
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d reports failed", len(result.Failures))
	}
	return nil
}

func runSeed(ctx context.Context, path string) error {
	file, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	var dir consultantdomain.Directory
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		fx.Invoke(migration.EnforceSchemaGate),
		clock.Module,
		consultant.Module,
		fx.Populate(&dir),
	)
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer app.Stop(context.Background())

	result, err := seed.Apply(ctx, dir, file)
	if result != nil {
		fmt.Printf("upserted %d consultants: %s\n", len(result.Upserted), strings.Join(result.Upserted, ", "))
	}
	return err
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	id := cfg.NodeID
	if id <= 0 {
		id = 1
	}
	return snowflake.NewNode(id)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
