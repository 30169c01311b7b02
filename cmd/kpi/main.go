// Command kpi runs the inspection KPI pipeline from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/inspection-kpi/config"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/metrics"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/store"
	"github.com/warp/inspection-kpi/store/xlsx"
	"github.com/warp/inspection-kpi/wostatus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Inspection KPI reconciliation and aggregation",
	Long: `kpi merges a SAP work-order status export into the inspection ledger,
writes one extract sheet per inspection category and reports the dashboard
metrics (backlog, monthly performance, aging breakdown).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// =============================================================================
// run
// =============================================================================

var runFlags struct {
	ledger  string
	feed    string
	output  string
	site    string
	variant string
	system  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline on a ledger workbook",
	Long: `Runs extract -> normalize -> reconcile -> categories on the ledger.

Without --feed the configured extraction command produces _woStatus.xlsx; if
none is configured the run fails with "SAP extraction not available".
The run and its log are recorded in the configured run store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.ledger == "" {
			return fmt.Errorf("--ledger is required")
		}
		ctx := cmd.Context()

		runs, kind, err := store.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer runs.Close()
		logger.Debug("run store ready", zap.String("backend", kind))

		p := pipeline.NewFromConfig(cfg, xlsx.OpenStore, logger)
		p.Runs = runs

		req := pipeline.RequestFromConfig(cfg, runFlags.ledger, runFlags.feed)
		if runFlags.output != "" {
			req.OutputDir = runFlags.output
		}
		if runFlags.site != "" {
			req.Site = runFlags.site
		}
		if runFlags.variant != "" {
			req.Variant = runFlags.variant
		}
		if runFlags.system != "" {
			req.System = runFlags.system
		}

		res := p.Run(ctx, req)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\nrun: %s\n", res.Message, res.RunID)
		if res.OutputPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "output: %s\n", res.OutputPath)
		}
		if !res.Success {
			return fmt.Errorf("run %s failed", res.RunID)
		}
		return nil
	},
}

// =============================================================================
// normalize
// =============================================================================

var normalizeCmd = &cobra.Command{
	Use:   "normalize <feed.xlsx>",
	Short: "Normalize a status feed workbook in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := xlsx.Open(args[0])
		if err != nil {
			return err
		}
		defer wb.Close()

		rep, err := wostatus.NewNormalizer(cfg.Schema, cfg.Codes, logger).Run(cmd.Context(), wb)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rows: %d, identifiers: %v, derived: %v, normalized: %v\n",
			rep.Rows, rep.Identifiers, rep.Derived, rep.Normalized)
		return nil
	},
}

// =============================================================================
// analyze
// =============================================================================

var analyzeFlags struct {
	site  string
	json  bool
	delay string
	month int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <ledger.xlsx>",
	Short: "Print the dashboard metrics of a ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		site := analyzeFlags.site
		if site == "" {
			site = cfg.Site
		}
		if _, ok := cfg.Sites[site]; site != "" && !ok {
			return fmt.Errorf("unknown site %q", site)
		}

		wb, err := xlsx.Open(args[0])
		if err != nil {
			return err
		}
		defer wb.Close()

		p := pipeline.NewFromConfig(cfg, xlsx.OpenStore, logger)
		agg := metrics.New(time.Now())
		records, err := p.LoadRecords(cmd.Context(), wb, site, agg.Now())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case analyzeFlags.delay != "":
			bucket := inspection.ParseAgingBucket(analyzeFlags.delay)
			if bucket == inspection.AgingNone {
				return fmt.Errorf("unknown delay %q", analyzeFlags.delay)
			}
			items := agg.BacklogDetails(records, bucket)
			return printJSONOr(out, analyzeFlags.json, items, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "CATEGORY\tUNIT\tSCOPE\tCLASS")
				for _, it := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Category, it.Unit, it.Scope, it.Compliance)
				}
			})
		case analyzeFlags.month != 0:
			if analyzeFlags.month < 1 || analyzeFlags.month > 12 {
				return fmt.Errorf("--month must be 1..12")
			}
			cats := agg.MonthlyCategoryPerformance(records, analyzeFlags.month)
			return printJSONOr(out, analyzeFlags.json, cats, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "CATEGORY\tYEARLY SCOPE\tMONTHLY TARGET\tACCOMPLISHED")
				for _, c := range cats {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", c.Category, c.YearlyScope, c.MonthlyTarget, c.Accomplished)
				}
			})
		default:
			a := agg.Analyze(records)
			return printJSONOr(out, analyzeFlags.json, a, func(w *tabwriter.Writer) {
				printAnalysis(w, a)
			})
		}
	},
}

func printJSONOr(out io.Writer, asJSON bool, v any, table func(w *tabwriter.Writer)) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func printAnalysis(w *tabwriter.Writer, a metrics.Analysis) {
	fmt.Fprintf(w, "Backlog\t%d\n", a.Backlog.Total)
	fmt.Fprintf(w, "SCE backlog\t%d (%.1f%%)\n", a.Backlog.SCE, a.Backlog.SCEPercentage)
	c := a.Performance.Completion
	fmt.Fprintf(w, "Completed\t%d / %d (%.1f%%)\n", c.CompletedJobs, c.TotalJobs, c.CompletionRate)
	fmt.Fprintf(w, "On time\t%.1f%%\n", c.OnTimeRate)
	fmt.Fprintf(w, "YTD target\t%d%%\n", c.YTDPercentage)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MONTH\tPLANNED\tCOMPLETED\tBACKLOG\tPROGRESS")
	for _, m := range a.Performance.Monthly {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\n", m.Label, m.TotalPlanned, m.CompletedCount, m.BacklogCount, m.ProgressPercentage)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "CATEGORY")
	for _, col := range a.Breakdown.Columns {
		fmt.Fprintf(w, "\t%s %s", col.Aging, col.Compliance)
	}
	fmt.Fprintln(w)
	for _, r := range a.Breakdown.Rows {
		fmt.Fprint(w, r.Category)
		for _, n := range r.Counts {
			fmt.Fprintf(w, "\t%d", n)
		}
		fmt.Fprintln(w)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "kpi.yaml", "YAML config path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd.Flags().StringVar(&runFlags.ledger, "ledger", "", "ledger workbook (.xlsx)")
	runCmd.Flags().StringVar(&runFlags.feed, "feed", "", "status feed workbook; skips extraction")
	runCmd.Flags().StringVar(&runFlags.output, "output", "", "output directory (default from config)")
	runCmd.Flags().StringVar(&runFlags.site, "site", "", "site code (row limit for the snapshot)")
	runCmd.Flags().StringVar(&runFlags.variant, "variant", "", "SAP report variant")
	runCmd.Flags().StringVar(&runFlags.system, "system", "", "SAP system")

	analyzeCmd.Flags().StringVar(&analyzeFlags.site, "site", "", "site code (row limit)")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.json, "json", false, "print JSON")
	analyzeCmd.Flags().StringVar(&analyzeFlags.delay, "delay", "", "list backlog rows of one aging bucket")
	analyzeCmd.Flags().IntVar(&analyzeFlags.month, "month", 0, "per-category progress for one month (1..12)")

	rootCmd.AddCommand(runCmd, normalizeCmd, analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
