package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-triage/internal/arxiv"
	"github.com/pdiddy/paper-triage/internal/embedding"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/internal/sink"
	"github.com/pdiddy/paper-triage/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run (--date YYYY-MM-DD | --ids FILE)",
	Short: "Run the enrichment pipeline over a day's papers or an id list",
	Long: `Run selects papers either by arXiv submission date across the configured
categories (--date) or from a file with one arXiv id per line (--ids), then
runs every stage in order. Papers already processed by a stage are skipped, so
re-running the same selection only does the work that is still pending.

The full paper set is saved after each stage. On SIGINT or SIGTERM the current
stage is saved and the run stops; the next run picks up where it left off.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().String("date", "", "submission date to ingest (YYYY-MM-DD)")
	runCmd.Flags().String("ids", "", "file with one arXiv id per line")
	runCmd.Flags().String("db", "", "sqlite database path (overrides store.path)")
	runCmd.Flags().StringSlice("stages", nil, "comma-separated subset of steps to run (default: all)")
	runCmd.MarkFlagsMutuallyExclusive("date", "ids")
	runCmd.MarkFlagsOneRequired("date", "ids")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	date, _ := cmd.Flags().GetString("date")
	idsFile, _ := cmd.Flags().GetString("ids")
	stageSel, _ := cmd.Flags().GetStringSlice("stages")

	only, err := parseSteps(stageSel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	ids, err := selectIDs(ctx, date, idsFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No papers selected.")
		return nil
	}

	topics, err := embedding.LoadTopics(cfg.Embedding.TopicsFile)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	sinks := []pipeline.SummarySink{pipeline.LogSink{Logger: logger}}
	if cfg.Summary.MetricsFile != "" {
		sinks = append(sinks, observability.NewMetricsSink(cfg.Summary.MetricsFile))
	}
	if len(cfg.Summary.KafkaBrokers) > 0 {
		k := sink.NewKafkaSink(cfg.Summary.KafkaBrokers, cfg.Summary.KafkaTopic)
		defer k.Close()
		sinks = append(sinks, k)
	}

	orch := pipeline.NewOrchestrator(st, logger, sinks...)
	runLog := observability.WithRunContext(logger, orch.RunID())

	papers, _, err := orch.Load(ctx, ids)
	if err != nil {
		return err
	}

	summary, err := orch.Execute(ctx, buildStages(cfg, st, topics, runLog, only), papers)
	summary.Write(out)
	return err
}

// selectIDs resolves the run's selection. Exactly one of date and idsFile
// is set; flag validation enforces it before this runs.
func selectIDs(ctx context.Context, date, idsFile string) ([]string, error) {
	if date != "" {
		day, err := time.Parse(arxiv.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
		}
		return arxiv.NewFeed(cfg.Arxiv).IDsForDate(ctx, day)
	}

	ids, err := arxiv.ReadIDsFile(idsFile)
	if err != nil {
		return nil, err
	}
	if err := arxiv.CheckLimit(len(ids), cfg.Arxiv.MaxPapers); err != nil {
		return nil, err
	}
	return ids, nil
}
