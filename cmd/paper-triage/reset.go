package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-triage/internal/store"
	"github.com/pdiddy/paper-triage/pkg/types"
)

var resetCmd = &cobra.Command{
	Use:   "reset --stage NAME ID...",
	Short: "Return a stage to pending so it runs again",
	Long: `Reset sets the named stage back to pending for each paper, which is the
only way to reprocess a stage that already reached a terminal status. With
--cascade every later stage is reset too, so downstream results are
recomputed from the new output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().String("stage", "", "stage to reset ("+joinStages(types.Stages)+")")
	resetCmd.Flags().Bool("cascade", false, "also reset every later stage")
	resetCmd.Flags().String("db", "", "sqlite database path (overrides store.path)")
	_ = resetCmd.MarkFlagRequired("stage")

	rootCmd.AddCommand(resetCmd)
}

// stagesToReset returns stage, followed by every later stage when cascade
// is set.
func stagesToReset(stage types.Stage, cascade bool) []types.Stage {
	if !cascade {
		return []types.Stage{stage}
	}
	return types.Stages[stage.Index():]
}

func runReset(cmd *cobra.Command, ids []string) error {
	name, _ := cmd.Flags().GetString("stage")
	cascade, _ := cmd.Flags().GetBool("cascade")

	stage, err := types.ParseStage(name)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	papers, err := st.LoadMany(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := papers[id]; !ok {
			logger.Warn().Str("paper_id", id).Msg("paper not found, skipping")
		}
	}
	if len(papers) == 0 {
		return fmt.Errorf("none of the %d paper(s) are stored", len(ids))
	}

	stages := stagesToReset(stage, cascade)
	for _, p := range papers {
		for _, s := range stages {
			if err := p.Reset(s); err != nil {
				return err
			}
		}
	}
	if err := st.SaveMany(ctx, papers); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reset %s for %d paper(s).\n", joinStages(stages), len(papers))
	return nil
}

func joinStages(stages []types.Stage) string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
