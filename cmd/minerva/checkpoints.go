package minerva

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/minerva/pkg/checkpoint"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and clean the checkpoints of linking runs",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved linking runs, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := checkpoint.NewManager(cfg.Linking.CheckpointDir)
		if err != nil {
			return err
		}
		checkpoints, err := manager.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(checkpoints) == 0 {
			fmt.Fprintln(out, "No checkpoints in", manager.GetCheckpointDir())
			return nil
		}
		for _, cp := range checkpoints {
			fmt.Fprintln(out, cp.Summary())
		}
		return nil
	},
}

var checkpointsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one run, with the stack of its last error",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := checkpoint.NewManager(cfg.Linking.CheckpointDir)
		if err != nil {
			return err
		}
		exists, err := manager.Exists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("no checkpoint for run %s", args[0])
		}
		cp, err := manager.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, cp.Summary())
		if cp.LastErrorStack != "" {
			fmt.Fprintf(out, "\n%s\n", cp.LastErrorStack)
		}
		return nil
	},
}

var checkpointsStalledCmd = &cobra.Command{
	Use:   "stalled",
	Short: "List unfinished runs that stopped saving progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetDuration("for")
		if after <= 0 {
			after = cfg.Linking.StallAfter
		}
		manager, err := checkpoint.NewManager(cfg.Linking.CheckpointDir)
		if err != nil {
			return err
		}
		stalled, err := manager.FindStalled(cmd.Context(), after)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, cp := range stalled {
			fmt.Fprintf(out, "%s\t%s\t%s\tidle %s\n", cp.RunID, cp.Input, cp.GetProgress(),
				time.Since(cp.LastUpdatedAt).Round(time.Second))
		}
		if len(stalled) > 0 {
			log.Warn("found stalled linking runs", "count", len(stalled), "idle_for", after)
		}
		return nil
	},
}

var checkpointsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete checkpoints older than a given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		age, _ := cmd.Flags().GetDuration("older-than")
		if age <= 0 {
			age = cfg.Linking.MaxCheckpointAge
		}
		manager, err := checkpoint.NewManager(cfg.Linking.CheckpointDir)
		if err != nil {
			return err
		}
		removed, err := manager.CleanOld(cmd.Context(), age)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoint(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
	checkpointsCmd.AddCommand(checkpointsListCmd, checkpointsShowCmd, checkpointsStalledCmd, checkpointsCleanCmd)

	checkpointsStalledCmd.Flags().Duration("for", 0, "idle time after which a run counts as stalled (default linking.stall_after)")
	checkpointsCleanCmd.Flags().Duration("older-than", 0, "age past which checkpoints are removed (default linking.max_checkpoint_age)")
}
