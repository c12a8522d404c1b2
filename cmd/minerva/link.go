package minerva

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"

	core "github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/alert"
	"github.com/soundprediction/minerva/pkg/checkpoint"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/export"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/resolver"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

var linkCmd = &cobra.Command{
	Use:   "link <corpus>",
	Short: "Propose Wikidata identifiers for the annotated mentions of a corpus",
	Long: `Link reads a directory of TEI files (or a zip archive), recognizes and searches
every gold <Entity> mention, and writes the candidate table and the minidump of
the fetched records.

Every completed stage is checkpointed; --resume continues the last unfinished
run over the same corpus. With --reannotate, a copy of the corpus is written
with annotation="PER" and the first candidate as wikidata_id on every entity.`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

var (
	linkPseudonyms string
	linkCandidates string
	linkMinidump   string
	linkReannotate string
	linkResume     bool
)

func init() {
	rootCmd.AddCommand(linkCmd)

	linkCmd.Flags().StringVar(&linkPseudonyms, "pseudonyms", "", "JSON file mapping pen names to real names")
	linkCmd.Flags().StringVarP(&linkCandidates, "candidates", "o", "candidates.json", "candidate table output")
	linkCmd.Flags().StringVar(&linkMinidump, "minidump", "minidump.json", "minidump output")
	linkCmd.Flags().StringVar(&linkReannotate, "reannotate", "", "write a re-annotated copy of the corpus to this directory")
	linkCmd.Flags().BoolVar(&linkResume, "resume", false, "resume the last unfinished run over this corpus")
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if linkReannotate != "" {
		if info, err := os.Stat(input); err != nil || !info.IsDir() {
			return fmt.Errorf("--reannotate needs a corpus directory, got %s", input)
		}
	}

	var pseudonyms map[string]string
	if linkPseudonyms != "" {
		if pseudonyms, err = kb.LoadPseudonyms(linkPseudonyms); err != nil {
			return err
		}
	}

	src, closer, err := corpus.Open(input)
	if err != nil {
		return err
	}
	defer closer.Close()

	alerter := alert.New(cfg.Alert, log)
	svc := &services{base: kb.NewBase()}
	if err := svc.knowledgeService(cfg, alerter); err != nil {
		return err
	}
	if err := svc.recognizerService(cfg, alerter); err != nil {
		return err
	}
	client := svc.client(cfg, pseudonyms, false)
	defer client.Close(context.Background())

	manager, err := checkpoint.NewManager(cfg.Linking.CheckpointDir)
	if err != nil {
		return err
	}
	cp, options, err := prepareRun(ctx, manager, input)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, types.ContextKeyRunID, cp.RunID)
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")

	result, err := client.Link(ctx, src, options)
	if err != nil {
		if saveErr := manager.RecordError(ctx, cp.RunID, err, errorStack(err)); saveErr != nil {
			log.Warn("failed to record error in checkpoint", "run_id", cp.RunID, "error", saveErr)
		}
		log.ErrorContext(ctx, "linking failed", "run_id", cp.RunID, "progress", cp.GetProgress(), "error", err)
		return err
	}

	if err := export.WriteCandidates(linkCandidates, result.Candidates); err != nil {
		return err
	}
	if err := export.WriteMinidump(linkMinidump, result.Minidump); err != nil {
		return err
	}
	log.Info("wrote linking results", "candidates", linkCandidates, "mentions", result.Candidates.Len(),
		"minidump", linkMinidump, "records", len(result.Minidump))

	if linkReannotate != "" {
		n := normalize.New(normalize.Config{NFC: cfg.Linking.NFC})
		report, err := export.Reannotate(ctx, input, linkReannotate, result.Candidates, n, log)
		if err != nil {
			return err
		}
		log.Info("re-annotated corpus", "dir", linkReannotate, "files", report.Files,
			"entities", report.Entities, "unlinked", len(report.Unlinked))
	}

	if err := manager.Delete(ctx, cp.RunID); err != nil {
		log.Warn("failed to delete checkpoint", "run_id", cp.RunID, "error", err)
	}
	return nil
}

// prepareRun returns the checkpoint of this run and the link options that
// save to it, resuming the last unfinished run when --resume is set.
func prepareRun(ctx context.Context, manager *checkpoint.Manager, input string) (*checkpoint.LinkCheckpoint, *core.LinkOptions, error) {
	var cp *checkpoint.LinkCheckpoint
	resumed := false
	if linkResume {
		var err error
		cp, resumed, err = manager.LoadOrCreate(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		if resumed && !cp.CanRetry(cfg.Linking.MaxAttempts, cfg.Linking.MaxCheckpointAge) {
			log.Warn("not resuming run past its retry limits, starting over",
				"run_id", cp.RunID, "attempts", cp.AttemptCount, "created", cp.CreatedAt)
			cp, resumed = nil, false
		}
	}
	if cp == nil {
		cp = checkpoint.NewCheckpoint(input)
		if err := manager.Save(ctx, cp); err != nil {
			return nil, nil, err
		}
	}

	options := &core.LinkOptions{Checkpoint: manager.Hook(cp)}
	if resumed && cp.Step != resolver.StepNone {
		progress := cp.Progress()
		options.Resume = &progress
		log.Info("resuming linking run", "run_id", cp.RunID, "progress", cp.GetProgress(), "attempts", cp.AttemptCount)
	}
	return cp, options, nil
}

// errorStack returns the stack of the panic behind err, or the current one.
func errorStack(err error) string {
	var panicErr *utils.PanicError
	if errors.As(err, &panicErr) {
		return string(panicErr.Stack)
	}
	return string(debug.Stack())
}
