package minerva

import (
	"context"

	"github.com/spf13/cobra"

	core "github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/types"
)

var opinionCmd = &cobra.Command{
	Use:   "opinion <corpus>",
	Short: "Build the opinion graph of a corpus",
	Long: `Opinion links the sentiments carried by sentence annotations to the entities
mentioned in those sentences. With --author-path, sentiments are split per
author of the file, e.g.

  minerva opinion corpus.zip --author-path "teiHeader/profileDesc/textClass/keywords/term[@type='author']"`,
	Args: cobra.ExactArgs(1),
	RunE: runOpinion,
}

var (
	opinionFlags      graphFlags
	opinionAnnotation string
	opinionAuthorPath string
)

func init() {
	rootCmd.AddCommand(opinionCmd)

	opinionFlags.register(opinionCmd, "opinion.json")
	opinionCmd.Flags().StringVar(&opinionAnnotation, "annotation-filter", "", "keep only entities whose annotation contains this text")
	opinionCmd.Flags().StringVar(&opinionAuthorPath, "author-path", "", "path to the author element of each file")
}

func runOpinion(cmd *cobra.Command, args []string) error {
	options := &core.OpinionOptions{
		AnnotationFilter: opinionAnnotation,
		AuthorPath:       opinionAuthorPath,
	}
	return opinionFlags.buildGraph(cmd.Context(), args[0], func(ctx context.Context, client *core.Client, src corpus.Source) (*types.GraphDocument, error) {
		return client.Opinions(ctx, src, options)
	})
}
