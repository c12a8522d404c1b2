package minerva

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	core "github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/types"
)

var coocCmd = &cobra.Command{
	Use:   "cooc <corpus>",
	Short: "Build the co-occurrence graph of a corpus",
	Long: `Cooc counts which tokens appear in the same sentences as each annotated
entity, scores every pair with a smoothed Dice coefficient and keeps the
strongest pairs of every entity.

With --target-property, each entity is replaced by the values of that claim
(e.g. P21 for sex or gender) and scores are normalized against the background
frequency of each token.`,
	Args: cobra.ExactArgs(1),
	RunE: runCooc,
}

var (
	coocFlags          graphFlags
	coocPOS            string
	coocNEFilter       string
	coocTargetProperty string
	coocMaxDegree      int
)

func init() {
	rootCmd.AddCommand(coocCmd)

	coocFlags.register(coocCmd, "cooc.json")
	coocCmd.Flags().StringVar(&coocPOS, "pos", "", "comma-separated POS tags to keep (default from cooc.pos_filter, empty keeps all)")
	coocCmd.Flags().StringVar(&coocNEFilter, "ne-filter", "", "keep only entities whose annotation contains this text")
	coocCmd.Flags().StringVar(&coocTargetProperty, "target-property", "", "claim property replacing each entity, e.g. P21")
	coocCmd.Flags().IntVar(&coocMaxDegree, "max-degree", 0, "links kept per entity (default from cooc.max_degree)")
}

func runCooc(cmd *cobra.Command, args []string) error {
	options := &core.CoocOptions{
		NEFilter:       coocNEFilter,
		TargetProperty: coocTargetProperty,
		MaxDegree:      coocMaxDegree,
	}
	if cmd.Flags().Changed("pos") {
		options.POSFilter = splitList(coocPOS)
	}
	return coocFlags.buildGraph(cmd.Context(), args[0], func(ctx context.Context, client *core.Client, src corpus.Source) (*types.GraphDocument, error) {
		return client.Cooccurrences(ctx, src, options)
	})
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
