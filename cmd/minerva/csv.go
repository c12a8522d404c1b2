package minerva

import (
	"github.com/spf13/cobra"

	"github.com/soundprediction/minerva/pkg/export"
)

var csvCmd = &cobra.Command{
	Use:   "csv <graph.json>",
	Short: "Export the links of a graph as a tab-separated table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := export.ReadGraph(args[0])
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if err := export.WriteCSVFile(output, doc); err != nil {
			return err
		}
		log.Info("wrote link table", "path", output, "links", len(doc.Data.Links))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(csvCmd)
	csvCmd.Flags().StringP("output", "o", "export.csv", "TSV output")
}
