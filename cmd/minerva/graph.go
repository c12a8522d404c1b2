package minerva

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	core "github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/alert"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/export"
	"github.com/soundprediction/minerva/pkg/types"
)

// graphFlags are shared by the commands that build a graph.
type graphFlags struct {
	output  string
	kbPath  string
	claims  string
	images  bool
	neo4j   string
	parquet string
	csv     string
}

func (f *graphFlags) register(cmd *cobra.Command, defaultOutput string) {
	cmd.Flags().StringVarP(&f.output, "output", "o", defaultOutput, "graph JSON output")
	cmd.Flags().StringVar(&f.kbPath, "kb", "", "knowledge base file mapping annotations to identifiers (default from server.knowledge_base)")
	cmd.Flags().StringVar(&f.claims, "claims", "", "claims file (default from server.claims)")
	cmd.Flags().BoolVar(&f.images, "images", false, "resolve entity images through the knowledge service")
	cmd.Flags().StringVar(&f.neo4j, "neo4j", "", "also write the graph to Neo4j under this graph name")
	cmd.Flags().StringVar(&f.parquet, "parquet", "", "also write node, link and provenance tables to this directory")
	cmd.Flags().StringVar(&f.csv, "csv", "", "also write the link table as TSV to this file")
}

// buildGraph opens the corpus, builds the client and runs build with it, then
// writes every requested output.
func (f *graphFlags) buildGraph(ctx context.Context, input string, build func(ctx context.Context, client *core.Client, src corpus.Source) (*types.GraphDocument, error)) error {
	kbPath, claimsPath := f.kbPath, f.claims
	if kbPath == "" {
		kbPath = existing(cfg.Server.KnowledgeBase)
	}
	if claimsPath == "" {
		claimsPath = existing(cfg.Server.Claims)
	}
	base, err := loadBase(kbPath, claimsPath)
	if err != nil {
		return err
	}

	src, closer, err := corpus.Open(input)
	if err != nil {
		return err
	}
	defer closer.Close()

	alerter := alert.New(cfg.Alert, log)
	svc := &services{base: base}
	if err := svc.taggerService(cfg, alerter); err != nil {
		return err
	}
	if f.images {
		if err := svc.knowledgeService(cfg, alerter); err != nil {
			return err
		}
	}
	if f.neo4j != "" {
		if err := svc.sinkService(ctx, cfg); err != nil {
			return err
		}
	}
	client := svc.client(cfg, nil, f.images)
	defer client.Close(context.Background())

	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")
	doc, err := build(ctx, client, src)
	if err != nil {
		return err
	}
	return f.write(ctx, client, doc)
}

// existing returns path when it names a file, or "" after a warning.
func existing(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		log.Warn("default knowledge file not found, continuing without it", "path", path)
		return ""
	}
	return path
}

func (f *graphFlags) write(ctx context.Context, client *core.Client, doc *types.GraphDocument) error {
	if err := export.WriteGraph(f.output, doc); err != nil {
		return err
	}
	log.Info("wrote graph", "path", f.output, "nodes", len(doc.Data.Nodes), "links", len(doc.Data.Links))

	if f.csv != "" {
		if err := export.WriteCSVFile(f.csv, doc); err != nil {
			return err
		}
	}
	if f.parquet != "" {
		if err := export.WriteParquet(f.parquet, doc); err != nil {
			return err
		}
	}
	if f.neo4j != "" {
		if err := client.Persist(ctx, f.neo4j, doc); err != nil {
			return fmt.Errorf("failed to persist graph: %w", err)
		}
	}
	return nil
}
