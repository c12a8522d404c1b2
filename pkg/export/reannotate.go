package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/types"
)

// ErrSameDirectory is returned when re-annotation would overwrite its input.
var ErrSameDirectory = errors.New("input and output directory are the same")

// PersonAnnotation is the annotation written on linked entities.
const PersonAnnotation = "PER"

// ReannotateReport summarizes a re-annotation run.
type ReannotateReport struct {
	Files    int
	Entities int
	// Unlinked are the distinct mentions with no candidate entry. Their
	// entities are left untouched.
	Unlinked []string
}

// Reannotate copies every XML file of inputDir to outputDir, setting
// annotation="PER" and wikidata_id to the first candidate on each entity of
// each sentence. Each written file is parsed again to validate it.
func Reannotate(ctx context.Context, inputDir, outputDir string, candidates *types.CandidateSet, n *normalize.Normalizer, logger *slog.Logger) (*ReannotateReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := checkDirs(inputDir, outputDir); err != nil {
		return nil, err
	}
	src, err := corpus.OpenDir(inputDir)
	if err != nil {
		return nil, err
	}

	report := &ReannotateReport{}
	unlinked := make(map[string]struct{})
	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		doc, err := f.Load()
		if err != nil {
			return report, err
		}
		sentences, err := doc.Sentences(n)
		if err != nil {
			return report, types.NewIOError("parse", f.Path, err)
		}
		for _, s := range sentences {
			for _, entity := range s.Entities {
				mention, err := normalizeEntity(n, entity)
				if err != nil {
					continue
				}
				if !candidates.Has(mention) {
					if _, seen := unlinked[mention]; !seen {
						unlinked[mention] = struct{}{}
						report.Unlinked = append(report.Unlinked, mention)
						logger.Warn("entity has no candidates", "mention", mention, "file", f.Name())
					}
					continue
				}
				entity.CreateAttr(corpus.AnnotationAttribute, PersonAnnotation)
				entity.CreateAttr(corpus.WikidataAttribute, candidates.First(mention))
				report.Entities++
			}
		}

		out := filepath.Join(outputDir, f.Name())
		if err := os.WriteFile(out, doc.Bytes(), 0644); err != nil {
			return report, types.NewIOError("write", out, err)
		}
		if err := validate(out); err != nil {
			return report, err
		}
		report.Files++
	}
	return report, nil
}

func normalizeEntity(n *normalize.Normalizer, entity *etree.Element) (string, error) {
	if n == nil {
		return normalize.Text(corpus.Text(entity))
	}
	return n.Text(corpus.Text(entity))
}

// checkDirs refuses to write into the input directory or over a file, and
// creates the output directory when missing.
func checkDirs(inputDir, outputDir string) error {
	in, err := filepath.Abs(inputDir)
	if err != nil {
		return types.NewIOError("stat", inputDir, err)
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return types.NewIOError("stat", outputDir, err)
	}
	if in == out {
		return types.NewIOError("write", outputDir, ErrSameDirectory)
	}
	if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
		return types.NewIOError("write", outputDir, fmt.Errorf("output directory exists and is a file"))
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return types.NewIOError("mkdir", outputDir, err)
	}
	return nil
}

func validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewIOError("read", path, err)
	}
	if _, err := corpus.ParseBytes(filepath.Base(path), data); err != nil {
		return types.NewIOError("validate", path, err)
	}
	return nil
}
