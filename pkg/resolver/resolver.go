// Package resolver links gold entity mentions to knowledge-base identifiers.
//
// Resolution runs in stages over the whole corpus:
//
//  1. exact match against an entity recognizer
//  2. search fallback across a language chain
//  3. search seeding for the real names of known pseudonyms
//  4. type filtering of multi-candidate mentions (human writers only)
//  5. propagation from long mentions to short, error-prone ones
//  6. pseudonym override
//
// Every stage leaves each observed mention with a non-empty candidate list,
// possibly the NIL sentinel.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/nlp"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

// Step names a resolution stage.
type Step string

const (
	StepNone          Step = ""
	StepExactMatch    Step = "exact_match"
	StepSearch        Step = "search"
	StepSeedTrueNames Step = "seed_true_names"
	StepTypeFilter    Step = "type_filter"
	StepPropagate     Step = "propagate"
	StepOverride      Step = "override"
)

var steps = []Step{StepExactMatch, StepSearch, StepSeedTrueNames, StepTypeFilter, StepPropagate, StepOverride}

// Steps returns the stages in the order they run.
func Steps() []Step {
	return append([]Step(nil), steps...)
}

// ParseStep validates a stored step name.
func ParseStep(s string) (Step, error) {
	if s == "" {
		return StepNone, nil
	}
	for _, st := range steps {
		if string(st) == s {
			return st, nil
		}
	}
	return StepNone, fmt.Errorf("unknown resolution step %q", s)
}

// TargetOccupations are the occupations a multi-candidate mention must match:
// writer, poet, novelist, essayist.
var TargetOccupations = []string{"Q36180", "Q49757", "Q6625963", "Q11774202"}

// Config tunes the resolver.
type Config struct {
	// Languages is the search fallback chain.
	Languages   []string
	SearchLimit int
	// Workers bounds concurrent search and fetch calls.
	Workers     int
	Occupations []string
	Normalizer  *normalize.Normalizer
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Languages:   []string{"fr", "it", "en"},
		SearchLimit: 10,
		Workers:     utils.DefaultWorkerLimit,
		Occupations: TargetOccupations,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Languages) == 0 {
		c.Languages = d.Languages
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = d.SearchLimit
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if len(c.Occupations) == 0 {
		c.Occupations = d.Occupations
	}
	if c.Normalizer == nil {
		c.Normalizer = normalize.New(normalize.Config{})
	}
	return c
}

// Sentence is the resolver's view of a corpus sentence: its normalized text and
// the normalized gold mentions it contains.
type Sentence struct {
	Text string
	Gold []string
}

// Progress is the state after a completed stage.
type Progress struct {
	Step       Step
	Candidates *types.CandidateSet
	Minidump   []*types.KnowledgeRecord
}

// Result is the outcome of a full resolution.
type Result struct {
	Candidates *types.CandidateSet
	// Minidump holds the fetched records of identifiers present in Candidates,
	// one per identifier.
	Minidump []*types.KnowledgeRecord
}

// CheckpointFunc is called after each completed stage.
type CheckpointFunc func(ctx context.Context, p Progress) error

// Resolver runs the resolution stages.
type Resolver struct {
	recognizer nlp.Recognizer
	searcher   kb.Searcher
	fetcher    kb.Fetcher
	pseudonyms map[string]string
	config     Config
	checkpoint CheckpointFunc
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPseudonyms sets the pseudonym -> real name map.
func WithPseudonyms(pseudonyms map[string]string) Option {
	return func(r *Resolver) { r.pseudonyms = pseudonyms }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithCheckpoint registers fn to persist progress after each stage.
func WithCheckpoint(fn CheckpointFunc) Option {
	return func(r *Resolver) { r.checkpoint = fn }
}

// New creates a resolver
func New(recognizer nlp.Recognizer, searcher kb.Searcher, fetcher kb.Fetcher, config Config, opts ...Option) *Resolver {
	r := &Resolver{
		recognizer: recognizer,
		searcher:   searcher,
		fetcher:    fetcher,
		pseudonyms: map[string]string{},
		config:     config.withDefaults(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pseudonyms == nil {
		r.pseudonyms = map[string]string{}
	}
	return r
}

// Resolve runs every stage.
func (r *Resolver) Resolve(ctx context.Context, sentences []Sentence) (*Result, error) {
	return r.Resume(ctx, sentences, Progress{})
}

// Resume runs the stages that follow from.Step, starting from its state.
func (r *Resolver) Resume(ctx context.Context, sentences []Sentence, from Progress) (*Result, error) {
	candidates := from.Candidates
	if candidates == nil {
		candidates = types.NewCandidateSet()
	} else {
		candidates = candidates.Clone()
	}
	minidump := append([]*types.KnowledgeRecord(nil), from.Minidump...)

	started := from.Step == StepNone
	for _, step := range steps {
		if !started {
			started = step == from.Step
			continue
		}

		var err error
		switch step {
		case StepExactMatch:
			var matched *types.CandidateSet
			matched, err = r.ExactMatch(ctx, sentences)
			if err == nil {
				candidates = matched
			}
		case StepSearch:
			err = r.Search(ctx, candidates, sentences)
		case StepSeedTrueNames:
			err = r.SeedTrueNames(ctx, candidates)
		case StepTypeFilter:
			var records []*types.KnowledgeRecord
			records, err = r.TypeFilter(ctx, candidates)
			minidump = append(minidump, records...)
		case StepPropagate:
			Propagate(candidates)
		case StepOverride:
			err = r.Override(candidates)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step, err)
		}

		r.logger.Info("resolution step complete", "step", step, "mentions", candidates.Len())
		if r.checkpoint != nil {
			p := Progress{Step: step, Candidates: candidates.Clone(), Minidump: minidump}
			if err := r.checkpoint(ctx, p); err != nil {
				r.logger.Warn("failed to save checkpoint", "step", step, "error", err)
			}
		}
	}
	if !started {
		return nil, fmt.Errorf("unknown resolution step %q", from.Step)
	}

	return &Result{Candidates: candidates, Minidump: FilterMinidump(minidump, candidates)}, nil
}

// ExactMatch runs the recognizer over every sentence with gold mentions. A
// recognized span whose normalized text equals a gold mention votes for its
// identifier; each mention keeps its most voted identifier, the smallest one on
// ties. Recognizer failures leave the sentence to the search stage.
func (r *Resolver) ExactMatch(ctx context.Context, sentences []Sentence) (*types.CandidateSet, error) {
	votes := make(map[string]map[string]int)
	for _, s := range sentences {
		if len(s.Gold) == 0 {
			continue
		}
		spans, err := r.recognizer.Recognize(ctx, s.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("recognizer failed", "sentence", s.Text, "error", err)
			continue
		}

		gold := make(map[string]struct{}, len(s.Gold))
		for _, g := range s.Gold {
			gold[g] = struct{}{}
		}
		for _, span := range spans {
			id := strings.TrimSpace(span.ID)
			if id == "" || strings.EqualFold(id, "none") || id == types.NIL {
				continue
			}
			text, err := r.config.Normalizer.Text(span.Text)
			if err != nil {
				continue
			}
			if _, ok := gold[text]; !ok {
				continue
			}
			if votes[text] == nil {
				votes[text] = make(map[string]int)
			}
			votes[text][id]++
		}
	}

	candidates := types.NewCandidateSet()
	for mention, counts := range votes {
		best, bestCount := "", 0
		for id, n := range counts {
			if n > bestCount || (n == bestCount && id < best) {
				best, bestCount = id, n
			}
		}
		candidates.Set(mention, []string{best})
	}
	return candidates, nil
}

// Search resolves gold mentions that have no entry yet through the search
// service. A leading "M." title is stripped from the query.
func (r *Resolver) Search(ctx context.Context, candidates *types.CandidateSet, sentences []Sentence) error {
	seen := make(map[string]struct{})
	var pending []string
	for _, s := range sentences {
		for _, g := range s.Gold {
			if _, ok := seen[g]; ok || candidates.Has(g) {
				continue
			}
			seen[g] = struct{}{}
			pending = append(pending, g)
		}
	}
	sort.Strings(pending)

	queries := make([]string, len(pending))
	for i, m := range pending {
		queries[i] = normalize.StripTitle(m)
	}
	return r.searchAll(ctx, candidates, pending, queries)
}

// SeedTrueNames gives every real name of the pseudonym map an entry, searching
// the name itself, so that later stages can copy from it.
func (r *Resolver) SeedTrueNames(ctx context.Context, candidates *types.CandidateSet) error {
	var pending []string
	for _, name := range kb.RealNames(r.pseudonyms) {
		if !candidates.Has(name) {
			pending = append(pending, name)
		}
	}
	return r.searchAll(ctx, candidates, pending, pending)
}

func (r *Resolver) searchAll(ctx context.Context, candidates *types.CandidateSet, mentions, queries []string) error {
	pool := utils.NewWorkerPool(r.config.Workers, func(ctx context.Context, i int) ([]string, error) {
		return r.lookup(ctx, queries[i])
	})
	indexes := make([]int, len(mentions))
	for i := range indexes {
		indexes[i] = i
	}
	results, errs := pool.ProcessItems(ctx, indexes)
	for i, mention := range mentions {
		if errs[i] != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("search failed", "mention", mention, "error", errs[i])
		}
		candidates.Set(mention, results[i])
	}
	return nil
}

// lookup queries each language in turn and returns the first non-empty result.
func (r *Resolver) lookup(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	for _, lang := range r.config.Languages {
		ids, err := r.searcher.Search(ctx, query, lang, r.config.SearchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("search call failed", "query", query, "lang", lang, "error", err)
			continue
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	return nil, nil
}

// TypeFilter narrows mentions with several candidates to human writers. Kept
// records are returned for the minidump. A mention with no surviving candidate
// becomes NIL; a failed fetch only excludes that candidate.
func (r *Resolver) TypeFilter(ctx context.Context, candidates *types.CandidateSet) ([]*types.KnowledgeRecord, error) {
	var mentions []string
	var ids []string
	seen := make(map[string]struct{})
	for _, m := range candidates.Mentions() {
		list, _ := candidates.Get(m)
		if len(list) <= 1 {
			continue
		}
		mentions = append(mentions, m)
		for _, id := range list {
			if _, ok := seen[id]; !ok && id != types.NIL {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	if len(mentions) == 0 {
		return nil, nil
	}

	pool := utils.NewWorkerPool(r.config.Workers, func(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
		return r.fetcher.Fetch(ctx, id)
	})
	fetched, errs := pool.ProcessItems(ctx, ids)
	records := make(map[string]*types.KnowledgeRecord, len(ids))
	for i, id := range ids {
		if errs[i] != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(errs[i], types.ErrNotFound) {
				r.logger.Debug("candidate not found", "id", id)
			} else {
				r.logger.Warn("failed to fetch candidate", "id", id, "error", errs[i])
			}
			continue
		}
		records[id] = fetched[i]
	}

	var kept []*types.KnowledgeRecord
	for _, m := range mentions {
		list, _ := candidates.Get(m)
		var ok []string
		for _, id := range list {
			record := records[id]
			if record == nil || !r.isTargetPerson(record) {
				continue
			}
			ok = append(ok, id)
			kept = append(kept, record)
		}
		candidates.Set(m, ok)
	}
	return kept, nil
}

func (r *Resolver) isTargetPerson(record *types.KnowledgeRecord) bool {
	if !record.HasItem(types.PropertyInstanceOf, types.ItemHuman) {
		return false
	}
	for _, occupation := range r.config.Occupations {
		if record.HasItem(types.PropertyOccupation, occupation) {
			return true
		}
	}
	return false
}

// Propagate copies candidates from safe mentions to error-prone ones sharing
// their last token. Safe mentions are scanned in lexicographic order; a
// multi-token error-prone mention also needs the same first character. Lists are
// read from a snapshot, so the outcome does not depend on iteration order.
func Propagate(candidates *types.CandidateSet) {
	snapshot := candidates.Clone()

	var errorProne, safe []string
	for _, m := range snapshot.Mentions() {
		if normalize.IsErrorProne(m) {
			errorProne = append(errorProne, m)
		} else {
			safe = append(safe, m)
		}
	}

	for _, ep := range errorProne {
		last := normalize.LastToken(ep)
		if last == "" {
			continue
		}
		single := len(strings.Fields(ep)) == 1
		for _, s := range safe {
			if normalize.LastToken(s) != last {
				continue
			}
			if single || normalize.FirstRuneEqual(ep, s) {
				list, _ := snapshot.Get(s)
				candidates.Set(ep, list)
				break
			}
		}
	}
}

// Override gives every pseudonym the candidates of its real name. It fails with
// MissingRealNameError when the real name has no entry.
func (r *Resolver) Override(candidates *types.CandidateSet) error {
	snapshot := candidates.Clone()
	for _, mention := range snapshot.Mentions() {
		realName, ok := r.pseudonyms[mention]
		if !ok || realName == "" {
			continue
		}
		list, ok := snapshot.Get(realName)
		if !ok {
			return types.NewMissingRealNameError(mention, realName)
		}
		candidates.Set(mention, list)
	}
	return nil
}

// FilterMinidump keeps one record per identifier present in candidates, in
// first-seen order.
func FilterMinidump(records []*types.KnowledgeRecord, candidates *types.CandidateSet) []*types.KnowledgeRecord {
	ids := candidates.IDs()
	seen := make(map[string]struct{}, len(records))
	var out []*types.KnowledgeRecord
	for _, record := range records {
		if record == nil {
			continue
		}
		if _, ok := ids[record.ID]; !ok {
			continue
		}
		if _, ok := seen[record.ID]; ok {
			continue
		}
		seen[record.ID] = struct{}{}
		out = append(out, record)
	}
	return out
}
