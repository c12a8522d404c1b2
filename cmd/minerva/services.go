package minerva

import (
	"context"
	"fmt"
	"time"

	core "github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/alert"
	"github.com/soundprediction/minerva/pkg/config"
	"github.com/soundprediction/minerva/pkg/driver"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/nlp"
	"github.com/soundprediction/minerva/pkg/utils"
)

// services are the collaborators built from the configuration.
type services struct {
	base       *kb.Base
	searcher   kb.Searcher
	fetcher    kb.Fetcher
	recognizer nlp.Recognizer
	tagger     nlp.Tagger
	sink       driver.Sink
	closers    []func() error
}

func retryConfig(c *config.Config) *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxRetries:        c.Retry.MaxRetries,
		InitialDelay:      c.Retry.InitialDelay,
		MaxDelay:          c.Retry.MaxDelay,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
}

func newBreaker(c *config.Config, name string, alerter alert.Alerter) *utils.Breaker {
	return utils.NewBreaker(name, utils.BreakerConfig{
		Enabled:          c.CircuitBreaker.Enabled,
		MaxRequests:      c.CircuitBreaker.MaxRequests,
		Interval:         time.Duration(c.CircuitBreaker.Interval) * time.Second,
		Timeout:          time.Duration(c.CircuitBreaker.Timeout) * time.Second,
		ReadyToTripRatio: c.CircuitBreaker.ReadyToTripRatio,
	}, alerter, log)
}

// loadBase reads the annotation table and, when given, the claims table.
func loadBase(kbPath, claimsPath string) (*kb.Base, error) {
	base := kb.NewBase()
	if kbPath != "" {
		loaded, err := kb.LoadBase(kbPath)
		if err != nil {
			return nil, err
		}
		base = loaded
	}
	if claimsPath != "" {
		if err := base.LoadClaims(claimsPath); err != nil {
			return nil, err
		}
	}
	return base, nil
}

// knowledgeService returns the search and record lookups. Offline mode serves
// records from the configured dump and finds nothing by search. Online lookups
// are retried, guarded by a breaker and cached.
func (s *services) knowledgeService(c *config.Config, alerter alert.Alerter) error {
	if c.KB.Offline {
		if c.KB.Dump != "" {
			if err := s.base.LoadDump(c.KB.Dump); err != nil {
				return err
			}
		}
		s.searcher = kb.SearcherFunc(func(context.Context, string, string, int) ([]string, error) {
			return nil, nil
		})
		s.fetcher = s.base
		return nil
	}

	client, err := kb.NewWikidataClient(kb.WikidataConfig{
		Endpoint:   c.KB.Endpoint,
		EntityData: c.KB.EntityData,
		UserAgent:  c.KB.UserAgent,
		Timeout:    c.KB.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create knowledge client: %w", err)
	}
	guarded := kb.NewGuarded(client, client, retryConfig(c), newBreaker(c, "wikidata", alerter), log)

	var cache kb.Cache = kb.NewMemoryCache()
	if c.KB.CachePath != "" {
		badger, err := kb.NewBadgerCache(c.KB.CachePath, c.KB.CacheTTL)
		if err != nil {
			return err
		}
		cache = badger
	}
	cached := kb.NewCached(guarded, guarded, cache, log)
	s.closers = append(s.closers, cached.Close)
	s.searcher = cached
	s.fetcher = cached
	return nil
}

func (s *services) recognizerService(c *config.Config, alerter alert.Alerter) error {
	client, err := nlp.NewOpenTapiocaClient(nlp.OpenTapiocaConfig{
		URL:       c.NLP.RecognizerURL,
		UserAgent: c.KB.UserAgent,
		Timeout:   c.NLP.Timeout,
	})
	if err != nil {
		return err
	}
	s.recognizer = nlp.NewGuardedRecognizer(client, retryConfig(c), newBreaker(c, "recognizer", alerter))
	return nil
}

// taggerService uses the tagging service when one is configured and the
// built-in tokenizer otherwise.
func (s *services) taggerService(c *config.Config, alerter alert.Alerter) error {
	if c.NLP.TaggerURL == "" {
		s.tagger = nlp.RegexTagger{}
		return nil
	}
	client, err := nlp.NewHTTPTagger(nlp.HTTPTaggerConfig{URL: c.NLP.TaggerURL, Timeout: c.NLP.Timeout})
	if err != nil {
		return err
	}
	s.tagger = nlp.NewGuardedTagger(client, retryConfig(c), newBreaker(c, "tagger", alerter))
	return nil
}

func (s *services) sinkService(ctx context.Context, c *config.Config) error {
	if c.Database.URI == "" {
		return fmt.Errorf("database URI is required (set database.uri or NEO4J_URI)")
	}
	sink, err := driver.NewNeo4jSink(c.Database.URI, c.Database.Username, c.Database.Password, c.Database.Database)
	if err != nil {
		return err
	}
	if err := sink.VerifyConnectivity(ctx); err != nil {
		sink.Close(ctx)
		return fmt.Errorf("failed to reach neo4j at %s: %w", c.Database.URI, err)
	}
	if err := sink.CreateIndices(ctx); err != nil {
		sink.Close(ctx)
		return fmt.Errorf("failed to create indices: %w", err)
	}
	s.sink = sink
	return nil
}

// client assembles the facade from whatever services were built.
func (s *services) client(c *config.Config, pseudonyms map[string]string, images bool) *core.Client {
	opts := []core.Option{core.WithLogger(log)}
	if s.recognizer != nil {
		opts = append(opts, core.WithRecognizer(s.recognizer))
	}
	if s.searcher != nil && s.fetcher != nil {
		opts = append(opts, core.WithKnowledgeService(s.searcher, s.fetcher))
	}
	if s.tagger != nil {
		opts = append(opts, core.WithTagger(s.tagger))
	}
	if images && s.fetcher != nil {
		opts = append(opts, core.WithImages(kb.NewImageResolver(s.fetcher)))
	}
	if s.sink != nil {
		opts = append(opts, core.WithSink(s.sink))
	}
	for _, fn := range s.closers {
		opts = append(opts, core.WithCloser(fn))
	}
	return core.NewClient(s.base, &core.Config{
		Languages:   c.KB.Languages,
		SearchLimit: c.KB.SearchLimit,
		LinkWorkers: c.Linking.Workers,
		Pseudonyms:  pseudonyms,
		MaxDegree:   c.Cooc.MaxDegree,
		POSFilter:   c.Cooc.POSFilter,
		CoocWorkers: c.Cooc.Workers,
		NFC:         c.Linking.NFC,
	}, opts...)
}
