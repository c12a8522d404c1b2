// Package kb provides the knowledge-base capabilities used by the resolver and the
// graph aggregators:
//
//   - Searcher: ranked identifier search for a query in one language
//   - Fetcher: full record lookup by identifier (NotFoundError when unknown)
//   - WikidataClient: HTTP implementation of both against the Wikidata API
//   - Guarded: retry with exponential backoff and a circuit breaker around any
//     Searcher/Fetcher
//   - Cached: singleflight deduplication plus a memory or badger-backed cache
//   - Base: the read-only tables loaded once at startup (annotation -> QID,
//     QID -> property -> values, offline records)
//   - ImageResolver: Wikimedia Commons URLs from P18 claims
//
// A typical online stack is
//
//	wd := kb.NewWikidataClient(kb.WikidataConfig{...})
//	guarded := kb.NewGuarded(wd, wd, retryConfig, breaker, logger)
//	cached := kb.NewCached(guarded, guarded, cache, logger)
package kb
