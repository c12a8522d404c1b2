// Package utils provides the resilience and concurrency helpers shared by the
// knowledge-base and NLP clients and by the aggregators.
//
// This package contains:
//   - Retry with exponential backoff and retryable error classification (retry.go)
//   - Circuit breaking around external services (breaker.go)
//   - A bounded worker pool with panic recovery (concurrent.go)
//   - Deterministic top-K selection (topk.go)
//   - Panic recovery helpers (recovery.go)
package utils
