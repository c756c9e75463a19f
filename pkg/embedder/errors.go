package embedder

import "errors"

// ErrEmbeddingUnavailable is returned when a provider has exhausted its
// retry budget (spec.md §4.3: "permanent failures surface as
// embedding_unavailable and the entity is skipped"). Callers in
// internal/dispatcher map this to the embedding_unavailable errorType.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
