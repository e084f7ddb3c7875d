package eventbus

// Topics published on the bus.
const (
	// EventEntryCreated fires after a new audio cache entry is committed, or
	// when a cache hit still lacks an embedding.
	// Args: sourceURL string, extractedText string (empty on the hit path).
	EventEntryCreated = "library:entry.created"
	// EventEmbeddingAttached fires once an entry's embedding is persisted.
	// Args: sourceURL string.
	EventEmbeddingAttached = "library:embedding.attached"
	// EventEmbeddingError fires when the embedding warm-up fails.
	// Args: sourceURL string, err error.
	EventEmbeddingError = "library:embedding.error"
)
