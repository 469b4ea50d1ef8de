package domain

import "errors"

var (
	// ErrConfiguration marks fatal startup problems such as a missing API key.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyDocument is returned when extraction yields only whitespace.
	ErrEmptyDocument = errors.New("document is empty or could not be read")

	// ErrUnreadableDocument is returned when the document format cannot be decoded.
	ErrUnreadableDocument = errors.New("document could not be decoded")

	// ErrEmbeddingService wraps failures of the external embedding provider.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrCorpusCorrupted means a non-atomic replace failed after the old corpus
	// was deleted. The corpus must be rebuilt by re-ingesting.
	ErrCorpusCorrupted = errors.New("corpus corrupted, re-ingest the document")

	// ErrRetrieval wraps failures of the chunk store during search.
	ErrRetrieval = errors.New("retrieval error")

	// ErrGeneration wraps transport failures of the generative model.
	ErrGeneration = errors.New("generation service error")
)
