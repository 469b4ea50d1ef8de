package domain

import "context"

// Embedder converts text into vectors. Texts are embedded in one call per batch
// so a whole ingestion costs a single round trip where the provider allows it.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Preparer is implemented by embedders that must see the corpus before they
// can embed (vocabulary based models). The Indexer calls Prepare once per ingestion.
type Preparer interface {
	Prepare(corpus []string) error
}

// Chunker splits extracted document text into overlapping chunk texts.
type Chunker interface {
	Split(text string) []string
}

// Extractor turns raw document bytes into plain text. The filename is only a hint.
type Extractor interface {
	Extract(data []byte, filename string) (string, error)
}

// Generator sends one prompt to a generative model and returns its raw text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
