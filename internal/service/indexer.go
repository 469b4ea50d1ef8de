package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

// Indexer turns an uploaded document into the live corpus, replacing
// whatever was indexed before.
type Indexer struct {
	extractor           domain.Extractor
	chunker             domain.Chunker
	corpus              *Corpus
	summarizer          domain.Summarizer
	summaryMaxSentences int
	logger              arbor.ILogger
}

// NewIndexer wires the ingestion pipeline. summarizer may be nil.
func NewIndexer(extractor domain.Extractor, chunker domain.Chunker, corpus *Corpus, summarizer domain.Summarizer, summaryMaxSentences int, logger arbor.ILogger) *Indexer {
	return &Indexer{
		extractor:           extractor,
		chunker:             chunker,
		corpus:              corpus,
		summarizer:          summarizer,
		summaryMaxSentences: summaryMaxSentences,
		logger:              logger,
	}
}

// Ingest indexes one document. Blank documents are rejected before any
// chunking or embedding, and a failed ingestion leaves the previous corpus
// in place unless the store could not swap atomically.
func (ix *Indexer) Ingest(ctx context.Context, data []byte, filename string) (domain.IngestResult, error) {
	start := time.Now()

	text, err := ix.extractor.Extract(data, filename)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.IngestResult{}, domain.ErrEmptyDocument
	}

	pieces := ix.chunker.Split(text)
	if len(pieces) == 0 {
		return domain.IngestResult{}, domain.ErrEmptyDocument
	}

	if err := ix.corpus.Replace(ctx, pieces); err != nil {
		ix.logger.Error().Err(err).Str("file", filename).Msg("Ingestion failed")
		return domain.IngestResult{}, err
	}

	res := domain.IngestResult{
		Chunks:  len(pieces),
		Message: fmt.Sprintf("Successfully processed %d chunks from %s.", len(pieces), displayName(filename)),
	}
	if ix.summarizer != nil {
		summary, err := ix.summarizer.Summarize(text, ix.summaryMaxSentences)
		if err != nil {
			ix.logger.Warn().Err(err).Msg("Summary failed")
		} else {
			res.Summary = summary
		}
	}

	ix.logger.Info().
		Str("file", filename).
		Int("bytes", len(data)).
		Int("chunks", res.Chunks).
		Dur("duration", time.Since(start)).
		Msg("Document ingested")
	return res, nil
}

// Clear removes the whole corpus.
func (ix *Indexer) Clear(ctx context.Context) (string, error) {
	n, err := ix.corpus.Clear(ctx)
	if err != nil {
		return "", err
	}
	ix.logger.Info().Int("chunks", n).Msg("Corpus cleared")
	return fmt.Sprintf("Cleared %d chunks.", n), nil
}

func displayName(filename string) string {
	if filename == "" {
		return "document"
	}
	return filename
}
