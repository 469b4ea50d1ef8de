package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"apiagent/internal/domain"
	"apiagent/internal/vectorstore"
)

// chunkRecord is the persisted form of a chunk, keyed by its "doc_N" id.
type chunkRecord struct {
	ID        string `badgerhold:"key"`
	Index     int
	Text      string
	Embedding []float32
}

// Storage keeps the corpus in an embedded Badger database so it survives
// restarts. Replace runs in a single transaction.
type Storage struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// NewStorage opens (or creates) the database at path.
func NewStorage(path string, logger arbor.ILogger) (*Storage, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Opening Badger chunk store")

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	s := &Storage{store: store, logger: logger, path: path}
	if n, err := s.Count(context.Background()); err == nil {
		logger.Info().Str("path", path).Int("chunks", n).Msg("Badger chunk store ready")
	}
	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Storage) UpsertBatch(_ context.Context, chunks []domain.Chunk) error {
	return s.store.Badger().Update(func(tx *badger.Txn) error {
		for _, ch := range chunks {
			if err := s.store.TxUpsert(tx, ch.ID, toRecord(ch)); err != nil {
				return fmt.Errorf("upsert %s: %w", ch.ID, err)
			}
		}
		return nil
	})
}

// Replace deletes every stored chunk and inserts the new ones in one transaction.
func (s *Storage) Replace(_ context.Context, chunks []domain.Chunk) error {
	err := s.store.Badger().Update(func(tx *badger.Txn) error {
		if err := s.store.TxDeleteMatching(tx, &chunkRecord{}, nil); err != nil {
			return fmt.Errorf("delete previous corpus: %w", err)
		}
		for _, ch := range chunks {
			if err := s.store.TxInsert(tx, ch.ID, toRecord(ch)); err != nil {
				return fmt.Errorf("insert %s: %w", ch.ID, err)
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("corpus of %d chunks exceeds one badger transaction: %w", len(chunks), err)
	}
	return err
}

func (s *Storage) DeleteAll(_ context.Context) (int, error) {
	var deleted int
	err := s.store.Badger().Update(func(tx *badger.Txn) error {
		n, err := s.store.TxCount(tx, &chunkRecord{}, nil)
		if err != nil {
			return err
		}
		deleted = int(n)
		return s.store.TxDeleteMatching(tx, &chunkRecord{}, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return deleted, nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	var records []chunkRecord
	if err := s.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	chunks := make([]domain.Chunk, len(records))
	for i, r := range records {
		chunks[i] = domain.Chunk{ID: r.ID, Index: r.Index, Text: r.Text, Embedding: r.Embedding}
	}
	return vectorstore.Score(chunks, vector, topK), nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	n, err := s.store.Count(&chunkRecord{}, nil)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func toRecord(ch domain.Chunk) *chunkRecord {
	return &chunkRecord{ID: ch.ID, Index: ch.Index, Text: ch.Text, Embedding: ch.Embedding}
}
