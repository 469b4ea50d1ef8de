package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"apiagent/internal/chunker"
	"apiagent/internal/config"
	"apiagent/internal/domain"
	"apiagent/internal/embedding/gemini"
	"apiagent/internal/embedding/openai"
	"apiagent/internal/embedding/tfidf"
	"apiagent/internal/extract"
	"apiagent/internal/llm"
	"apiagent/internal/responder"
	"apiagent/internal/sandbox"
	"apiagent/internal/service"
	"apiagent/internal/summarizer"
	"apiagent/internal/vectorstore"
	"apiagent/internal/vectorstore/badger"
	"apiagent/internal/vectorstore/memory"
	"apiagent/internal/vectorstore/qdrant"
)

// App holds the assembled agent and the resources it owns.
type App struct {
	Config *config.AppConfig
	Logger arbor.ILogger
	Agent  *service.Agent

	closers []func() error
}

// New wires every component from the validated configuration. Provider
// clients are built once here and shared by the embedder and the generator.
func New(ctx context.Context, cfg *config.AppConfig, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger}

	var genaiClient *genai.Client
	if cfg.LLM.Provider == "gemini" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey(),
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: gemini client: %v", domain.ErrConfiguration, err)
		}
		genaiClient = client
	}

	emb, err := a.initEmbedder(genaiClient)
	if err != nil {
		return nil, err
	}
	store, err := a.initStore()
	if err != nil {
		return nil, err
	}
	gen, err := a.initGenerator(genaiClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	var sum domain.Summarizer
	if cfg.Summarizer.Type == "frequency" {
		sum = summarizer.NewFrequencySummarizer()
	}

	corpus := service.NewCorpus(emb, store, logger)
	indexer := service.NewIndexer(
		extract.NewExtractor(),
		chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		corpus,
		sum,
		cfg.Summarizer.MaxSentences,
		logger,
	)

	runner, err := sandbox.New(sandbox.Config{
		Mode:           cfg.Sandbox.Mode,
		AllowedProgram: cfg.Sandbox.AllowedProgram,
		Interpreter:    cfg.Sandbox.Interpreter,
		Timeout:        a.sandboxTimeout(),
		TempDir:        cfg.Sandbox.TempDir,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	resp := responder.New(gen, responder.Config{
		Mode:    responder.Mode(cfg.Sandbox.Mode),
		Program: a.program(),
	}, logger)

	a.Agent = service.NewAgent(indexer, corpus, resp, runner, cfg.Retrieval.TopN, logger)

	logger.Info().
		Str("llm", gen.Name()).
		Str("embedder", emb.Name()).
		Str("vector_store", cfg.VectorStore.Type).
		Str("sandbox_mode", runner.Mode()).
		Msg("Agent initialized")
	return a, nil
}

// Close releases the chunk store.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func (a *App) initEmbedder(client *genai.Client) (domain.Embedder, error) {
	cfg := a.Config
	switch cfg.Embedder.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "gemini":
		return gemini.NewEmbedder(client, gemini.Config{
			Model:     cfg.Embedder.Model,
			Dimension: cfg.Embedder.Dimension,
			BatchSize: cfg.Embedder.BatchSize,
		})
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.APIKey(),
			Model:      cfg.Embedder.Model,
			Dimension:  cfg.Embedder.Dimension,
			BatchSize:  cfg.Embedder.BatchSize,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: cfg.LLM.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Embedder.Type)
	}
}

func (a *App) initStore() (vectorstore.Storage, error) {
	cfg := a.Config.VectorStore
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "badger":
		st, err := badger.NewStorage(cfg.Badger.Path, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrConfiguration, cfg.Type)
	}
}

func (a *App) initGenerator(client *genai.Client) (domain.Generator, error) {
	cfg := a.Config.LLM
	lc := llm.Config{
		Model:             cfg.ChatModel,
		Temperature:       cfg.Temperature,
		Timeout:           a.Config.LLMTimeout(),
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
		APIKey:            a.Config.APIKey(),
		BaseURL:           cfg.BaseURL,
	}
	if cfg.Provider == "openai" {
		return llm.NewOpenAIGenerator(lc, a.Logger)
	}
	return llm.NewGeminiGenerator(client, lc, a.Logger)
}

func (a *App) sandboxTimeout() time.Duration {
	if a.Config.Sandbox.Mode == sandbox.ModeScript {
		return a.Config.ScriptTimeout()
	}
	return a.Config.CommandTimeout()
}

// program is what the prompt tells the model to produce: the allow-listed
// command, or the interpreter that will run the script.
func (a *App) program() string {
	if a.Config.Sandbox.Mode == sandbox.ModeScript {
		return a.Config.Sandbox.Interpreter[0]
	}
	return a.Config.Sandbox.AllowedProgram
}
