package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"apiagent/internal/config"
	"apiagent/internal/domain"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	return &config.AppConfig{
		LLM:         config.LLMConfig{Provider: "openai", APIKeyEnv: "TEST_OPENAI_KEY", ChatModel: "gpt-4o-mini", TimeoutSecs: 5},
		Embedder:    config.EmbedderConfig{Type: "tfidf"},
		Chunker:     config.ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		VectorStore: config.VectorStoreConfig{Type: "memory"},
		Retrieval:   config.RetrievalConfig{TopN: 3},
		Sandbox:     config.SandboxConfig{Mode: "command", AllowedProgram: "curl", CommandTimeoutSecs: 10},
		Summarizer:  config.SummarizerConfig{Type: "frequency", MaxSentences: 2},
	}
}

func TestNew_WiresAgent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "command", a.Agent.Mode())

	res, err := a.Agent.Ingest(context.Background(), []byte("GET /users returns every user."), "api.md")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, "Successfully processed 1 chunks from api.md.", res.Message)

	out := a.Agent.Execute(context.Background(), "rm -rf /")
	assert.Equal(t, domain.ExecutionRejected, out.Status)
}

func TestNew_TfidfRejectsPersistentStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "openai"
	cfg.Embedder.Type = "tfidf"
	cfg.VectorStore = config.VectorStoreConfig{Type: "badger", Badger: &config.BadgerConfig{Path: t.TempDir()}}

	// tfidf vocabularies are not persisted, so only the memory store is allowed
	_, err := New(context.Background(), cfg, arbor.NewNoOpLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_ScriptModeUsesInterpreter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sandbox = config.SandboxConfig{Mode: "script", Interpreter: []string{"python3"}, ScriptTimeoutSecs: 30}

	a, err := New(context.Background(), cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "script", a.Agent.Mode())
	assert.Equal(t, "python3", a.program())
	assert.Equal(t, 30, int(a.sandboxTimeout().Seconds()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("TEST_OPENAI_KEY", "")

	_, err := New(context.Background(), cfg, arbor.NewNoOpLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
