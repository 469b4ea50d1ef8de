package service

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

// Answerer produces a structured answer from retrieved chunks.
type Answerer interface {
	Answer(ctx context.Context, question string, chunks []string) (domain.Answer, error)
}

// Executor runs generated code in the sandbox.
type Executor interface {
	Mode() string
	Execute(ctx context.Context, code string) domain.ExecutionOutcome
}

// Agent is the query pipeline: retrieve, answer, execute. It is built once
// at startup and shared by every request.
type Agent struct {
	indexer  *Indexer
	corpus   *Corpus
	answerer Answerer
	executor Executor
	topN     int
	logger   arbor.ILogger
}

func NewAgent(indexer *Indexer, corpus *Corpus, answerer Answerer, executor Executor, topN int, logger arbor.ILogger) *Agent {
	if topN <= 0 {
		topN = 3
	}
	return &Agent{indexer: indexer, corpus: corpus, answerer: answerer, executor: executor, topN: topN, logger: logger}
}

// Mode reports the sandbox execution mode of this deployment.
func (a *Agent) Mode() string { return a.executor.Mode() }

func (a *Agent) Ingest(ctx context.Context, data []byte, filename string) (domain.IngestResult, error) {
	return a.indexer.Ingest(ctx, data, filename)
}

func (a *Agent) Clear(ctx context.Context) (string, error) {
	return a.indexer.Clear(ctx)
}

// Query answers question and, when the model produced code, runs it.
func (a *Agent) Query(ctx context.Context, question string) (domain.QueryResponse, error) {
	resp, err := a.answer(ctx, question)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	a.run(ctx, &resp)
	return resp, nil
}

// Stream delivers the answer as events: the explanation word by word, the
// code, then the complete response once the code has run, then done. A
// pipeline failure becomes an error event followed by done. Only emit
// failures are returned.
func (a *Agent) Stream(ctx context.Context, question string, emit func(domain.StreamEvent) error) error {
	resp, err := a.answer(ctx, question)
	if err != nil {
		a.logger.Error().Err(err).Msg("Streamed query failed")
		if err := emit(domain.StreamEvent{Type: domain.EventError, Content: err.Error()}); err != nil {
			return err
		}
		return emit(domain.StreamEvent{Type: domain.EventDone})
	}

	for _, word := range strings.Split(resp.Explanation, " ") {
		if err := emit(domain.StreamEvent{Type: domain.EventToken, Content: word + " "}); err != nil {
			return err
		}
	}
	if resp.GeneratedCode != "" {
		if err := emit(domain.StreamEvent{Type: domain.EventCode, Content: resp.GeneratedCode}); err != nil {
			return err
		}
	}
	a.run(ctx, &resp)
	if err := emit(domain.StreamEvent{Type: domain.EventComplete, Data: &resp}); err != nil {
		return err
	}
	return emit(domain.StreamEvent{Type: domain.EventDone})
}

func (a *Agent) answer(ctx context.Context, question string) (domain.QueryResponse, error) {
	start := time.Now()

	chunks, err := a.corpus.Search(ctx, question, a.topN)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	ans, err := a.answerer.Answer(ctx, question, chunks)
	if err != nil {
		return domain.QueryResponse{}, err
	}

	a.logger.Info().
		Int("chunks", len(chunks)).
		Bool("has_code", ans.GeneratedCode != "").
		Dur("duration", time.Since(start)).
		Msg("Query answered")
	return domain.QueryResponse{Explanation: ans.Explanation, GeneratedCode: ans.GeneratedCode}, nil
}

// run fills ExecutionResult when there is code; without code it stays nil.
func (a *Agent) run(ctx context.Context, resp *domain.QueryResponse) {
	if resp.GeneratedCode == "" {
		return
	}
	out := a.executor.Execute(ctx, resp.GeneratedCode).Output()
	resp.ExecutionResult = &out
}

// Execute runs code directly, bypassing retrieval and generation.
func (a *Agent) Execute(ctx context.Context, code string) domain.ExecutionOutcome {
	return a.executor.Execute(ctx, code)
}
