package domain

import (
	"fmt"
	"time"
)

// Chunk is a bounded slice of document text stored with its embedding.
// Index is the position within the ingestion batch and backs the "doc_N" identifier.
type Chunk struct {
	ID        string
	Index     int
	Text      string
	Embedding []float32
}

// ChunkID returns the identifier assigned to the chunk at position i of an ingestion batch.
func ChunkID(i int) string {
	return fmt.Sprintf("doc_%d", i)
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// IngestResult is returned to callers after a document replaced the corpus.
type IngestResult struct {
	Chunks  int    `json:"chunks"`
	Summary string `json:"summary,omitempty"`
	Message string `json:"message"`
}

// Answer is what the Responder produced for one question.
type Answer struct {
	Explanation   string
	GeneratedCode string
}

// QueryResponse is the aggregated result of the query pipeline.
// ExecutionResult stays nil when no code was generated.
type QueryResponse struct {
	Explanation     string  `json:"explanation"`
	GeneratedCode   string  `json:"generated_code"`
	ExecutionResult *string `json:"execution_result"`
}

// ExecutionStatus classifies how a sandbox run ended.
type ExecutionStatus string

const (
	ExecutionSuccess       ExecutionStatus = "success"
	ExecutionError         ExecutionStatus = "error"
	ExecutionTimeout       ExecutionStatus = "timeout"
	ExecutionRejected      ExecutionStatus = "rejected"
	ExecutionInternalError ExecutionStatus = "internal_error"
)

// ExecutionOutcome is the captured result of one sandbox run.
// Message carries the fixed explanatory text for every status but success.
type ExecutionOutcome struct {
	Status   ExecutionStatus
	ExitCode int
	Stdout   string
	Stderr   string
	Message  string
	Duration time.Duration
}

// NoOutputMessage is returned for a successful run that printed nothing.
const NoOutputMessage = "Executed successfully, no output."

// Output renders the outcome as the text shown to users.
func (o ExecutionOutcome) Output() string {
	switch o.Status {
	case ExecutionSuccess:
		if o.Stdout != "" {
			return o.Stdout
		}
		if o.Stderr != "" {
			return o.Stderr
		}
		return NoOutputMessage
	case ExecutionError:
		return "Execution Error:\n" + o.Stderr
	default:
		return o.Message
	}
}

// StreamEventType names the events of the streaming query variant.
type StreamEventType string

const (
	EventToken    StreamEventType = "token"
	EventCode     StreamEventType = "code"
	EventComplete StreamEventType = "complete"
	EventError    StreamEventType = "error"
	EventDone     StreamEventType = "done"
)

// StreamEvent is one element of a streamed answer. Token, code and error events
// carry Content; the complete event carries Data.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    *QueryResponse  `json:"data,omitempty"`
}
