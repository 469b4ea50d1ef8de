package responder

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects what kind of snippet the model is asked for. It must match
// the sandbox mode of the deployment.
type Mode string

const (
	ModeCommand Mode = "command"
	ModeScript  Mode = "script"
)

const promptTemplate = `You are an expert API developer assistant.
A user is asking a question about an API. Use the provided DOCUMENTATION to answer.

DOCUMENTATION:
%s

USER QUESTION:
%s

INSTRUCTIONS:
1. Explain the answer clearly in natural language.
2. %s
3. You MUST return the response in STRICT JSON format with these exact keys:
   - "explanation": (string)
   - "generated_code": (string) %s

IMPORTANT: Do not wrap the output in markdown (no ` + "```" + `json fences). Just return raw JSON.`

// BuildPrompt embeds every chunk verbatim, separated by blank lines, followed
// by the question.
func BuildPrompt(question string, chunks []string, mode Mode, program string) string {
	var task, codeHint string
	switch mode {
	case ModeScript:
		lang := filepath.Base(program)
		task = fmt.Sprintf("Provide a standalone script that demonstrates the solution. It will be run as `%s <file>` and must print its results to stdout.", lang)
		codeHint = fmt.Sprintf("- The complete %s script only.", lang)
	default:
		task = fmt.Sprintf("Provide a single working %s command that solves the problem.", program)
		codeHint = fmt.Sprintf("- The %s command only.", program)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(chunks, "\n\n"), question, task, codeHint)
}
