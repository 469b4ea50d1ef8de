package responder

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// FallbackExplanation replaces the answer when the model output is not
	// a JSON object.
	FallbackExplanation = "Error: The AI failed to generate valid structured response."
	// DefaultExplanation is used when the object has no explanation field.
	DefaultExplanation = "No explanation provided."
)

// ParseResult is either a well-formed answer or Malformed. Malformed output
// is an expected outcome, not an error.
type ParseResult struct {
	Explanation string
	Code        string
	Malformed   bool
}

var fenceLine = regexp.MustCompile("(?m)^[ \t]*(?:```|''')[A-Za-z0-9_+-]*[ \t]*\r?$")

// StripFences removes markdown fence lines. JSON strings cannot hold raw
// newlines, so a fence line is never part of a value.
func StripFences(raw string) string {
	return strings.TrimSpace(fenceLine.ReplaceAllString(raw, ""))
}

// Parse extracts explanation and generated_code from raw model output.
// Missing fields get defaults; anything that is not a JSON object, even
// after cutting to the outermost braces, is Malformed.
func Parse(raw string) ParseResult {
	cleaned := StripFences(raw)
	if !gjson.Valid(cleaned) {
		cleaned = outermostObject(cleaned)
		if cleaned == "" || !gjson.Valid(cleaned) {
			return malformed()
		}
	}
	root := gjson.Parse(cleaned)
	if !root.IsObject() {
		return malformed()
	}

	res := ParseResult{Explanation: DefaultExplanation}
	if v := root.Get("explanation"); v.Exists() && v.Type != gjson.Null {
		res.Explanation = v.String()
	}
	if v := root.Get("generated_code"); v.Exists() && v.Type != gjson.Null {
		res.Code = v.String()
	}
	return res
}

func outermostObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func malformed() ParseResult {
	return ParseResult{Explanation: FallbackExplanation, Malformed: true}
}
