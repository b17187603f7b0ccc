// Package structured turns free-form model replies into typed values.
package structured

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/types"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON pulls a JSON document out of a model reply. Markdown fences are
// stripped first; otherwise the outermost brace or bracket pair is taken.
// Returns "" when no candidate is found.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	start := objStart
	open, close := byte('{'), byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Output produces values of type T from gateway completions. The schema hint
// is appended as a system message so the model knows the exact shape to emit.
type Output[T any] struct {
	gateway *llm.Gateway
	schema  string
	logger  *zap.Logger
}

// New creates an Output for T. schemaHint describes the required JSON shape
// in the system prompt ("respond with JSON: {...}").
func New[T any](gateway *llm.Gateway, schemaHint string, logger *zap.Logger) *Output[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Output[T]{
		gateway: gateway,
		schema:  schemaHint,
		logger:  logger.With(zap.String("component", "structured_output")),
	}
}

// Generate runs the completion and parses the reply into T. The raw reply is
// always returned so callers can fall back to it when parsing fails.
func (o *Output[T]) Generate(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*T, string, error) {
	if o.schema != "" {
		messages = append([]llm.Message{llm.SystemMessage(o.schema)}, messages...)
	}

	raw, err := o.gateway.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, "", err
	}

	value, err := Parse[T](raw)
	if err != nil {
		o.logger.Warn("reply did not parse", zap.String("raw", raw), zap.Error(err))
		return nil, raw, err
	}
	return value, raw, nil
}

// Parse extracts and unmarshals a JSON document from raw into T.
func Parse[T any](raw string) (*T, error) {
	doc := ExtractJSON(raw)
	if doc == "" {
		return nil, types.NewError(types.ErrParseFailure, "no JSON found in reply")
	}
	var value T
	if err := json.Unmarshal([]byte(doc), &value); err != nil {
		return nil, types.NewError(types.ErrParseFailure, "unmarshal reply").WithCause(err)
	}
	return &value, nil
}
