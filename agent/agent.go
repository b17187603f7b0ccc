// Package agent implements the domain agents a plan step can execute: order
// lookup, refund review, general conversation, and refund processing.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/mallchat/types"
)

// Context carries everything an agent may draw on for one step: recent
// conversation, accumulated entities, the order under discussion, results of
// earlier steps, and the step's own parameters.
type Context struct {
	Recent     []types.Exchange
	Structured string // machine-readable session summary for prompts
	Entities   types.Entities
	Order      *types.Order
	Candidates []types.Order
	Previous   map[string]types.AgentOutput
	Params     map[string]any
}

// ParamString reads a string parameter, falling back to "".
func (c *Context) ParamString(key string) string {
	if c.Params == nil {
		return ""
	}
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return ""
}

// ParamBool reads a boolean parameter. String forms of truth are accepted
// since plan parameters come from model output.
func (c *Context) ParamBool(key string) bool {
	if c.Params == nil {
		return false
	}
	switch v := c.Params[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes"
	default:
		return false
	}
}

// RenderRecent formats the recent exchanges for a prompt, "(첫 대화)" when
// the conversation just started.
func (c *Context) RenderRecent() string {
	if len(c.Recent) == 0 {
		return "(첫 대화)"
	}
	var b strings.Builder
	for _, ex := range c.Recent {
		fmt.Fprintf(&b, "사용자: %s\n봇: %s\n\n", ex.User, ex.Assistant)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Agent handles one plan step.
type Agent interface {
	Kind() types.AgentKind
	Handle(ctx context.Context, utterance string, ac *Context) (types.AgentOutput, error)
}

// Registry is the closed set of executable agents.
type Registry struct {
	agents map[types.AgentKind]Agent
}

// NewRegistry builds a registry. Duplicate kinds are a construction error:
// a plan naming an agent must resolve to exactly one implementation.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{agents: make(map[types.AgentKind]Agent, len(agents))}
	for _, a := range agents {
		kind := a.Kind()
		if _, err := types.ParseAgentKind(string(kind)); err != nil {
			return nil, err
		}
		if _, dup := r.agents[kind]; dup {
			return nil, fmt.Errorf("duplicate agent %q", kind)
		}
		r.agents[kind] = a
	}
	return r, nil
}

// Lookup resolves an agent by kind.
func (r *Registry) Lookup(kind types.AgentKind) (Agent, bool) {
	a, ok := r.agents[kind]
	return a, ok
}

// Kinds lists the registered agent kinds.
func (r *Registry) Kinds() []types.AgentKind {
	out := make([]types.AgentKind, 0, len(r.agents))
	for k := range r.agents {
		out = append(out, k)
	}
	return out
}
