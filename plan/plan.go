// Package plan models execution plans: their shape, how they are built from
// an intent, and how their steps run.
package plan

import (
	"fmt"
	"strconv"

	"github.com/BaSui01/mallchat/types"
)

// Type distinguishes a one-step plan from a pipeline.
type Type string

const (
	TypeSingleAgent Type = "single_agent"
	TypeMultiStep   Type = "multi_step"
)

// Status of a step. A step that runs is completed even when its agent
// reported failure inside the output; skipped marks a step whose dependency
// never produced a usable result.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Step is one unit of work.
type Step struct {
	ID        string             `json:"step_id"`
	Agent     types.AgentKind    `json:"agent"`
	Purpose   string             `json:"purpose"`
	Params    map[string]any     `json:"parameters"`
	DependsOn []string           `json:"depends_on,omitempty"`
	Status    Status             `json:"status"`
	Result    *types.AgentOutput `json:"result,omitempty"`
}

// Plan is an ordered list of steps. Order is execution order; dependencies
// only gate, they never reorder.
type Plan struct {
	Type            Type   `json:"plan_type"`
	Reason          string `json:"reason,omitempty"`
	Steps           []Step `json:"steps"`
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
}

// rawPlan is the wire shape a model emits.
type rawPlan struct {
	PlanType        string    `json:"plan_type"`
	Reason          string    `json:"reason"`
	Steps           []rawStep `json:"steps"`
	ExpectedOutcome string    `json:"expected_outcome"`
}

type rawStep struct {
	StepID    any            `json:"step_id"`
	Agent     string         `json:"agent"`
	Purpose   string         `json:"purpose"`
	Params    map[string]any `json:"parameters"`
	DependsOn []string       `json:"depends_on"`
}

// normalize turns a raw model plan into a valid Plan: 1-based string step
// ids, validated agent kinds, non-nil parameter maps. An unknown agent kind
// fails the whole plan so the builder can fall back.
func normalize(raw *rawPlan) (*Plan, error) {
	if raw == nil || len(raw.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}

	p := &Plan{
		Type:            TypeSingleAgent,
		Reason:          raw.Reason,
		ExpectedOutcome: raw.ExpectedOutcome,
	}
	if Type(raw.PlanType) == TypeMultiStep || len(raw.Steps) > 1 {
		p.Type = TypeMultiStep
	}

	for i, rs := range raw.Steps {
		kind, err := types.ParseAgentKind(rs.Agent)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		step := Step{
			ID:        stepID(rs.StepID, i),
			Agent:     kind,
			Purpose:   rs.Purpose,
			Params:    rs.Params,
			DependsOn: rs.DependsOn,
			Status:    StatusPending,
		}
		if step.Purpose == "" {
			step.Purpose = string(kind)
		}
		if step.Params == nil {
			step.Params = map[string]any{}
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

// stepID renders whatever the model sent (number, string, nothing) as a
// stable 1-based id.
func stepID(raw any, index int) string {
	switch v := raw.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.Itoa(int(v))
	}
	return strconv.Itoa(index + 1)
}

// AgentCounts tallies how many steps each agent has; used for fan-out
// result keying.
func (p *Plan) AgentCounts() map[types.AgentKind]int {
	counts := make(map[types.AgentKind]int)
	for _, s := range p.Steps {
		counts[s.Agent]++
	}
	return counts
}
