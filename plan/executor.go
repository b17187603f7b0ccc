package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/agent"
	"github.com/BaSui01/mallchat/types"
)

// ResultSink receives each step result as it lands. The session context
// store implements it; declared here so plan does not depend on session.
type ResultSink interface {
	RecordToolResult(key string, out types.AgentOutput)
}

// Executor runs plans strictly in list order. Dependencies gate execution:
// a step whose dependency produced no usable result is skipped, never
// invoked. A step that is invoked always ends completed, carrying whatever
// its agent reported.
type Executor struct {
	registry *agent.Registry
	logger   *zap.Logger
}

// NewExecutor creates an Executor over registry.
func NewExecutor(registry *agent.Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		logger:   logger.With(zap.String("component", "plan_executor")),
	}
}

// Execute runs p and returns the results keyed by agent, qualified with the
// order id when the same agent fans out over several orders. sink may be nil.
func (e *Executor) Execute(ctx context.Context, utterance string, p *Plan, base *agent.Context, sink ResultSink) map[string]types.AgentOutput {
	results := make(map[string]types.AgentOutput)
	counts := p.AgentCounts()

	agentByID := make(map[string]types.AgentKind, len(p.Steps))
	for _, s := range p.Steps {
		agentByID[s.ID] = s.Agent
	}

	for i := range p.Steps {
		step := &p.Steps[i]

		if unmet, dep := e.unmetDependency(step, results, agentByID); unmet {
			step.Status = StatusSkipped
			e.logger.Info("step skipped",
				zap.String("step_id", step.ID),
				zap.String("agent", string(step.Agent)),
				zap.String("waiting_on", dep))
			continue
		}

		step.Status = StatusInProgress
		e.enrich(step, base, results)

		out := e.runStep(ctx, utterance, step, base, results)
		out.StepID = step.ID
		step.Status = StatusCompleted
		step.Result = &out

		key := resultKey(step, counts)
		results[key] = out
		if sink != nil {
			sink.RecordToolResult(key, out)
		}

		e.logger.Info("step completed",
			zap.String("step_id", step.ID),
			zap.String("agent", string(step.Agent)),
			zap.String("result_key", key),
			zap.Bool("success", out.Success))
	}
	return results
}

// runStep invokes the agent with panic containment: one misbehaving agent
// degrades its own step, not the conversation.
func (e *Executor) runStep(ctx context.Context, utterance string, step *Step, base *agent.Context, results map[string]types.AgentOutput) (out types.AgentOutput) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step panicked",
				zap.String("step_id", step.ID),
				zap.String("agent", string(step.Agent)),
				zap.Any("panic", r))
			out = types.AgentOutput{
				Agent:   step.Agent,
				Success: false,
				Error:   fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	a, ok := e.registry.Lookup(step.Agent)
	if !ok {
		return types.AgentOutput{
			Agent:   step.Agent,
			Success: false,
			Error:   fmt.Sprintf("agent %q not registered", step.Agent),
		}
	}

	ac := e.stepContext(step, base, results)
	result, err := a.Handle(ctx, utterance, ac)
	if err != nil {
		e.logger.Error("step failed",
			zap.String("step_id", step.ID),
			zap.String("agent", string(step.Agent)),
			zap.Error(err))
		return types.AgentOutput{
			Agent:   step.Agent,
			Success: false,
			Error:   err.Error(),
		}
	}
	return result
}

// unmetDependency reports the first dependency without a successful result.
// A dependency may name an agent or an earlier step id; a fan-out dependency
// is satisfied by any qualified result of that agent.
func (e *Executor) unmetDependency(step *Step, results map[string]types.AgentOutput, agentByID map[string]types.AgentKind) (bool, string) {
	for _, dep := range step.DependsOn {
		keys := []string{dep}
		if kind, ok := agentByID[dep]; ok {
			keys = append(keys, string(kind))
		}
		if !dependencySatisfied(keys, results) {
			return true, dep
		}
	}
	return false, ""
}

func dependencySatisfied(keys []string, results map[string]types.AgentOutput) bool {
	for _, key := range keys {
		if out, ok := results[key]; ok && out.Success {
			return true
		}
		prefix := key + "::"
		for rk, out := range results {
			if strings.HasPrefix(rk, prefix) && out.Success {
				return true
			}
		}
	}
	return false
}

// enrich fills the step parameters the planner left implicit: a refund step
// inherits the order found by an earlier lookup, and the processor inherits
// the session's order context.
func (e *Executor) enrich(step *Step, base *agent.Context, results map[string]types.AgentOutput) {
	if step.Params == nil {
		step.Params = map[string]any{}
	}
	if _, has := step.Params["order_id"]; has {
		return
	}

	switch step.Agent {
	case types.AgentRefund:
		for _, out := range results {
			if out.Agent == types.AgentOrder && out.Success && len(out.Orders) > 0 {
				step.Params["order_id"] = out.Orders[0].OrderID
				return
			}
		}
		if base != nil && base.Order != nil {
			step.Params["order_id"] = base.Order.OrderID
		}
	case types.AgentRefundProcessor:
		if base != nil && base.Order != nil {
			step.Params["order_id"] = base.Order.OrderID
		}
	}
}

func (e *Executor) stepContext(step *Step, base *agent.Context, results map[string]types.AgentOutput) *agent.Context {
	ac := &agent.Context{Params: step.Params, Previous: results}
	if base != nil {
		ac.Recent = base.Recent
		ac.Structured = base.Structured
		ac.Entities = base.Entities
		ac.Order = base.Order
		ac.Candidates = base.Candidates
	}
	return ac
}

// resultKey qualifies fan-out results so parallel reviews of different
// orders do not overwrite each other.
func resultKey(step *Step, counts map[types.AgentKind]int) string {
	if counts[step.Agent] < 2 {
		return string(step.Agent)
	}
	if id, ok := step.Params["order_id"].(string); ok && id != "" {
		return string(step.Agent) + "::" + id
	}
	return string(step.Agent) + "::" + step.ID
}
