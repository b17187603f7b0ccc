// Package orchestrator is the top-level entry point: it takes one user
// message and drives classification, planning, execution, confirmation
// gating, and response composition against a session.
package orchestrator

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/agent"
	"github.com/BaSui01/mallchat/intent"
	"github.com/BaSui01/mallchat/plan"
	"github.com/BaSui01/mallchat/session"
	"github.com/BaSui01/mallchat/types"
)

// recentWindow bounds how many completed exchanges agents see.
const recentWindow = 3

// classifierTurns bounds how many raw turns the classifier sees.
const classifierTurns = 6

const confirmQuestion = "환불을 진행하시겠습니까? (네/아니요)"

const apologyReply = "죄송합니다. 요청을 처리하는 중 문제가 발생했습니다. 잠시 후 다시 시도해주세요."

// Recorder receives per-message counters. internal/metrics implements it;
// declared here so orchestrator does not depend on the metrics package.
type Recorder interface {
	RecordMessage(intent, status string)
	RecordPlanStep(agent, status string)
}

// Reply is the full outcome of one processed message: the text to show plus
// the machine-readable metadata hosts log and evaluate on.
type Reply struct {
	SessionID         string                       `json:"session_id"`
	Response          string                       `json:"response"`
	Intent            types.Intent                 `json:"intent,omitempty"`
	Confidence        float64                      `json:"confidence,omitempty"`
	Entities          types.Entities               `json:"entities,omitempty"`
	Plan              *plan.Plan                   `json:"plan,omitempty"`
	ToolResults       map[string]types.AgentOutput `json:"tool_results,omitempty"`
	NeedsConfirmation bool                         `json:"needs_confirmation"`
	Confirmation      types.Confirmation           `json:"confirmation,omitempty"`
	Summary           session.Summary              `json:"summary"`
}

// Orchestrator wires the classifier, planner, executor, and session service
// into the single process-one-message operation.
type Orchestrator struct {
	classifier *intent.Classifier
	confirmer  *intent.Confirmer
	builder    *plan.Builder
	executor   *plan.Executor
	sessions   *session.Service
	metrics    Recorder
	logger     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches a metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// New creates an Orchestrator.
func New(classifier *intent.Classifier, confirmer *intent.Confirmer, builder *plan.Builder,
	executor *plan.Executor, sessions *session.Service, logger *zap.Logger, opts ...Option) *Orchestrator {

	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		classifier: classifier,
		confirmer:  confirmer,
		builder:    builder,
		executor:   executor,
		sessions:   sessions,
		logger:     logger.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessMessage handles one utterance and always returns a reply: every
// inner failure degrades to a fallback message, never to an error or panic
// escaping to the host.
func (o *Orchestrator) ProcessMessage(ctx context.Context, utterance, sessionID string) (reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("message processing panicked",
				zap.String("session_id", sessionID), zap.Any("panic", r))
			o.recordMessage("unknown", "recovered")
			reply = &Reply{SessionID: sessionID, Response: apologyReply}
		}
	}()

	sc, err := o.sessions.Resolve(ctx, sessionID)
	if err != nil {
		o.logger.Error("session resolve failed",
			zap.String("session_id", sessionID), zap.Error(err))
		o.recordMessage("unknown", "error")
		return &Reply{SessionID: sessionID, Response: apologyReply}
	}
	unlock := o.sessions.Lock(sc.SessionID)
	defer unlock()

	// an outstanding confirmation owns the next message outright
	if sc.NeedsConfirmation() {
		return o.handleConfirmation(ctx, utterance, sc)
	}

	verdict := o.classifier.Classify(ctx, utterance, sc.RecentTurns(classifierTurns))
	sc.AddUserTurn(utterance, verdict.Intent, verdict.Entities)

	p := o.builder.Build(ctx, utterance, verdict, plan.BuildContext{
		Summary:    sc.StructuredSummary(),
		Order:      sc.State.OrderContext,
		Candidates: sc.State.MultipleOrders,
	})

	results := o.executor.Execute(ctx, utterance, p, o.baseContext(sc), sc)
	o.recordPlan(p)

	needsConfirmation := o.armConfirmation(sc, results)
	response := composeReply(p, results, verdict.Intent, needsConfirmation)

	sc.AddAssistantTurn(response, resultKeys(results))
	if err := o.sessions.Save(ctx, sc); err != nil {
		o.logger.Error("session save failed",
			zap.String("session_id", sc.SessionID), zap.Error(err))
	}
	o.recordMessage(string(verdict.Intent), "ok")

	return &Reply{
		SessionID:         sc.SessionID,
		Response:          response,
		Intent:            verdict.Intent,
		Confidence:        verdict.Confidence,
		Entities:          verdict.Entities,
		Plan:              p,
		ToolResults:       results,
		NeedsConfirmation: needsConfirmation,
		Summary:           sc.Summarize(),
	}
}

// handleConfirmation resolves a pending yes/no. Yes runs the parked refund
// through the processor, no cancels, anything else re-asks without leaving
// the pending state.
func (o *Orchestrator) handleConfirmation(ctx context.Context, utterance string, sc *session.Context) *Reply {
	verdict := o.confirmer.Interpret(ctx, utterance, sc.PendingQuestion())
	sc.AddUserTurn(utterance, types.IntentClarification, nil)

	var (
		response string
		p        *plan.Plan
		results  map[string]types.AgentOutput
	)

	switch verdict {
	case types.ConfirmationYes:
		p = o.confirmationPlan(sc, utterance)
		sc.ClearPendingAction()
		results = o.executor.Execute(ctx, utterance, p, o.baseContext(sc), sc)
		o.recordPlan(p)
		response = composeReply(p, results, types.IntentRefundInquiry, false)

	case types.ConfirmationNo:
		sc.ClearPendingAction()
		response = "알겠습니다. 환불 요청을 취소했습니다. 다른 도움이 필요하시면 말씀해주세요."

	default:
		question := sc.PendingQuestion()
		if question == "" {
			question = confirmQuestion
		}
		response = "죄송합니다. 진행 여부를 잘 이해하지 못했어요. " + question
	}

	sc.AddAssistantTurn(response, resultKeys(results))
	if err := o.sessions.Save(ctx, sc); err != nil {
		o.logger.Error("session save failed",
			zap.String("session_id", sc.SessionID), zap.Error(err))
	}
	o.recordMessage(string(types.IntentClarification), string(verdict))

	return &Reply{
		SessionID:         sc.SessionID,
		Response:          response,
		Intent:            types.IntentClarification,
		Plan:              p,
		ToolResults:       results,
		NeedsConfirmation: sc.NeedsConfirmation(),
		Confirmation:      verdict,
		Summary:           sc.Summarize(),
	}
}

// confirmationPlan builds the processor plan for a confirmed refund: one
// step per refundable order parked in the pending payload, or a single step
// inheriting the session's order context when none were parked.
func (o *Orchestrator) confirmationPlan(sc *session.Context, utterance string) *plan.Plan {
	baseParams := map[string]any{"customer_note": utterance}
	if sc.State.Entities != nil {
		if reason := sc.State.Entities.RefundReason(); reason != "" {
			baseParams["reason"] = reason
		}
	}

	orderIDs := pendingOrderIDs(sc.State.PendingData)
	if len(orderIDs) <= 1 {
		params := cloneParams(baseParams)
		if len(orderIDs) == 1 {
			params["order_id"] = orderIDs[0]
		}
		return &plan.Plan{
			Type:   plan.TypeSingleAgent,
			Reason: "사용자 확인에 따른 환불 접수",
			Steps: []plan.Step{{
				ID: "1", Agent: types.AgentRefundProcessor, Purpose: "환불 접수",
				Params: params, Status: plan.StatusPending,
			}},
		}
	}

	p := &plan.Plan{Type: plan.TypeMultiStep, Reason: "사용자 확인에 따른 환불 일괄 접수"}
	for i, id := range orderIDs {
		params := cloneParams(baseParams)
		params["order_id"] = id
		p.Steps = append(p.Steps, plan.Step{
			ID: strconv.Itoa(i + 1), Agent: types.AgentRefundProcessor, Purpose: "환불 접수",
			Params: params, Status: plan.StatusPending,
		})
	}
	return p
}

// armConfirmation parks the conversation when a refund was judged possible
// but not yet executed in this same plan.
func (o *Orchestrator) armConfirmation(sc *session.Context, results map[string]types.AgentOutput) bool {
	possible := false
	for _, out := range results {
		if out.Agent == types.AgentRefundProcessor {
			return false
		}
		if out.Decision != nil && out.Decision.Possible != nil && *out.Decision.Possible {
			possible = true
		}
	}
	if !possible {
		return false
	}
	sc.SetPendingAction(session.PendingConfirmRefund, &session.PendingPayload{
		Question:    confirmQuestion,
		ToolResults: results,
	})
	return true
}

func (o *Orchestrator) baseContext(sc *session.Context) *agent.Context {
	return &agent.Context{
		Recent:     sc.RecentExchanges(recentWindow),
		Structured: sc.StructuredSummary(),
		Entities:   sc.State.Entities,
		Order:      sc.State.OrderContext,
		Candidates: sc.State.MultipleOrders,
	}
}

func (o *Orchestrator) recordPlan(p *plan.Plan) {
	if o.metrics == nil || p == nil {
		return
	}
	for _, step := range p.Steps {
		o.metrics.RecordPlanStep(string(step.Agent), string(step.Status))
	}
}

func (o *Orchestrator) recordMessage(intent, status string) {
	if o.metrics != nil {
		o.metrics.RecordMessage(intent, status)
	}
}

// pendingOrderIDs lists the orders the parked refund results judged
// refundable, in a stable order.
func pendingOrderIDs(payload *session.PendingPayload) []string {
	if payload == nil {
		return nil
	}
	var ids []string
	for _, out := range payload.ToolResults {
		if out.Decision == nil || out.Decision.Possible == nil || !*out.Decision.Possible {
			continue
		}
		if len(out.Orders) == 1 {
			ids = append(ids, out.Orders[0].OrderID)
		}
	}
	sort.Strings(ids)
	return ids
}

func resultKeys(results map[string]types.AgentOutput) []string {
	if len(results) == 0 {
		return nil
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	return out
}
