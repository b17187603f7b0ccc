package plan

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/structured"
	"github.com/BaSui01/mallchat/types"
)

// fanOutLimit caps how many candidate orders a clarification fan-out
// validates in one plan.
const fanOutLimit = 5

const plannerSystemPrompt = `당신은 쇼핑몰 고객센터의 플래너입니다. 사용자 요청을 처리할 실행 계획을 세우세요.

사용 가능한 에이전트:
- order_agent: 주문 내역/배송 상태 조회 (parameters: order_id, product_name, delivery_status, start_date, end_date, limit)
- refund_agent: 환불 가능 여부 판단 (parameters: order_id, product_name, reason)
- general_agent: 상품 문의, 일반 대화, 결과 종합 (parameters: product_name, category)

규칙:
- 환불 판단에 주문 정보가 필요하면 order_agent 단계를 먼저 두고 refund_agent가 depends_on으로 참조하게 하세요.
- 불필요한 단계를 만들지 마세요. 단순 문의는 단계 하나면 충분합니다.
- refund_processor는 계획에 넣지 마세요. 환불 실행은 사용자 확인 후 별도로 진행됩니다.`

const plannerSchemaHint = `반드시 아래 형식의 JSON으로만 응답하세요:
{
  "plan_type": "single_agent" | "multi_step",
  "reason": "<계획 근거>",
  "steps": [
    {"step_id": "1", "agent": "<agent>", "purpose": "<단계 목적>",
     "parameters": {}, "depends_on": []}
  ],
  "expected_outcome": "<기대 결과>"
}`

// BuildContext is what the builder knows about the session.
type BuildContext struct {
	Summary    string // machine-readable session summary
	Order      *types.Order
	Candidates []types.Order
}

// Builder turns a classified utterance into a Plan. Clarification replies
// that refer back to a refund over several candidate orders are planned
// deterministically; everything else goes through the model with a canned
// per-intent fallback.
type Builder struct {
	output *structured.Output[rawPlan]
	logger *zap.Logger
}

// NewBuilder creates a Builder on gateway.
func NewBuilder(gateway *llm.Gateway, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "plan_builder"))
	return &Builder{
		output: structured.New[rawPlan](gateway, plannerSchemaHint, logger),
		logger: logger,
	}
}

// Build never fails: any model problem degrades to the intent's canned plan.
func (b *Builder) Build(ctx context.Context, utterance string, c types.Classification, bc BuildContext) *Plan {
	if p := b.fanOut(c, bc); p != nil {
		b.logger.Info("fan-out plan",
			zap.Int("steps", len(p.Steps)),
			zap.Int("candidates", len(bc.Candidates)))
		return p
	}

	messages := []llm.Message{
		llm.SystemMessage(plannerSystemPrompt),
		llm.UserMessage(b.buildPrompt(utterance, c, bc)),
	}
	raw, _, err := b.output.Generate(ctx, messages)
	if err != nil {
		b.logger.Warn("planner unavailable, using fallback plan",
			zap.String("intent", string(c.Intent)), zap.Error(err))
		return Fallback(c.Intent, c.Entities)
	}

	p, err := normalize(raw)
	if err != nil {
		b.logger.Warn("planner emitted invalid plan, using fallback",
			zap.String("intent", string(c.Intent)), zap.Error(err))
		return Fallback(c.Intent, c.Entities)
	}

	b.logger.Info("plan built",
		zap.String("intent", string(c.Intent)),
		zap.String("plan_type", string(p.Type)),
		zap.Int("steps", len(p.Steps)))
	return p
}

// fanOut handles the "which of these orders did you mean — all of them"
// shape: a clarification referring back to a refund while several candidate
// orders are on the table. One independent refund step per candidate.
func (b *Builder) fanOut(c types.Classification, bc BuildContext) *Plan {
	if c.Intent != types.IntentClarification || !c.Entities.RefundReference() {
		return nil
	}
	if len(bc.Candidates) < 2 {
		return nil
	}

	candidates := selectCandidates(c.Entities, bc.Candidates)
	if len(candidates) > fanOutLimit {
		candidates = candidates[:fanOutLimit]
	}

	p := &Plan{
		Type:   TypeMultiStep,
		Reason: "여러 주문에 대한 환불 가능 여부를 각각 확인",
	}
	if len(candidates) == 1 {
		p.Type = TypeSingleAgent
		p.Reason = "선택된 주문의 환불 가능 여부 확인"
	}
	for i, order := range candidates {
		p.Steps = append(p.Steps, Step{
			ID:      strconv.Itoa(i + 1),
			Agent:   types.AgentRefund,
			Purpose: fmt.Sprintf("%s 환불 가능 여부 확인", order.ProductName),
			Params:  map[string]any{"order_id": order.OrderID},
			Status:  StatusPending,
		})
	}
	return p
}

// selectCandidates narrows the fan-out by the clarification's selection_type:
// an ordinal picks that candidate, specific matches the named order id or
// product, anything else keeps them all.
func selectCandidates(entities types.Entities, candidates []types.Order) []types.Order {
	switch entities.SelectionType() {
	case types.SelectionFirst:
		return candidates[:1]
	case types.SelectionSecond:
		if len(candidates) >= 2 {
			return candidates[1:2]
		}
	case types.SelectionThird:
		if len(candidates) >= 3 {
			return candidates[2:3]
		}
	case types.SelectionSpecific:
		id := entities.OrderID()
		name := entities.ProductName()
		var picked []types.Order
		for _, o := range candidates {
			if (id != "" && o.OrderID == id) ||
				(name != "" && strings.Contains(o.ProductName, name)) {
				picked = append(picked, o)
			}
		}
		if len(picked) > 0 {
			return picked
		}
	}
	return candidates
}

func (b *Builder) buildPrompt(utterance string, c types.Classification, bc BuildContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## 분류 결과\nintent: %s (confidence %.2f)\n", c.Intent, c.Confidence)
	if len(c.Entities) > 0 {
		fmt.Fprintf(&sb, "entities: %v\n", map[string]any(c.Entities))
	}
	if bc.Summary != "" {
		fmt.Fprintf(&sb, "\n## 세션 상태\n%s\n", bc.Summary)
	}
	if bc.Order != nil {
		fmt.Fprintf(&sb, "\n## 대화 중인 주문\n%s (%s, %s)\n",
			bc.Order.OrderID, bc.Order.ProductName, bc.Order.DeliveryStatus)
	}
	fmt.Fprintf(&sb, "\n## 사용자 요청\n%s", utterance)
	return sb.String()
}

// Fallback is the canned plan for an intent, used whenever the planner
// cannot be trusted.
func Fallback(intent types.Intent, entities types.Entities) *Plan {
	params := map[string]any{}
	if entities != nil {
		if id := entities.OrderID(); id != "" {
			params["order_id"] = id
		}
		if name := entities.ProductName(); name != "" {
			params["product_name"] = name
		}
	}

	switch intent {
	case types.IntentRefundInquiry:
		refundParams := map[string]any{}
		if entities != nil {
			if reason := entities.RefundReason(); reason != "" {
				refundParams["reason"] = reason
			}
		}
		return &Plan{
			Type:   TypeMultiStep,
			Reason: "환불 판단에 필요한 주문 정보를 먼저 조회",
			Steps: []Step{
				{ID: "1", Agent: types.AgentOrder, Purpose: "주문 정보 조회", Params: params, Status: StatusPending},
				{ID: "2", Agent: types.AgentRefund, Purpose: "환불 가능 여부 판단", Params: refundParams,
					DependsOn: []string{"1"}, Status: StatusPending},
			},
		}
	case types.IntentOrderStatus:
		return &Plan{
			Type:  TypeSingleAgent,
			Steps: []Step{{ID: "1", Agent: types.AgentOrder, Purpose: "주문 상태 조회", Params: params, Status: StatusPending}},
		}
	case types.IntentProductInquiry:
		return &Plan{
			Type:  TypeSingleAgent,
			Steps: []Step{{ID: "1", Agent: types.AgentGeneral, Purpose: "상품 정보 안내", Params: params, Status: StatusPending}},
		}
	default:
		return &Plan{
			Type:  TypeSingleAgent,
			Steps: []Step{{ID: "1", Agent: types.AgentGeneral, Purpose: "일반 응대", Params: map[string]any{}, Status: StatusPending}},
		}
	}
}
