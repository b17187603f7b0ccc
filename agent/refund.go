package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/structured"
	"github.com/BaSui01/mallchat/tools"
	"github.com/BaSui01/mallchat/types"
)

const refundSystemPrompt = `당신은 쇼핑몰의 환불 상담 전문가입니다.
제공된 환불 정책과 검증 결과를 근거로 환불 가능 여부를 판단하세요.
정책에 없는 규칙을 만들지 말고, 금액은 제공된 계산 결과를 그대로 사용하세요.`

const refundSchemaHint = `반드시 아래 형식의 JSON으로만 응답하세요:
{
  "refund_possible": true | false,
  "refund_fee": <수수료, 원 단위 정수>,
  "total_refund_amount": <최종 환불 금액, 원 단위 정수>,
  "reason": "<판단 근거 한두 문장>",
  "policy_applied": ["<적용한 정책 항목>"]
}`

// RefundAgent reviews refund eligibility. Deterministic facts (policy rules,
// day window, fee math) are computed first and handed to the model; the
// model's structured verdict is what the user sees.
type RefundAgent struct {
	gateway    *llm.Gateway
	output     *structured.Output[types.RefundDecision]
	history    *tools.OrderHistory
	policy     *tools.RefundPolicy
	validator  *tools.RefundValidator
	calculator *tools.FeeCalculator
	logger     *zap.Logger
}

// NewRefundAgent creates a refund agent.
func NewRefundAgent(gateway *llm.Gateway, history *tools.OrderHistory, policy *tools.RefundPolicy,
	validator *tools.RefundValidator, calculator *tools.FeeCalculator, logger *zap.Logger) *RefundAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "refund_agent"))
	return &RefundAgent{
		gateway:    gateway,
		output:     structured.New[types.RefundDecision](gateway, refundSchemaHint, logger),
		history:    history,
		policy:     policy,
		validator:  validator,
		calculator: calculator,
		logger:     logger,
	}
}

// Kind implements Agent.
func (a *RefundAgent) Kind() types.AgentKind { return types.AgentRefund }

// Handle resolves the order under discussion, assembles the fact sheet, and
// asks the model for a verdict. A reply that fails to parse still reaches the
// user verbatim through the decision's UserResponse.
func (a *RefundAgent) Handle(ctx context.Context, utterance string, ac *Context) (types.AgentOutput, error) {
	order, ok := a.resolveOrder(ac)
	if !ok {
		return types.AgentOutput{
			Agent:    types.AgentRefund,
			Success:  false,
			Error:    "no order to review",
			Response: "어떤 주문의 환불을 도와드릴까요? 주문번호나 상품명을 알려주세요.",
		}, nil
	}

	isDefective := a.isDefective(ac)
	validation := a.validator.Validate(tools.ValidationRequest{
		OrderID:     order.OrderID,
		IsDefective: isDefective,
	})

	var calc *tools.Calculation
	if c, err := a.calculator.Calculate(order.Price, order.DeliveryStatus); err == nil {
		calc = &c
	}

	messages := []llm.Message{
		llm.SystemMessage(refundSystemPrompt),
		llm.UserMessage(a.buildPrompt(utterance, ac, order, validation, calc)),
	}

	decision, raw, err := a.output.Generate(ctx, messages)
	if err != nil {
		if raw == "" {
			// transport failure, nothing to show
			return types.AgentOutput{}, err
		}
		a.logger.Warn("verdict did not parse, passing reply through",
			zap.String("order_id", order.OrderID))
		decision = &types.RefundDecision{UserResponse: raw}
	}

	return types.AgentOutput{
		Agent:    types.AgentRefund,
		Success:  true,
		Response: decision.Render(),
		Orders:   []types.Order{order},
		Decision: decision,
	}, nil
}

// resolveOrder picks the order under discussion: explicit step parameters
// first, then the session's order context, then the output of an earlier
// lookup step.
func (a *RefundAgent) resolveOrder(ac *Context) (types.Order, bool) {
	if id := ac.ParamString("order_id"); id != "" {
		if order, ok := a.history.ByID(id); ok {
			return order, true
		}
	}
	if name := ac.ParamString("product_name"); name != "" {
		if order, ok := a.history.LatestByProduct(name); ok {
			return order, true
		}
	}
	if ac.Order != nil {
		return *ac.Order, true
	}
	for _, prev := range ac.Previous {
		if prev.Success && len(prev.Orders) == 1 {
			return prev.Orders[0], true
		}
	}
	return types.Order{}, false
}

func (a *RefundAgent) isDefective(ac *Context) bool {
	if ac.ParamBool("is_defective") {
		return true
	}
	reason := ac.ParamString("reason")
	if reason == "" && ac.Entities != nil {
		reason = ac.Entities.RefundReason()
	}
	return strings.Contains(reason, "불량") || strings.Contains(reason, "파손")
}

func (a *RefundAgent) buildPrompt(utterance string, ac *Context, order types.Order,
	validation tools.ValidationResult, calc *tools.Calculation) string {

	var b strings.Builder
	fmt.Fprintf(&b, "**현재 사용자 입력:** %q\n\n", utterance)
	fmt.Fprintf(&b, "## 대화 맥락\n%s\n\n", ac.RenderRecent())

	fmt.Fprintf(&b, "## 대상 주문\n주문번호: %s / 상품명: %s / 가격: %s원 / 배송상태: %s\n",
		order.OrderID, order.ProductName, types.FormatKRW(order.Price), order.DeliveryStatus)
	if validation.DaysSinceDelivery != nil {
		fmt.Fprintf(&b, "배송완료 후 경과일: %d일\n", *validation.DaysSinceDelivery)
	}
	b.WriteString("\n")

	b.WriteString("## 정책 검증 결과\n")
	fmt.Fprintf(&b, "규칙 기준 환불 가능: %t\n", validation.Refundable)
	for _, reason := range validation.Reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	b.WriteString("\n")

	if calc != nil {
		b.WriteString("## 수수료 계산 결과\n")
		fmt.Fprintf(&b, "환불 수수료: %s원 / 배송비: %s원 / 최종 환불 금액: %s원\n",
			types.FormatKRW(calc.RefundFee), types.FormatKRW(calc.ShippingFee),
			types.FormatKRW(calc.RefundAmount))
		fmt.Fprintf(&b, "%s\n\n", calc.Details)
	}

	fmt.Fprintf(&b, "## 환불 정책\n%s\n\n", a.policy.FullText())
	b.WriteString("## 작업 지시\n위 검증 결과와 계산 결과를 근거로 환불 가능 여부를 판단해 JSON으로 답하세요.")
	return b.String()
}
