package orchestrator

import (
	"fmt"
	"strings"

	"github.com/BaSui01/mallchat/plan"
	"github.com/BaSui01/mallchat/types"
)

// composeReply derives the final text from the executed plan. The structured
// step results are the source of truth; nothing here invents facts. A
// fan-out over several refund decisions is listed per order, everything else
// returns the last step's rendered response.
func composeReply(p *plan.Plan, results map[string]types.AgentOutput, intent types.Intent, needsConfirmation bool) string {
	if p == nil {
		return fallbackReply(intent, results)
	}

	if multi := decisionSteps(p); len(multi) >= 2 {
		return renderDecisionList(multi, needsConfirmation)
	}
	if receipts := receiptResponses(p); len(receipts) >= 2 {
		return strings.Join(receipts, "\n\n")
	}

	for i := len(p.Steps) - 1; i >= 0; i-- {
		step := p.Steps[i]
		if step.Result != nil && step.Result.Response != "" {
			return step.Result.Response
		}
	}
	return fallbackReply(intent, results)
}

// decisionSteps returns the steps that produced a refund decision, in plan
// order.
func decisionSteps(p *plan.Plan) []plan.Step {
	var out []plan.Step
	for _, step := range p.Steps {
		if step.Result != nil && step.Result.Decision != nil {
			out = append(out, step)
		}
	}
	return out
}

// receiptResponses collects the rendered receipts of a batched refund
// confirmation, in plan order.
func receiptResponses(p *plan.Plan) []string {
	var out []string
	for _, step := range p.Steps {
		if step.Result != nil && step.Result.Refund != nil && step.Result.Response != "" {
			out = append(out, step.Result.Response)
		}
	}
	return out
}

// renderDecisionList summarizes a fan-out of refund reviews. A positive
// verdict with a fee always shows the fee next to the amount it was deducted
// from; a free refund never mentions a fee.
func renderDecisionList(steps []plan.Step, needsConfirmation bool) string {
	var b strings.Builder
	b.WriteString("주문별 환불 가능 여부를 확인했습니다.\n")

	for _, step := range steps {
		d := step.Result.Decision
		label := decisionLabel(step)

		switch {
		case d.Possible == nil:
			fmt.Fprintf(&b, "- %s: 확인이 더 필요합니다.\n", label)
		case !*d.Possible:
			if d.Reason != "" {
				fmt.Fprintf(&b, "- %s: 환불 불가 (%s)\n", label, d.Reason)
			} else {
				fmt.Fprintf(&b, "- %s: 환불 불가\n", label)
			}
		case d.Fee > 0:
			fmt.Fprintf(&b, "- %s: 환불 가능, 수수료 %s원을 제외한 %s원 환불\n",
				label, types.FormatKRW(d.Fee), types.FormatKRW(d.TotalRefundAmount))
		default:
			fmt.Fprintf(&b, "- %s: 환불 가능, %s원 전액 환불\n",
				label, types.FormatKRW(d.TotalRefundAmount))
		}
	}

	if needsConfirmation {
		b.WriteString("\n" + confirmQuestion)
	}
	return strings.TrimRight(b.String(), "\n")
}

// decisionLabel names one fan-out entry for the user: product name when the
// review resolved an order, otherwise whatever identifier the step carried.
func decisionLabel(step plan.Step) string {
	if len(step.Result.Orders) == 1 {
		order := step.Result.Orders[0]
		return fmt.Sprintf("%s (%s)", order.ProductName, order.OrderID)
	}
	if id, ok := step.Params["order_id"].(string); ok && id != "" {
		return id
	}
	return step.Purpose
}

// fallbackReply is the template answer for a plan that produced no rendered
// response at all.
func fallbackReply(intent types.Intent, results map[string]types.AgentOutput) string {
	switch intent {
	case types.IntentOrderStatus:
		for _, out := range results {
			if out.Agent == types.AgentOrder && out.Success {
				return fmt.Sprintf("총 %d개의 주문을 찾았습니다.", len(out.Orders))
			}
		}
		return "주문 정보를 찾을 수 없습니다. 주문번호를 다시 확인해주세요."
	case types.IntentRefundInquiry:
		return "환불 가능 여부를 확인하지 못했습니다. 잠시 후 다시 시도해주세요."
	case types.IntentProductInquiry:
		return "조건에 맞는 제품을 찾을 수 없습니다."
	default:
		return "무엇을 도와드릴까요?"
	}
}
