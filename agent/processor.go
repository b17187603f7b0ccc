package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/tools"
	"github.com/BaSui01/mallchat/types"
)

// RefundProcessorAgent executes a confirmed refund. It only runs from a
// confirmation plan; the orchestrator never schedules it before the user has
// said yes.
type RefundProcessorAgent struct {
	processor *tools.Processor
	logger    *zap.Logger
}

// NewRefundProcessorAgent creates the processor agent.
func NewRefundProcessorAgent(processor *tools.Processor, logger *zap.Logger) *RefundProcessorAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundProcessorAgent{
		processor: processor,
		logger:    logger.With(zap.String("component", "refund_processor_agent")),
	}
}

// Kind implements Agent.
func (a *RefundProcessorAgent) Kind() types.AgentKind { return types.AgentRefundProcessor }

// Handle runs the refund and renders the receipt.
func (a *RefundProcessorAgent) Handle(ctx context.Context, utterance string, ac *Context) (types.AgentOutput, error) {
	if err := ctx.Err(); err != nil {
		return types.AgentOutput{}, err
	}

	orderID := ac.ParamString("order_id")
	if orderID == "" && ac.Order != nil {
		orderID = ac.Order.OrderID
	}

	result := a.processor.Process(tools.ProcessRequest{
		OrderID:      orderID,
		Reason:       a.reason(ac),
		IsDefective:  ac.ParamBool("is_defective"),
		CustomerNote: ac.ParamString("customer_note"),
	})

	if !result.Success {
		response := result.Message
		if len(result.Reasons) > 0 {
			response = fmt.Sprintf("%s %s", result.Message, strings.Join(result.Reasons, " "))
		}
		return types.AgentOutput{
			Agent:    types.AgentRefundProcessor,
			Success:  false,
			Error:    result.Message,
			Response: response,
		}, nil
	}

	return types.AgentOutput{
		Agent:    types.AgentRefundProcessor,
		Success:  true,
		Response: renderReceipt(*result.Receipt),
		Refund:   result.Receipt,
	}, nil
}

func (a *RefundProcessorAgent) reason(ac *Context) string {
	if r := ac.ParamString("reason"); r != "" {
		return r
	}
	if ac.Entities != nil {
		if r := ac.Entities.RefundReason(); r != "" {
			return r
		}
	}
	return "고객 요청"
}

func renderReceipt(r types.RefundReceipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "환불이 접수되었습니다. (접수번호 %s)\n", r.RefundID)
	fmt.Fprintf(&b, "%s 상품 금액 %s원에서", r.ProductName, types.FormatKRW(r.OriginalPrice))
	if r.RefundFee+r.ShippingFee > 0 {
		fmt.Fprintf(&b, " 수수료 %s원을 제외한", types.FormatKRW(r.RefundFee+r.ShippingFee))
	}
	fmt.Fprintf(&b, " %s원이 환불됩니다.\n", types.FormatKRW(r.RefundAmount))
	for _, step := range r.NextSteps {
		fmt.Fprintf(&b, "- %s\n", step)
	}
	return strings.TrimRight(b.String(), "\n")
}
