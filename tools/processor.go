package tools

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/types"
)

// ProcessRequest asks for a refund to be executed on a validated order.
type ProcessRequest struct {
	OrderID      string
	Reason       string
	IsDefective  bool
	CustomerNote string
}

// ProcessResult is the outcome of a refund attempt. On rejection, Reasons
// carries the validator's explanation.
type ProcessResult struct {
	Success   bool
	Message   string
	Receipt   *types.RefundReceipt
	Reasons   []string
	NextSteps []string
}

// Processor executes refunds (simulated): it re-validates the order,
// computes the payout, issues a refund id, and records the receipt.
type Processor struct {
	validator  *RefundValidator
	calculator *FeeCalculator
	now        func() time.Time
	logger     *zap.Logger

	mu        sync.Mutex
	processed []types.RefundReceipt
}

// NewProcessor creates a processor. now is injectable for tests; nil means
// time.Now.
func NewProcessor(validator *RefundValidator, calculator *FeeCalculator, now func() time.Time, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Processor{
		validator:  validator,
		calculator: calculator,
		now:        now,
		logger:     logger.With(zap.String("component", "refund_processor")),
	}
}

// Process runs the refund end to end.
func (p *Processor) Process(req ProcessRequest) ProcessResult {
	if req.OrderID == "" {
		return ProcessResult{Message: "주문번호가 필요합니다."}
	}
	if req.Reason == "" {
		req.Reason = "고객 변심"
	}

	validation := p.validator.Validate(ValidationRequest{
		OrderID:     req.OrderID,
		IsDefective: req.IsDefective,
	})
	if !validation.Refundable {
		return ProcessResult{
			Message: "환불이 불가능합니다.",
			Reasons: validation.Reasons,
		}
	}

	order := validation.Order
	calc, err := p.calculator.Calculate(order.Price, order.DeliveryStatus)
	if err != nil {
		p.logger.Error("fee calculation failed",
			zap.String("order_id", req.OrderID), zap.Error(err))
		return ProcessResult{Message: "환불 금액 계산에 실패했습니다."}
	}

	processedAt := p.now()
	receipt := types.RefundReceipt{
		RefundID:      fmt.Sprintf("REF%s%s", processedAt.Format("20060102150405"), orderSuffix(req.OrderID)),
		OrderID:       order.OrderID,
		ProductName:   order.ProductName,
		OriginalPrice: calc.ProductPrice,
		RefundFee:     calc.RefundFee,
		ShippingFee:   calc.ShippingFee,
		RefundAmount:  calc.RefundAmount,
		Reason:        req.Reason,
		ProcessedAt:   processedAt,
		NextSteps:     nextSteps(order.DeliveryStatus),
	}

	p.mu.Lock()
	p.processed = append(p.processed, receipt)
	p.mu.Unlock()

	p.logger.Info("refund processed",
		zap.String("refund_id", receipt.RefundID),
		zap.String("order_id", receipt.OrderID),
		zap.Int("refund_amount", receipt.RefundAmount))

	return ProcessResult{
		Success:   true,
		Message:   "환불이 성공적으로 처리되었습니다.",
		Receipt:   &receipt,
		NextSteps: receipt.NextSteps,
	}
}

// Receipt looks up a processed refund by id.
func (p *Processor) Receipt(refundID string) (types.RefundReceipt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.processed {
		if r.RefundID == refundID {
			return r, true
		}
	}
	return types.RefundReceipt{}, false
}

// All returns every processed refund, oldest first.
func (p *Processor) All() []types.RefundReceipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.RefundReceipt, len(p.processed))
	copy(out, p.processed)
	return out
}

func orderSuffix(orderID string) string {
	if len(orderID) <= 3 {
		return orderID
	}
	return orderID[len(orderID)-3:]
}

func nextSteps(deliveryStatus string) []string {
	switch {
	case PreShipment(deliveryStatus):
		return []string{
			"주문이 즉시 취소되었습니다.",
			"환불 금액은 영업일 기준 3-5일 내에 원래 결제 수단으로 입금됩니다.",
		}
	case deliveryStatus == StatusInTransit:
		return []string{
			"배송 중인 상품의 회수를 요청했습니다.",
			"상품이 회수되면 환불이 진행됩니다.",
			"환불 금액은 상품 확인 후 영업일 기준 3-5일 내에 입금됩니다.",
		}
	case deliveryStatus == StatusDelivered:
		return []string{
			"택배사를 통해 상품 회수가 진행됩니다.",
			"회수 신청 후 1-2일 내에 택배 기사가 방문할 예정입니다.",
			"상품을 반송할 수 있도록 포장해 주세요.",
			"상품 확인 후 영업일 기준 3-5일 내에 환불금이 입금됩니다.",
		}
	default:
		return nil
	}
}
