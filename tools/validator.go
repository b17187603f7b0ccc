package tools

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/types"
)

// ValidationRequest identifies the order under review and the claimed
// condition of the item.
type ValidationRequest struct {
	OrderID       string
	ProductName   string // used when OrderID is absent
	IsDefective   bool
	HasUsageTrace bool
}

// ValidationResult lists the deterministic refund facts for one order.
// Refundable is the rule-based verdict; Reasons explains it line by line.
type ValidationResult struct {
	Success           bool
	Refundable        bool
	Reasons           []string
	Order             *types.Order
	IsHygieneProduct  bool
	DaysSinceDelivery *int
}

// RefundValidator checks an order against the refund policy: per-status
// cancellability, the 7-day window (waived for defective items), and the
// hygiene-category restriction.
type RefundValidator struct {
	orders *OrderHistory
	policy *RefundPolicy
	today  time.Time
	logger *zap.Logger
}

// NewRefundValidator creates a validator. today anchors the day-difference
// rules.
func NewRefundValidator(orders *OrderHistory, policy *RefundPolicy, today time.Time, logger *zap.Logger) *RefundValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundValidator{
		orders: orders,
		policy: policy,
		today:  today,
		logger: logger.With(zap.String("component", "refund_validator")),
	}
}

// Validate resolves the order and applies every policy rule.
func (v *RefundValidator) Validate(req ValidationRequest) ValidationResult {
	var order types.Order
	var ok bool
	switch {
	case req.OrderID != "":
		order, ok = v.orders.ByID(req.OrderID)
	case req.ProductName != "":
		order, ok = v.orders.LatestByProduct(req.ProductName)
	}
	if !ok {
		return ValidationResult{
			Refundable: false,
			Reasons:    []string{"주문 정보를 찾을 수 없습니다."},
		}
	}

	result := ValidationResult{Success: true, Refundable: true, Order: &order}

	statusPolicy, known := v.policy.ForStatus(order.DeliveryStatus)
	if !known || !statusPolicy.Cancellable {
		result.Refundable = false
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%s 상태에서는 환불이 불가능합니다.", order.DeliveryStatus))
	}

	if order.DeliveryStatus == StatusDelivered {
		if days, has := v.orders.DaysSinceDelivery(order.OrderID, v.today); has {
			result.DaysSinceDelivery = &days
			period := v.policy.Basic().RefundPeriodDays
			if days > period {
				if !req.IsDefective {
					result.Refundable = false
					result.Reasons = append(result.Reasons,
						fmt.Sprintf("배송완료 후 %d일이 경과했습니다. (경과일: %d일)", period, days))
				}
			} else {
				result.Reasons = append(result.Reasons,
					fmt.Sprintf("환불 가능 기간 내입니다. (경과일: %d일)", days))
			}
		}
	}

	result.IsHygieneProduct = v.policy.IsHygieneProduct(order.ProductName, order.Category)
	if result.IsHygieneProduct {
		if !req.IsDefective {
			result.Refundable = false
			result.Reasons = append(result.Reasons, "개인위생용품은 불량품이 아닌 경우 환불이 불가능합니다.")
		} else {
			result.Reasons = append(result.Reasons, "개인위생용품이지만 불량품이므로 환불 가능합니다.")
		}
	}

	if req.HasUsageTrace && !req.IsDefective {
		result.Reasons = append(result.Reasons, "사용 흔적이 있는 경우 추가 수수료가 발생할 수 있습니다.")
	}

	if result.Refundable && statusPolicy.Fee {
		result.Reasons = append(result.Reasons, "환불 수수료가 적용됩니다.")
	}

	v.logger.Debug("refund validated",
		zap.String("order_id", order.OrderID),
		zap.Bool("refundable", result.Refundable),
		zap.Bool("defective", req.IsDefective))

	return result
}
