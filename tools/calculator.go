package tools

import (
	"fmt"
	"strings"

	"github.com/BaSui01/mallchat/types"
)

// Calculation is the fee breakdown for one refund.
type Calculation struct {
	ProductPrice   int    `json:"product_price"`
	RefundFee      int    `json:"refund_fee"`
	ShippingFee    int    `json:"shipping_fee"`
	TotalDeduction int    `json:"total_deduction"`
	RefundAmount   int    `json:"refund_amount"`
	Details        string `json:"fee_details"`
}

// FeeCalculator computes refund fees from the policy numbers.
type FeeCalculator struct {
	policy *RefundPolicy
}

// NewFeeCalculator creates a calculator over policy.
func NewFeeCalculator(policy *RefundPolicy) *FeeCalculator {
	return &FeeCalculator{policy: policy}
}

// Calculate produces the fee breakdown for a product at the given delivery
// status. Pre-shipment cancellations are free. Shipping is one-way while in
// transit and round-trip once delivered.
func (c *FeeCalculator) Calculate(productPrice int, deliveryStatus string) (Calculation, error) {
	if productPrice <= 0 {
		return Calculation{}, fmt.Errorf("invalid product price %d", productPrice)
	}

	if PreShipment(deliveryStatus) {
		return Calculation{
			ProductPrice: productPrice,
			RefundAmount: productPrice,
			Details:      "배송 전 취소는 수수료가 없습니다.",
		}, nil
	}

	rules := c.policy.Basic()
	calculated := int(float64(productPrice) * rules.FeeRate)
	refundFee := calculated
	if refundFee < rules.MinimumFee {
		refundFee = rules.MinimumFee
	}

	shippingFee := 0
	switch deliveryStatus {
	case StatusDelivered:
		shippingFee = rules.ShippingFee * 2
	case StatusInTransit:
		shippingFee = rules.ShippingFee
	}

	totalDeduction := refundFee + shippingFee
	calc := Calculation{
		ProductPrice:   productPrice,
		RefundFee:      refundFee,
		ShippingFee:    shippingFee,
		TotalDeduction: totalDeduction,
		RefundAmount:   productPrice - totalDeduction,
	}
	calc.Details = c.describe(calc, calculated < rules.MinimumFee, deliveryStatus)
	return calc, nil
}

func (c *FeeCalculator) describe(calc Calculation, minimumApplied bool, status string) string {
	var parts []string
	if calc.RefundFee > 0 {
		if minimumApplied {
			parts = append(parts, fmt.Sprintf("환불 수수료: %s원 (최소 수수료 적용)", types.FormatKRW(calc.RefundFee)))
		} else {
			parts = append(parts, fmt.Sprintf("환불 수수료: %s원 (상품가격의 10%%)", types.FormatKRW(calc.RefundFee)))
		}
	}
	if calc.ShippingFee > 0 {
		if status == StatusDelivered {
			parts = append(parts, fmt.Sprintf("배송비: %s원 (왕복 배송비)", types.FormatKRW(calc.ShippingFee)))
		} else {
			parts = append(parts, fmt.Sprintf("배송비: %s원 (편도 배송비)", types.FormatKRW(calc.ShippingFee)))
		}
	}
	if len(parts) == 0 {
		return "수수료가 없습니다."
	}
	parts = append(parts,
		fmt.Sprintf("총 차감액: %s원", types.FormatKRW(calc.TotalDeduction)),
		fmt.Sprintf("최종 환불 금액: %s원", types.FormatKRW(calc.RefundAmount)))
	return strings.Join(parts, " / ")
}
