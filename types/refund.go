package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RefundDecision is the structured verdict of a refund eligibility review.
// Possible is a tri-state: nil means the review could not reach a verdict
// (for example the model reply failed to parse) and only UserResponse is
// meaningful.
type RefundDecision struct {
	Possible          *bool    `json:"refund_possible"`
	Fee               int      `json:"refund_fee"`
	TotalRefundAmount int      `json:"total_refund_amount"`
	Reason            string   `json:"reason"`
	PolicyApplied     []string `json:"policy_applied,omitempty"`
	UserResponse      string   `json:"user_response,omitempty"`
}

// Render produces the user-facing summary of the decision. Amounts are only
// stated for a positive verdict: a zero fee renders as a full refund with no
// fee mention, and a positive fee always appears together with the total it
// was deducted from.
func (d RefundDecision) Render() string {
	if d.Possible == nil {
		if d.UserResponse != "" {
			return d.UserResponse
		}
		return "환불 가능 여부를 확인하지 못했습니다. 잠시 후 다시 시도해 주세요."
	}
	if !*d.Possible {
		if d.Reason != "" {
			return fmt.Sprintf("죄송합니다. 해당 주문은 환불이 어렵습니다. 사유: %s", d.Reason)
		}
		return "죄송합니다. 해당 주문은 환불이 어렵습니다."
	}

	var b strings.Builder
	b.WriteString("환불이 가능합니다.")
	if d.Fee > 0 {
		fmt.Fprintf(&b, " 수수료 %s원을 제외한 %s원이 환불됩니다.",
			FormatKRW(d.Fee), FormatKRW(d.TotalRefundAmount))
	} else {
		fmt.Fprintf(&b, " 환불 예정 금액은 %s원입니다.", FormatKRW(d.TotalRefundAmount))
	}
	if d.Reason != "" {
		fmt.Fprintf(&b, " (%s)", d.Reason)
	}
	b.WriteString(" 환불을 진행할까요?")
	return b.String()
}

// RefundReceipt records a processed (simulated) refund.
type RefundReceipt struct {
	RefundID      string    `json:"refund_id"`
	OrderID       string    `json:"order_id"`
	ProductName   string    `json:"product_name"`
	OriginalPrice int       `json:"original_price"`
	RefundFee     int       `json:"refund_fee"`
	ShippingFee   int       `json:"shipping_fee"`
	RefundAmount  int       `json:"refund_amount"`
	Reason        string    `json:"reason"`
	ProcessedAt   time.Time `json:"processed_at"`
	NextSteps     []string  `json:"next_steps,omitempty"`
}

// FormatKRW renders an amount with thousands separators, e.g. 1250000 →
// "1,250,000".
func FormatKRW(amount int) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.Itoa(amount)
	if len(s) > 3 {
		var b strings.Builder
		lead := len(s) % 3
		if lead > 0 {
			b.WriteString(s[:lead])
		}
		for i := lead; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}
