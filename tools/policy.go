package tools

import (
	"fmt"
	"strings"
)

// BasicRules are the headline numbers of the refund policy.
type BasicRules struct {
	RefundPeriodDays int
	FeeRate          float64
	MinimumFee       int
	ShippingFee      int // one-way, KRW
}

// StatusPolicy states what a delivery status permits.
type StatusPolicy struct {
	Cancellable bool
	Fee         bool
	Immediate   bool
}

// RefundPolicy answers policy questions: per-status rules, hygiene-category
// restrictions, and the full policy text used in prompts.
type RefundPolicy struct {
	basic          BasicRules
	statusPolicies map[string]StatusPolicy
	nonRefundable  []string
	fullText       string
}

var hygieneKeywords = []string{
	"젤", "크림", "로션", "세럼", "토너", "클렌징", "샴푸", "린스", "비누", "향수",
}

// NewRefundPolicy loads the embedded policy text and the structured rules
// derived from it.
func NewRefundPolicy() (*RefundPolicy, error) {
	raw, err := dataFS.ReadFile("data/refund_policy.txt")
	if err != nil {
		return nil, fmt.Errorf("read refund policy: %w", err)
	}
	return &RefundPolicy{
		basic: BasicRules{
			RefundPeriodDays: 7,
			FeeRate:          0.1,
			MinimumFee:       2000,
			ShippingFee:      3000,
		},
		statusPolicies: map[string]StatusPolicy{
			StatusOrdered:   {Cancellable: true, Fee: false, Immediate: true},
			StatusPaid:      {Cancellable: true, Fee: false, Immediate: true},
			StatusPreparing: {Cancellable: true, Fee: false, Immediate: true},
			StatusInTransit: {Cancellable: true, Fee: true, Immediate: false},
			StatusDelivered: {Cancellable: true, Fee: true, Immediate: false},
		},
		nonRefundable: []string{
			"칫솔", "치약", "샴푸", "린스", "비누", "세안제", "화장품",
			"마스크팩", "크림", "로션", "향수", "데오드란트", "면도기",
			"콘택트렌즈", "속옷", "양말", "마스크", "생리용품",
		},
		fullText: string(raw),
	}, nil
}

// Basic returns the headline policy numbers.
func (p *RefundPolicy) Basic() BasicRules { return p.basic }

// ForStatus returns the policy for a delivery status.
func (p *RefundPolicy) ForStatus(status string) (StatusPolicy, bool) {
	sp, ok := p.statusPolicies[status]
	return sp, ok
}

// IsHygieneProduct reports whether the product falls under the
// personal-hygiene restriction: listed keyword in the name, the cosmetics
// category, or a hygiene-typical name pattern.
func (p *RefundPolicy) IsHygieneProduct(productName, category string) bool {
	name := strings.ToLower(productName)
	for _, item := range p.nonRefundable {
		if strings.Contains(name, strings.ToLower(item)) {
			return true
		}
	}
	if category == "화장품" {
		return true
	}
	for _, keyword := range hygieneKeywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}

// FullText returns the policy document verbatim.
func (p *RefundPolicy) FullText() string { return p.fullText }
