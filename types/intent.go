package types

// Intent is the closed set of conversation intents the classifier may emit.
type Intent string

const (
	IntentRefundInquiry  Intent = "refund_inquiry"
	IntentOrderStatus    Intent = "order_status"
	IntentProductInquiry Intent = "product_inquiry"
	IntentClarification  Intent = "clarification"
	IntentGeneralChat    Intent = "general_chat"
)

// ParseIntent maps a raw label onto the closed intent set. Unknown labels
// degrade to general_chat rather than failing, so a creative classifier
// response can never break the pipeline.
func ParseIntent(raw string) Intent {
	switch Intent(raw) {
	case IntentRefundInquiry, IntentOrderStatus, IntentProductInquiry,
		IntentClarification, IntentGeneralChat:
		return Intent(raw)
	default:
		return IntentGeneralChat
	}
}

// Classification is the classifier's verdict for one utterance.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
}

// DefaultClassification is the recovery value used whenever classification
// fails for any reason: general_chat at confidence 0.5 with no entities.
func DefaultClassification() Classification {
	return Classification{
		Intent:     IntentGeneralChat,
		Confidence: 0.5,
		Entities:   Entities{},
	}
}

// Confirmation is the outcome of interpreting a reply to a pending
// confirmation question.
type Confirmation string

const (
	ConfirmationYes     Confirmation = "yes"
	ConfirmationNo      Confirmation = "no"
	ConfirmationUnknown Confirmation = "unknown"
)
