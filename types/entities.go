package types

// Well-known entity keys produced by the intent classifier.
const (
	EntityOrderID         = "order_id"
	EntityProductName     = "product_name"
	EntityTimeReference   = "time_reference"
	EntityQuantity        = "quantity"
	EntityRefundReason    = "refund_reason"
	EntityRefundReference = "refund_reference"
	EntitySelectionType   = "selection_type"
)

// Values of the selection_type entity: which of the listed candidates a
// clarification reply picked.
const (
	SelectionFirst    = "first"
	SelectionSecond   = "second"
	SelectionThird    = "third"
	SelectionOther    = "other"
	SelectionSpecific = "specific"
)

// Entities holds the slot values extracted from user utterances. Values are
// whatever JSON decoding produced, so numeric slots may arrive as float64.
type Entities map[string]any

// Merge folds src into e: new keys are added, colliding keys take the newer
// value, and keys absent from src are preserved. e is never replaced wholesale.
func (e Entities) Merge(src Entities) {
	for k, v := range src {
		e[k] = v
	}
}

// Clone returns a shallow copy, never nil.
func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func (e Entities) stringValue(key string) string {
	if v, ok := e[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// OrderID returns the extracted order id, or "".
func (e Entities) OrderID() string { return e.stringValue(EntityOrderID) }

// ProductName returns the extracted product name, or "".
func (e Entities) ProductName() string { return e.stringValue(EntityProductName) }

// TimeReference returns the extracted time expression, or "".
func (e Entities) TimeReference() string { return e.stringValue(EntityTimeReference) }

// RefundReason returns the extracted refund reason, or "".
func (e Entities) RefundReason() string { return e.stringValue(EntityRefundReason) }

// SelectionType returns which candidate a clarification picked
// (first/second/third/other/specific), or "".
func (e Entities) SelectionType() string { return e.stringValue(EntitySelectionType) }

// RefundReference reports whether the utterance referred back to an earlier
// refund discussion ("that refund", "환불해줘" after a lookup).
func (e Entities) RefundReference() bool {
	switch v := e[EntityRefundReference].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes"
	default:
		return false
	}
}

// Quantity returns the extracted item count, or 0. JSON numbers decode as
// float64, so both forms are accepted.
func (e Entities) Quantity() int {
	switch v := e[EntityQuantity].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
