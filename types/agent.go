package types

import "fmt"

// AgentKind is the closed set of executable agents a plan step may name.
type AgentKind string

const (
	AgentOrder           AgentKind = "order_agent"
	AgentRefund          AgentKind = "refund_agent"
	AgentGeneral         AgentKind = "general_agent"
	AgentRefundProcessor AgentKind = "refund_processor"
)

// ParseAgentKind validates a raw agent label. Unlike intents, an unknown agent
// is an error: executing an agent the registry does not hold is never safe.
func ParseAgentKind(raw string) (AgentKind, error) {
	switch AgentKind(raw) {
	case AgentOrder, AgentRefund, AgentGeneral, AgentRefundProcessor:
		return AgentKind(raw), nil
	default:
		return "", fmt.Errorf("unknown agent kind %q", raw)
	}
}

// AgentOutput is the uniform result envelope every agent returns. Success
// reflects whether the agent produced a usable answer, not whether the step
// ran; downstream steps gate on it.
type AgentOutput struct {
	Agent    AgentKind       `json:"agent"`
	StepID   string          `json:"step_id,omitempty"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Response string          `json:"response,omitempty"`
	Orders   []Order         `json:"orders,omitempty"`
	Decision *RefundDecision `json:"decision,omitempty"`
	Refund   *RefundReceipt  `json:"refund,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
}
