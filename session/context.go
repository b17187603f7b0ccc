// Package session holds conversation state across turns and persists it
// through pluggable stores.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/mallchat/types"
)

// PendingAction names an operation waiting on user confirmation.
type PendingAction string

// PendingConfirmRefund means a refund was judged possible and the user was
// asked whether to proceed.
const PendingConfirmRefund PendingAction = "confirm_refund"

// PendingPayload is the state parked while a confirmation is outstanding.
type PendingPayload struct {
	Question    string                       `json:"question,omitempty"`
	ToolResults map[string]types.AgentOutput `json:"tool_results,omitempty"`
}

// State is the mutable slice of a conversation: what the user currently
// wants, what has been learned, and what is waiting on them.
type State struct {
	CurrentIntent  types.Intent                 `json:"current_intent,omitempty"`
	Entities       types.Entities               `json:"entities"`
	PendingAction  PendingAction                `json:"pending_action,omitempty"`
	PendingData    *PendingPayload              `json:"pending_data,omitempty"`
	OrderContext   *types.Order                 `json:"order_context,omitempty"`
	MultipleOrders []types.Order                `json:"multiple_orders,omitempty"`
	ToolResults    map[string]types.AgentOutput `json:"tool_results"`
}

// Context is one session's full conversation record.
type Context struct {
	SessionID string       `json:"session_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Turns     []types.Turn `json:"turns"`
	State     State        `json:"state"`
}

// NewContext creates an empty session context.
func NewContext(sessionID string, now time.Time) *Context {
	return &Context{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
		State: State{
			Entities:    types.Entities{},
			ToolResults: map[string]types.AgentOutput{},
		},
	}
}

// AddUserTurn appends the utterance and folds its entities into the
// accumulated set: new keys add, colliding keys update, absent keys survive.
func (c *Context) AddUserTurn(content string, intent types.Intent, entities types.Entities) {
	c.Turns = append(c.Turns, types.NewUserTurn(content, intent, entities))
	c.State.CurrentIntent = intent
	if c.State.Entities == nil {
		c.State.Entities = types.Entities{}
	}
	c.State.Entities.Merge(entities)
	c.touch()
}

// AddAssistantTurn appends the reply with the tools that produced it.
func (c *Context) AddAssistantTurn(content string, toolsInvoked []string) {
	c.Turns = append(c.Turns, types.NewAssistantTurn(content, toolsInvoked))
	c.touch()
}

// RecentTurns returns the last n turns, oldest first.
func (c *Context) RecentTurns(n int) []types.Turn {
	if n <= 0 || len(c.Turns) == 0 {
		return nil
	}
	if len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

// RecentExchanges returns the last n completed user/assistant pairs, oldest
// first. An unanswered trailing user turn is not a pair and is excluded.
func (c *Context) RecentExchanges(n int) []types.Exchange {
	var exchanges []types.Exchange
	for i := 0; i+1 < len(c.Turns); i++ {
		if c.Turns[i].Role == types.RoleUser && c.Turns[i+1].Role == types.RoleAssistant {
			exchanges = append(exchanges, types.Exchange{
				User:      c.Turns[i].Content,
				Assistant: c.Turns[i+1].Content,
			})
			i++
		}
	}
	if n > 0 && len(exchanges) > n {
		exchanges = exchanges[len(exchanges)-n:]
	}
	return exchanges
}

// RecordToolResult stores a step result. Exactly one order in a result
// promotes it to the session's order context; several orders become
// clarification candidates instead.
func (c *Context) RecordToolResult(key string, out types.AgentOutput) {
	if c.State.ToolResults == nil {
		c.State.ToolResults = map[string]types.AgentOutput{}
	}
	c.State.ToolResults[key] = out

	if out.Success {
		switch len(out.Orders) {
		case 0:
		case 1:
			order := out.Orders[0]
			c.State.OrderContext = &order
			c.State.MultipleOrders = nil
		default:
			c.State.MultipleOrders = out.Orders
		}
	}
	c.touch()
}

// SetPendingAction parks the conversation on a confirmation question.
func (c *Context) SetPendingAction(action PendingAction, payload *PendingPayload) {
	c.State.PendingAction = action
	c.State.PendingData = payload
	c.touch()
}

// ClearPendingAction resolves the confirmation, keeping the rest of the
// state intact.
func (c *Context) ClearPendingAction() {
	c.State.PendingAction = ""
	c.State.PendingData = nil
	c.touch()
}

// NeedsConfirmation reports whether a confirmation is outstanding.
func (c *Context) NeedsConfirmation() bool {
	return c.State.PendingAction != ""
}

// PendingQuestion returns the parked question, or "".
func (c *Context) PendingQuestion() string {
	if c.State.PendingData == nil {
		return ""
	}
	return c.State.PendingData.Question
}

// ToolsInvoked lists the result keys recorded so far.
func (c *Context) ToolsInvoked() []string {
	out := make([]string, 0, len(c.State.ToolResults))
	for k := range c.State.ToolResults {
		out = append(out, k)
	}
	return out
}

// StructuredSummary renders the session state for prompts.
func (c *Context) StructuredSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "턴 수: %d / 현재 의도: %s\n", len(c.Turns), orDash(string(c.State.CurrentIntent)))
	if len(c.State.Entities) > 0 {
		fmt.Fprintf(&b, "누적 entities: %v\n", map[string]any(c.State.Entities))
	}
	if c.State.OrderContext != nil {
		fmt.Fprintf(&b, "대화 중인 주문: %s (%s, %s)\n",
			c.State.OrderContext.OrderID, c.State.OrderContext.ProductName,
			c.State.OrderContext.DeliveryStatus)
	}
	if len(c.State.MultipleOrders) > 0 {
		fmt.Fprintf(&b, "후보 주문 %d건\n", len(c.State.MultipleOrders))
	}
	if c.State.PendingAction != "" {
		fmt.Fprintf(&b, "대기 중인 확인: %s\n", c.State.PendingAction)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary is the machine-readable digest attached to every reply.
type Summary struct {
	SessionID       string       `json:"session_id"`
	TurnCount       int          `json:"turn_count"`
	CurrentIntent   types.Intent `json:"current_intent,omitempty"`
	HasOrderContext bool         `json:"has_order_context"`
	PendingAction   string       `json:"pending_action,omitempty"`
	ToolsUsed       []string     `json:"tools_used,omitempty"`
}

// Summarize builds the digest.
func (c *Context) Summarize() Summary {
	return Summary{
		SessionID:       c.SessionID,
		TurnCount:       len(c.Turns),
		CurrentIntent:   c.State.CurrentIntent,
		HasOrderContext: c.State.OrderContext != nil,
		PendingAction:   string(c.State.PendingAction),
		ToolsUsed:       c.ToolsInvoked(),
	}
}

func (c *Context) touch() { c.UpdatedAt = time.Now() }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
