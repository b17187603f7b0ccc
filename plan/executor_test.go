package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mallchat/agent"
	"github.com/BaSui01/mallchat/types"
)

// stubAgent is a scripted agent with call recording.
type stubAgent struct {
	kind     types.AgentKind
	handle   func(ac *agent.Context) (types.AgentOutput, error)
	invoked  int
	contexts []*agent.Context
}

func (s *stubAgent) Kind() types.AgentKind { return s.kind }

func (s *stubAgent) Handle(ctx context.Context, utterance string, ac *agent.Context) (types.AgentOutput, error) {
	s.invoked++
	s.contexts = append(s.contexts, ac)
	if s.handle != nil {
		return s.handle(ac)
	}
	return types.AgentOutput{Agent: s.kind, Success: true, Response: "ok"}, nil
}

type captureSink struct {
	keys []string
}

func (c *captureSink) RecordToolResult(key string, out types.AgentOutput) {
	c.keys = append(c.keys, key)
}

func newTestExecutor(t *testing.T, agents ...agent.Agent) *Executor {
	t.Helper()
	registry, err := agent.NewRegistry(agents...)
	require.NoError(t, err)
	return NewExecutor(registry, nil)
}

func TestExecuteSkipsStepWithFailedDependency(t *testing.T) {
	order := &stubAgent{kind: types.AgentOrder, handle: func(ac *agent.Context) (types.AgentOutput, error) {
		return types.AgentOutput{Agent: types.AgentOrder, Success: false, Error: "not found"}, nil
	}}
	refund := &stubAgent{kind: types.AgentRefund}
	e := newTestExecutor(t, order, refund)

	p := Fallback(types.IntentRefundInquiry, nil)
	results := e.Execute(context.Background(), "환불해줘", p, &agent.Context{}, nil)

	assert.Equal(t, 1, order.invoked)
	assert.Zero(t, refund.invoked, "skipped step must never be invoked")
	assert.Equal(t, StatusCompleted, p.Steps[0].Status)
	assert.Equal(t, StatusSkipped, p.Steps[1].Status)
	_, hasRefund := results["refund_agent"]
	assert.False(t, hasRefund)
}

func TestExecuteStepCompletesEvenWhenAgentErrors(t *testing.T) {
	order := &stubAgent{kind: types.AgentOrder, handle: func(ac *agent.Context) (types.AgentOutput, error) {
		return types.AgentOutput{}, context.DeadlineExceeded
	}}
	e := newTestExecutor(t, order)

	p := Fallback(types.IntentOrderStatus, nil)
	results := e.Execute(context.Background(), "주문 확인", p, nil, nil)

	assert.Equal(t, StatusCompleted, p.Steps[0].Status)
	out := results["order_agent"]
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
}

func TestExecuteContainsPanics(t *testing.T) {
	order := &stubAgent{kind: types.AgentOrder, handle: func(ac *agent.Context) (types.AgentOutput, error) {
		panic("boom")
	}}
	e := newTestExecutor(t, order)

	p := Fallback(types.IntentOrderStatus, nil)
	results := e.Execute(context.Background(), "주문", p, nil, nil)

	out := results["order_agent"]
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "panic")
	assert.Equal(t, StatusCompleted, p.Steps[0].Status)
}

func TestExecuteEnrichesRefundStepFromLookupResult(t *testing.T) {
	order := &stubAgent{kind: types.AgentOrder, handle: func(ac *agent.Context) (types.AgentOutput, error) {
		return types.AgentOutput{
			Agent:   types.AgentOrder,
			Success: true,
			Orders:  []types.Order{{OrderID: "ORD20250815001", ProductName: "무선 이어폰"}},
		}, nil
	}}
	refund := &stubAgent{kind: types.AgentRefund}
	e := newTestExecutor(t, order, refund)

	p := Fallback(types.IntentRefundInquiry, nil)
	e.Execute(context.Background(), "이어폰 환불", p, &agent.Context{}, nil)

	require.Equal(t, 1, refund.invoked)
	assert.Equal(t, "ORD20250815001", refund.contexts[0].ParamString("order_id"))
	// earlier results are visible to later steps
	assert.Contains(t, refund.contexts[0].Previous, "order_agent")
}

func TestExecuteQualifiesFanOutKeys(t *testing.T) {
	refund := &stubAgent{kind: types.AgentRefund}
	e := newTestExecutor(t, refund)
	sink := &captureSink{}

	p := &Plan{Type: TypeMultiStep, Steps: []Step{
		{ID: "1", Agent: types.AgentRefund, Params: map[string]any{"order_id": "ORD001"}, Status: StatusPending},
		{ID: "2", Agent: types.AgentRefund, Params: map[string]any{"order_id": "ORD002"}, Status: StatusPending},
	}}
	results := e.Execute(context.Background(), "전부 확인", p, nil, sink)

	assert.Contains(t, results, "refund_agent::ORD001")
	assert.Contains(t, results, "refund_agent::ORD002")
	assert.ElementsMatch(t, []string{"refund_agent::ORD001", "refund_agent::ORD002"}, sink.keys)
}

func TestExecuteSatisfiesDependencyThroughQualifiedKey(t *testing.T) {
	refund := &stubAgent{kind: types.AgentRefund}
	general := &stubAgent{kind: types.AgentGeneral}
	e := newTestExecutor(t, refund, general)

	p := &Plan{Type: TypeMultiStep, Steps: []Step{
		{ID: "1", Agent: types.AgentRefund, Params: map[string]any{"order_id": "ORD001"}, Status: StatusPending},
		{ID: "2", Agent: types.AgentRefund, Params: map[string]any{"order_id": "ORD002"}, Status: StatusPending},
		{ID: "3", Agent: types.AgentGeneral, DependsOn: []string{"refund_agent"}, Status: StatusPending},
	}}
	e.Execute(context.Background(), "정리해줘", p, nil, nil)

	assert.Equal(t, 1, general.invoked)
	assert.Equal(t, StatusCompleted, p.Steps[2].Status)
}

func TestExecuteResolvesStepIDDependency(t *testing.T) {
	order := &stubAgent{kind: types.AgentOrder, handle: func(ac *agent.Context) (types.AgentOutput, error) {
		return types.AgentOutput{Agent: types.AgentOrder, Success: true}, nil
	}}
	general := &stubAgent{kind: types.AgentGeneral}
	e := newTestExecutor(t, order, general)

	p := &Plan{Type: TypeMultiStep, Steps: []Step{
		{ID: "1", Agent: types.AgentOrder, Params: map[string]any{}, Status: StatusPending},
		{ID: "2", Agent: types.AgentGeneral, DependsOn: []string{"1"}, Status: StatusPending},
	}}
	e.Execute(context.Background(), "주문 보고 정리해줘", p, nil, nil)

	assert.Equal(t, 1, general.invoked)
	assert.Equal(t, StatusCompleted, p.Steps[1].Status)
}

func TestExecuteProcessorInheritsSessionOrder(t *testing.T) {
	proc := &stubAgent{kind: types.AgentRefundProcessor}
	e := newTestExecutor(t, proc)

	p := &Plan{Type: TypeSingleAgent, Steps: []Step{
		{ID: "1", Agent: types.AgentRefundProcessor, Params: map[string]any{}, Status: StatusPending},
	}}
	base := &agent.Context{Order: &types.Order{OrderID: "ORD20250815001"}}
	e.Execute(context.Background(), "네 진행해주세요", p, base, nil)

	require.Equal(t, 1, proc.invoked)
	assert.Equal(t, "ORD20250815001", proc.contexts[0].ParamString("order_id"))
}
