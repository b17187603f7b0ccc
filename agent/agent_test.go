package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/llm/retry"
	"github.com/BaSui01/mallchat/testutil/mocks"
	"github.com/BaSui01/mallchat/tools"
	"github.com/BaSui01/mallchat/types"
)

var testToday = time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)

type fixtures struct {
	history    *tools.OrderHistory
	policy     *tools.RefundPolicy
	validator  *tools.RefundValidator
	calculator *tools.FeeCalculator
	catalog    *tools.Catalog
}

func newFixtures(t *testing.T) fixtures {
	t.Helper()
	history, err := tools.NewOrderHistory(nil)
	require.NoError(t, err)
	policy, err := tools.NewRefundPolicy()
	require.NoError(t, err)
	catalog, err := tools.NewCatalog()
	require.NoError(t, err)
	return fixtures{
		history:    history,
		policy:     policy,
		validator:  tools.NewRefundValidator(history, policy, testToday, nil),
		calculator: tools.NewFeeCalculator(policy),
		catalog:    catalog,
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	f := newFixtures(t)
	a := NewOrderAgent(f.history, testToday, nil)

	_, err := NewRegistry(a, a)
	assert.Error(t, err)

	r, err := NewRegistry(a)
	require.NoError(t, err)
	got, ok := r.Lookup(types.AgentOrder)
	require.True(t, ok)
	assert.Equal(t, types.AgentOrder, got.Kind())
	_, ok = r.Lookup(types.AgentRefund)
	assert.False(t, ok)
}

func TestOrderAgentLooksUpByID(t *testing.T) {
	f := newFixtures(t)
	a := NewOrderAgent(f.history, testToday, nil)

	out, err := a.Handle(context.Background(), "ORD20250820002 주문 어디까지 왔어?", &Context{
		Params: map[string]any{"order_id": "ORD20250820002"},
	})

	require.NoError(t, err)
	assert.True(t, out.Success)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, "노트북", out.Orders[0].ProductName)
	assert.Contains(t, out.Response, "배송중")
	assert.Contains(t, out.Response, "1,250,000")
}

func TestOrderAgentReportsDaysSinceDelivery(t *testing.T) {
	f := newFixtures(t)
	a := NewOrderAgent(f.history, testToday, nil)

	out, err := a.Handle(context.Background(), "ORD20250815001 주문 상태 알려줘", &Context{
		Params: map[string]any{"order_id": "ORD20250815001"},
	})

	require.NoError(t, err)
	require.Len(t, out.Orders, 1)
	require.NotNil(t, out.Orders[0].DaysSinceDelivery)
	assert.Equal(t, 3, *out.Orders[0].DaysSinceDelivery)
	assert.Contains(t, out.Response, "3일")
}

func TestOrderAgentFallsBackToEntities(t *testing.T) {
	f := newFixtures(t)
	a := NewOrderAgent(f.history, testToday, nil)

	out, err := a.Handle(context.Background(), "내 이어폰 주문 확인해줘", &Context{
		Entities: types.Entities{types.EntityProductName: "이어폰"},
	})

	require.NoError(t, err)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, "ORD20250815001", out.Orders[0].OrderID)
}

func TestOrderAgentUnfilteredQueryReturnsRecentThree(t *testing.T) {
	f := newFixtures(t)
	a := NewOrderAgent(f.history, testToday, nil)

	out, err := a.Handle(context.Background(), "최근 주문 내역 보여줘", &Context{})

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Len(t, out.Orders, 3)
}

func TestOrderAgentMissReportsFailure(t *testing.T) {
	f := newFixtures(t)
	a := NewOrderAgent(f.history, testToday, nil)

	out, err := a.Handle(context.Background(), "주문 확인", &Context{
		Params: map[string]any{"order_id": "ORD99999999999"},
	})

	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Response, "찾을 수 없습니다")
}

func newRefundAgent(t *testing.T, provider *mocks.MockProvider) *RefundAgent {
	t.Helper()
	f := newFixtures(t)
	gateway := llm.NewGateway(provider, nil)
	return NewRefundAgent(gateway, f.history, f.policy, f.validator, f.calculator, nil)
}

func TestRefundAgentParsesVerdict(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("```json\n" +
		`{"refund_possible": true, "refund_fee": 8900, "total_refund_amount": 74100,
		  "reason": "배송완료 후 3일 경과, 7일 이내", "policy_applied": ["7일 이내 환불 가능"]}` +
		"\n```")
	a := newRefundAgent(t, provider)

	out, err := a.Handle(context.Background(), "이어폰 환불하고 싶어요", &Context{
		Params: map[string]any{"order_id": "ORD20250815001"},
	})

	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotNil(t, out.Decision)
	require.NotNil(t, out.Decision.Possible)
	assert.True(t, *out.Decision.Possible)
	assert.Equal(t, 8900, out.Decision.Fee)
	assert.Contains(t, out.Response, "8,900")
	assert.Contains(t, out.Response, "74,100")

	// the fact sheet reaches the model
	req := provider.LastRequest()
	require.NotNil(t, req)
	prompt := req.Messages[len(req.Messages)-1].Content
	assert.Contains(t, prompt, "ORD20250815001")
	assert.Contains(t, prompt, "경과일: 3일")
}

func TestRefundAgentPassesThroughUnparsableReply(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("환불 여부는 상담원 확인이 필요합니다.")
	a := newRefundAgent(t, provider)

	out, err := a.Handle(context.Background(), "환불 돼요?", &Context{
		Params: map[string]any{"order_id": "ORD20250815001"},
	})

	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotNil(t, out.Decision)
	assert.Nil(t, out.Decision.Possible)
	assert.Equal(t, "환불 여부는 상담원 확인이 필요합니다.", out.Response)
}

func TestRefundAgentWithoutOrderAsksForOne(t *testing.T) {
	provider := mocks.NewMockProvider()
	a := newRefundAgent(t, provider)

	out, err := a.Handle(context.Background(), "환불해줘", &Context{})

	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Response, "주문번호")
	assert.Zero(t, provider.GetCallCount())
}

func TestRefundAgentResolvesOrderFromPreviousStep(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(
		`{"refund_possible": false, "reason": "배송완료 후 10일 경과"}`)
	a := newRefundAgent(t, provider)

	out, err := a.Handle(context.Background(), "그거 환불해줘", &Context{
		Previous: map[string]types.AgentOutput{
			"order_agent": {
				Agent:   types.AgentOrder,
				Success: true,
				Orders: []types.Order{{
					OrderID: "ORD20250809005", ProductName: "블루투스 스피커",
					Price: 45000, DeliveryStatus: "배송완료", DeliveryDate: "2025-08-12",
				}},
			},
		},
	})

	require.NoError(t, err)
	assert.True(t, out.Success)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, "ORD20250809005", out.Orders[0].OrderID)
	assert.Contains(t, out.Response, "환불이 어렵습니다")
}

func TestGeneralAgentFallsBackOnGatewayError(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("down"))
	gateway := llm.NewGateway(provider, nil,
		llm.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
	a := NewGeneralAgent(gateway, nil, nil)

	out, err := a.Handle(context.Background(), "안녕", &Context{})

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, out.Response, "고객센터")
}

func TestGeneralAgentGroundsPromptInCatalog(t *testing.T) {
	f := newFixtures(t)
	provider := mocks.NewMockProvider().WithResponse("노트북은 1,250,000원입니다.")
	gateway := llm.NewGateway(provider, nil)
	a := NewGeneralAgent(gateway, f.catalog, nil)

	out, err := a.Handle(context.Background(), "노트북 얼마야?", &Context{
		Params: map[string]any{"product_name": "노트북"},
	})

	require.NoError(t, err)
	assert.True(t, out.Success)
	prompt := provider.LastRequest().Messages[1].Content
	assert.Contains(t, prompt, "PRD003")
}

func TestRefundProcessorAgentIssuesRefund(t *testing.T) {
	f := newFixtures(t)
	now := func() time.Time { return time.Date(2025, 8, 22, 14, 30, 0, 0, time.UTC) }
	proc := tools.NewProcessor(f.validator, f.calculator, now, nil)
	a := NewRefundProcessorAgent(proc, nil)

	out, err := a.Handle(context.Background(), "네 진행해주세요", &Context{
		Params: map[string]any{"order_id": "ORD20250815001", "reason": "단순 변심"},
	})

	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotNil(t, out.Refund)
	assert.Equal(t, "REF20250822143000001", out.Refund.RefundID)
	assert.Contains(t, out.Response, out.Refund.RefundID)
	assert.Contains(t, out.Response, "74,100")
}

func TestRefundProcessorAgentRejectsIneligible(t *testing.T) {
	f := newFixtures(t)
	proc := tools.NewProcessor(f.validator, f.calculator, nil, nil)
	a := NewRefundProcessorAgent(proc, nil)

	out, err := a.Handle(context.Background(), "네", &Context{
		Params: map[string]any{"order_id": "ORD20250809005"},
	})

	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Response, "환불이 불가능합니다")
}
