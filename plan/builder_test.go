package plan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/llm/retry"
	"github.com/BaSui01/mallchat/testutil/mocks"
	"github.com/BaSui01/mallchat/types"
)

func newBuilder(provider *mocks.MockProvider) *Builder {
	gateway := llm.NewGateway(provider, nil, llm.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
	return NewBuilder(gateway, nil)
}

func TestBuildNormalizesModelPlan(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("```json\n" + `{
		"plan_type": "multi_step",
		"reason": "주문 조회 후 환불 판단",
		"steps": [
			{"step_id": 1, "agent": "order_agent", "purpose": "주문 조회",
			 "parameters": {"order_id": "ORD20250815001"}},
			{"step_id": 2, "agent": "refund_agent", "purpose": "환불 판단",
			 "parameters": {}, "depends_on": ["1"]}
		],
		"expected_outcome": "환불 가능 여부 안내"
	}` + "\n```")

	p := newBuilder(provider).Build(context.Background(), "이어폰 환불 돼?", types.Classification{
		Intent: types.IntentRefundInquiry, Confidence: 0.9, Entities: types.Entities{},
	}, BuildContext{})

	require.Len(t, p.Steps, 2)
	assert.Equal(t, TypeMultiStep, p.Type)
	assert.Equal(t, "1", p.Steps[0].ID) // numeric ids normalize to strings
	assert.Equal(t, types.AgentOrder, p.Steps[0].Agent)
	assert.Equal(t, []string{"1"}, p.Steps[1].DependsOn)
	assert.Equal(t, StatusPending, p.Steps[1].Status)
	assert.NotNil(t, p.Steps[1].Params)
}

func TestBuildFallsBackOnUnknownAgent(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(
		`{"plan_type": "single_agent", "steps": [{"step_id": "1", "agent": "shipping_agent", "purpose": "x"}]}`)

	p := newBuilder(provider).Build(context.Background(), "환불해줘", types.Classification{
		Intent: types.IntentRefundInquiry, Entities: types.Entities{},
	}, BuildContext{})

	require.Len(t, p.Steps, 2)
	assert.Equal(t, types.AgentOrder, p.Steps[0].Agent)
	assert.Equal(t, types.AgentRefund, p.Steps[1].Agent)
}

func TestBuildFallsBackOnProviderError(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("down"))

	p := newBuilder(provider).Build(context.Background(), "배송 어디야?", types.Classification{
		Intent:   types.IntentOrderStatus,
		Entities: types.Entities{types.EntityOrderID: "ORD20250820002"},
	}, BuildContext{})

	require.Len(t, p.Steps, 1)
	assert.Equal(t, types.AgentOrder, p.Steps[0].Agent)
	assert.Equal(t, "ORD20250820002", p.Steps[0].Params["order_id"])
}

func TestFanOutPlansOneStepPerCandidate(t *testing.T) {
	provider := mocks.NewMockProvider() // must not be consulted
	var candidates []types.Order
	for i := 0; i < 7; i++ {
		candidates = append(candidates, types.Order{
			OrderID:     fmt.Sprintf("ORD%03d", i),
			ProductName: fmt.Sprintf("상품%d", i),
		})
	}

	p := newBuilder(provider).Build(context.Background(), "전부 다", types.Classification{
		Intent:   types.IntentClarification,
		Entities: types.Entities{types.EntityRefundReference: true},
	}, BuildContext{Candidates: candidates})

	require.Len(t, p.Steps, fanOutLimit)
	assert.Equal(t, TypeMultiStep, p.Type)
	for i, step := range p.Steps {
		assert.Equal(t, types.AgentRefund, step.Agent)
		assert.Equal(t, candidates[i].OrderID, step.Params["order_id"])
		assert.Empty(t, step.DependsOn)
	}
	assert.Zero(t, provider.GetCallCount())
}

func TestFanOutNarrowsByOrdinalSelection(t *testing.T) {
	provider := mocks.NewMockProvider() // must not be consulted
	candidates := []types.Order{
		{OrderID: "ORD001", ProductName: "이어폰"},
		{OrderID: "ORD002", ProductName: "키보드"},
		{OrderID: "ORD003", ProductName: "마우스"},
	}

	p := newBuilder(provider).Build(context.Background(), "두 번째 거", types.Classification{
		Intent: types.IntentClarification,
		Entities: types.Entities{
			types.EntityRefundReference: true,
			types.EntitySelectionType:   types.SelectionSecond,
		},
	}, BuildContext{Candidates: candidates})

	require.Len(t, p.Steps, 1)
	assert.Equal(t, TypeSingleAgent, p.Type)
	assert.Equal(t, types.AgentRefund, p.Steps[0].Agent)
	assert.Equal(t, "ORD002", p.Steps[0].Params["order_id"])
	assert.Zero(t, provider.GetCallCount())
}

func TestFanOutNarrowsBySpecificSelection(t *testing.T) {
	provider := mocks.NewMockProvider()
	candidates := []types.Order{
		{OrderID: "ORD001", ProductName: "이어폰"},
		{OrderID: "ORD002", ProductName: "키보드"},
		{OrderID: "ORD003", ProductName: "마우스"},
	}

	p := newBuilder(provider).Build(context.Background(), "키보드 거요", types.Classification{
		Intent: types.IntentClarification,
		Entities: types.Entities{
			types.EntityRefundReference: true,
			types.EntitySelectionType:   types.SelectionSpecific,
			types.EntityProductName:     "키보드",
		},
	}, BuildContext{Candidates: candidates})

	require.Len(t, p.Steps, 1)
	assert.Equal(t, "ORD002", p.Steps[0].Params["order_id"])
	assert.Zero(t, provider.GetCallCount())
}

func TestFanOutKeepsAllOnOtherSelection(t *testing.T) {
	provider := mocks.NewMockProvider()
	candidates := []types.Order{
		{OrderID: "ORD001", ProductName: "이어폰"},
		{OrderID: "ORD002", ProductName: "키보드"},
	}

	p := newBuilder(provider).Build(context.Background(), "전부 다", types.Classification{
		Intent: types.IntentClarification,
		Entities: types.Entities{
			types.EntityRefundReference: true,
			types.EntitySelectionType:   types.SelectionOther,
		},
	}, BuildContext{Candidates: candidates})

	require.Len(t, p.Steps, 2)
	assert.Equal(t, TypeMultiStep, p.Type)
}

func TestFanOutIgnoresOutOfRangeOrdinal(t *testing.T) {
	provider := mocks.NewMockProvider()
	candidates := []types.Order{
		{OrderID: "ORD001", ProductName: "이어폰"},
		{OrderID: "ORD002", ProductName: "키보드"},
	}

	p := newBuilder(provider).Build(context.Background(), "세 번째 거", types.Classification{
		Intent: types.IntentClarification,
		Entities: types.Entities{
			types.EntityRefundReference: true,
			types.EntitySelectionType:   types.SelectionThird,
		},
	}, BuildContext{Candidates: candidates})

	require.Len(t, p.Steps, 2)
}

func TestFanOutNeedsMultipleCandidates(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("down"))

	p := newBuilder(provider).Build(context.Background(), "그거 환불해줘", types.Classification{
		Intent:   types.IntentClarification,
		Entities: types.Entities{types.EntityRefundReference: true},
	}, BuildContext{Candidates: []types.Order{{OrderID: "ORD001"}}})

	// single candidate: back to the normal path, which here degrades to the
	// general fallback
	require.Len(t, p.Steps, 1)
	assert.Equal(t, types.AgentGeneral, p.Steps[0].Agent)
}

func TestFallbackShapes(t *testing.T) {
	refund := Fallback(types.IntentRefundInquiry, types.Entities{types.EntityProductName: "노트북"})
	require.Len(t, refund.Steps, 2)
	assert.Equal(t, "노트북", refund.Steps[0].Params["product_name"])
	assert.Equal(t, []string{"1"}, refund.Steps[1].DependsOn)

	product := Fallback(types.IntentProductInquiry, types.Entities{types.EntityProductName: "노트북"})
	require.Len(t, product.Steps, 1)
	assert.Equal(t, types.AgentGeneral, product.Steps[0].Agent)

	chat := Fallback(types.IntentGeneralChat, nil)
	require.Len(t, chat.Steps, 1)
	assert.Equal(t, types.AgentGeneral, chat.Steps[0].Agent)
	assert.NotNil(t, chat.Steps[0].Params)
}
