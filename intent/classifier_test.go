package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/llm/retry"
	"github.com/BaSui01/mallchat/testutil/mocks"
	"github.com/BaSui01/mallchat/types"
)

func newGateway(provider *mocks.MockProvider) *llm.Gateway {
	return llm.NewGateway(provider, nil, llm.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
}

func newClassifier(provider *mocks.MockProvider) *Classifier {
	return NewClassifier(newGateway(provider), nil)
}

func TestClassifyParsesVerdict(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("```json\n" + `{
		"intent": "refund_inquiry",
		"confidence": 0.93,
		"entities": {"product_name": "무선 이어폰", "refund_reason": "단순 변심", "time_reference": ""}
	}` + "\n```")

	got := newClassifier(provider).Classify(context.Background(), "이어폰 환불하고 싶어요", nil)

	assert.Equal(t, types.IntentRefundInquiry, got.Intent)
	assert.Equal(t, 0.93, got.Confidence)
	assert.Equal(t, "무선 이어폰", got.Entities.ProductName())
	// empty slots are dropped
	_, has := got.Entities[types.EntityTimeReference]
	assert.False(t, has)
}

func TestClassifyDefaultsOnProviderError(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("down"))

	got := newClassifier(provider).Classify(context.Background(), "환불해줘", nil)

	assert.Equal(t, types.DefaultClassification(), got)
}

func TestClassifyDefaultsOnGarbageReply(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("잘 모르겠어요")

	got := newClassifier(provider).Classify(context.Background(), "환불해줘", nil)

	assert.Equal(t, types.DefaultClassification(), got)
}

func TestClassifyDegradesUnknownLabel(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(
		`{"intent": "complaint", "confidence": 1.7, "entities": {}}`)

	got := newClassifier(provider).Classify(context.Background(), "뭐야 이거", nil)

	assert.Equal(t, types.IntentGeneralChat, got.Intent)
	assert.Equal(t, 1.0, got.Confidence) // clamped
}

func TestClassifierPromptPinsRefundPrecedence(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(`{"intent":"refund_inquiry","confidence":0.9,"entities":{}}`)
	c := newClassifier(provider)

	c.Classify(context.Background(), "ORD20250815001 주문 환불돼?", nil)

	req := provider.LastRequest()
	require.NotNil(t, req)
	var system string
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			system += m.Content
		}
	}
	assert.Contains(t, system, "refund_inquiry를 우선")
}

func TestClassifierPromptOffersSelectionType(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(
		`{"intent":"clarification","confidence":0.9,"entities":{"refund_reference":true,"selection_type":"second"}}`)
	c := newClassifier(provider)

	got := c.Classify(context.Background(), "두 번째 거요", nil)

	assert.Equal(t, "second", got.Entities.SelectionType())
	var prompts string
	for _, m := range provider.LastRequest().Messages {
		prompts += m.Content
	}
	assert.Contains(t, prompts, `"selection_type"`)
}

func TestClassifyIncludesRecentHistory(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(`{"intent":"clarification","confidence":0.8,"entities":{"refund_reference":true}}`)
	c := newClassifier(provider)

	history := []types.Turn{
		{Role: types.RoleUser, Content: "환불되는 주문 알려줘"},
		{Role: types.RoleAssistant, Content: "두 건이 있습니다. 어떤 주문을 환불할까요?"},
	}
	got := c.Classify(context.Background(), "전부 다", history)

	assert.Equal(t, types.IntentClarification, got.Intent)
	assert.True(t, got.Entities.RefundReference())
	prompt := provider.LastRequest().Messages[1].Content
	assert.Contains(t, prompt, "어떤 주문을 환불할까요?")
}

func TestKeywordConfirmation(t *testing.T) {
	tests := []struct {
		in   string
		want types.Confirmation
	}{
		{"네 진행해주세요", types.ConfirmationYes},
		{"좋아요", types.ConfirmationYes},
		{"yes", types.ConfirmationYes},
		{"아니요", types.ConfirmationNo},
		{"취소할게요", types.ConfirmationNo},
		{"아니, 진행하지 마", types.ConfirmationNo},
		{"배송은 언제 와요?", types.ConfirmationUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeywordConfirmation(tt.in), tt.in)
	}
}

func TestConfirmerFallsBackToKeywords(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("down"))
	c := NewConfirmer(newGateway(provider), nil)

	got := c.Interpret(context.Background(), "네", "환불을 진행할까요?")
	assert.Equal(t, types.ConfirmationYes, got)
}

func TestConfirmerUsesModelVerdict(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("no")
	c := NewConfirmer(llm.NewGateway(provider, nil), nil)

	got := c.Interpret(context.Background(), "음... 생각해보니 괜찮아요", "환불을 진행할까요?")
	assert.Equal(t, types.ConfirmationNo, got)
}
