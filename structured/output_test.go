package structured

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/testutil/mocks"
	"github.com/BaSui01/mallchat/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"intent":"refund_inquiry"}`, `{"intent":"refund_inquiry"}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! Here you go: {"a":1} hope that helps`, `{"a":1}`},
		{"nested braces", `result: {"a":{"b":2},"c":3}`, `{"a":{"b":2},"c":3}`},
		{"brace in string", `{"msg":"use } carefully"}`, `{"msg":"use } carefully"}`},
		{"array", `items: [1,2,3]`, `[1,2,3]`},
		{"no json", "I cannot answer that.", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

type verdict struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func TestOutputGenerateParsesTypedValue(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithResponse("```json\n{\"intent\":\"order_status\",\"confidence\":0.92}\n```")
	g := llm.NewGateway(provider, nil)

	out := New[verdict](g, `respond with JSON: {"intent": string, "confidence": number}`, nil)
	v, raw, err := out.Generate(context.Background(), []llm.Message{llm.UserMessage("주문 확인")})

	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "order_status", v.Intent)
	assert.Equal(t, 0.92, v.Confidence)
	assert.NotEmpty(t, raw)

	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
}

func TestOutputGenerateReturnsRawOnParseFailure(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("죄송하지만 JSON으로 답할 수 없어요.")
	g := llm.NewGateway(provider, nil)

	out := New[verdict](g, "respond with JSON", nil)
	v, raw, err := out.Generate(context.Background(), []llm.Message{llm.UserMessage("hi")})

	require.Error(t, err)
	assert.Nil(t, v)
	assert.Equal(t, "죄송하지만 JSON으로 답할 수 없어요.", raw)
	assert.Equal(t, types.ErrParseFailure, types.GetErrorCode(err))
}
