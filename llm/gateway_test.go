package llm_test

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
	"github.com/BaSui01/mallchat/types"
)

func TestGatewayGenerateReturnsText(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("배송 중입니다.")
	g := llm.NewGateway(provider, nil)

	out, err := g.Generate(context.Background(), []llm.Message{
		llm.SystemMessage("you are a helpful assistant"),
		llm.UserMessage("내 주문 어디쯤이야?"),
	})

	require.NoError(t, err)
	assert.Equal(t, "배송 중입니다.", out)
	assert.Equal(t, 1, provider.GetCallCount())
}

func TestGatewayRetriesTransientFailures(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("connection reset"))
	g := llm.NewGateway(provider, nil,
		llm.WithRetryPolicy(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}))

	_, err := g.Generate(context.Background(), []llm.Message{llm.UserMessage("hi")})

	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
	assert.Equal(t, 3, provider.GetCallCount())
}

func TestGatewayCallOptionsOverrideDefaults(t *testing.T) {
	provider := mocks.NewMockProvider()
	g := llm.NewGateway(provider, nil,
		llm.WithDefaultModel("gpt-4o-mini"),
		llm.WithDefaults(0.3, 1024))

	_, err := g.Generate(context.Background(),
		[]llm.Message{llm.UserMessage("hi")},
		llm.WithModel("gpt-4o"),
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(256))
	require.NoError(t, err)

	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 0.0, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
}

type recordingObserver struct {
	statuses []string
}

func (r *recordingObserver) ObserveLLMRequest(provider, status string, d time.Duration) {
	r.statuses = append(r.statuses, status)
}

func TestGatewayReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	provider := mocks.NewMockProvider()
	g := llm.NewGateway(provider, nil, llm.WithObserver(obs))

	_, err := g.Generate(context.Background(), []llm.Message{llm.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, []string{"success"}, obs.statuses)
}
