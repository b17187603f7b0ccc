package mallchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/config"
	"github.com/BaSui01/mallchat/testutil/mocks"
	"github.com/BaSui01/mallchat/types"
)

func newTestBot(t *testing.T, provider *mocks.MockProvider) *Bot {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LLM.MaxRetries = 1
	bot, err := New(context.Background(), cfg,
		WithProvider(provider), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return bot
}

func TestBotEndToEnd(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses(
		`{"intent": "order_status", "confidence": 0.9, "entities": {"order_id": "ORD20250820002"}}`,
		`{"plan_type": "single_agent", "steps": [
		   {"step_id": 1, "agent": "order_agent", "purpose": "주문 조회",
		    "parameters": {"order_id": "ORD20250820002"}, "depends_on": []}]}`)
	bot := newTestBot(t, provider)
	defer bot.Close()

	reply := bot.ProcessMessage(context.Background(), "ORD20250820002 어디쯤 왔어?", "")

	require.NotNil(t, reply)
	assert.Equal(t, types.IntentOrderStatus, reply.Intent)
	assert.Contains(t, reply.Response, "노트북")

	history, err := bot.SessionHistory(context.Background(), reply.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, bot.ClearSession(context.Background(), reply.SessionID))
	_, err = bot.SessionHistory(context.Background(), reply.SessionID)
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestBotCleanupOldSessions(t *testing.T) {
	bot := newTestBot(t, mocks.NewMockProvider().WithError(assert.AnError))
	defer bot.Close()

	reply := bot.ProcessMessage(context.Background(), "안녕", "")
	require.NotNil(t, reply)

	removed, err := bot.CleanupOldSessions(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestBotRejectsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "acme"
	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	assert.Error(t, err)
}
