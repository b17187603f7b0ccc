package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/types"
)

const confirmationSystemPrompt = `사용자가 직전의 예/아니오 질문에 어떻게 답했는지 판정하세요.
"yes", "no", "unknown" 중 한 단어로만 답하세요.
- yes: 동의, 진행 요청
- no: 거절, 취소
- unknown: 둘 다 아니거나 다른 주제`

var confirmPositives = []string{
	"네", "예", "응", "어", "그래", "맞아", "좋아", "확인", "진행", "해줘", "해주세요",
	"yes", "ok", "okay", "sure",
}

var confirmNegatives = []string{
	"아니", "아뇨", "안 할", "안할", "취소", "그만", "싫어", "됐어", "안돼",
	"no", "nope", "cancel",
}

// Confirmer interprets a reply to a pending confirmation question. The model
// is asked first; if it is unavailable or answers off-script, a keyword scan
// decides.
type Confirmer struct {
	gateway *llm.Gateway
	logger  *zap.Logger
}

// NewConfirmer creates a Confirmer on gateway.
func NewConfirmer(gateway *llm.Gateway, logger *zap.Logger) *Confirmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{
		gateway: gateway,
		logger:  logger.With(zap.String("component", "confirmer")),
	}
}

// Interpret classifies the reply against the question the user was asked.
func (c *Confirmer) Interpret(ctx context.Context, utterance, pendingQuestion string) types.Confirmation {
	prompt := fmt.Sprintf("질문: %s\n사용자 답변: %s", pendingQuestion, utterance)
	reply, err := c.gateway.Generate(ctx, []llm.Message{
		llm.SystemMessage(confirmationSystemPrompt),
		llm.UserMessage(prompt),
	}, llm.WithTemperature(0.0), llm.WithMaxTokens(8))
	if err != nil {
		c.logger.Warn("confirmation model unavailable, using keywords", zap.Error(err))
		return KeywordConfirmation(utterance)
	}

	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "yes":
		return types.ConfirmationYes
	case "no":
		return types.ConfirmationNo
	case "unknown":
		return types.ConfirmationUnknown
	default:
		return KeywordConfirmation(utterance)
	}
}

// KeywordConfirmation is the deterministic fallback: negatives are checked
// first since "아니, 진행하지 마" contains an affirmative keyword too.
func KeywordConfirmation(utterance string) types.Confirmation {
	lowered := strings.ToLower(strings.TrimSpace(utterance))
	for _, neg := range confirmNegatives {
		if strings.Contains(lowered, neg) {
			return types.ConfirmationNo
		}
	}
	for _, pos := range confirmPositives {
		if strings.Contains(lowered, pos) {
			return types.ConfirmationYes
		}
	}
	return types.ConfirmationUnknown
}
