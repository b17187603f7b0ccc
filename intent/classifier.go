// Package intent classifies user utterances and interprets confirmation
// replies.
package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/structured"
	"github.com/BaSui01/mallchat/types"
)

// historyWindow is how many recent turns the classifier sees.
const historyWindow = 3

const classifierSystemPrompt = `당신은 쇼핑몰 고객센터의 의도 분류기입니다. 사용자 발화를 아래 의도 중 하나로 분류하세요.

의도:
- refund_inquiry: 환불, 반품, 교환 관련 문의
- order_status: 주문 내역, 배송 상태 확인
- product_inquiry: 상품 정보, 가격, 재고 문의
- clarification: 직전 봇 질문에 대한 선택/보충 답변
- general_chat: 인사, 잡담, 그 외 모든 것

규칙:
- 한 발화에 주문 조회와 환불 표현이 함께 있으면 refund_inquiry를 우선하세요.
- entities에는 발화에서 실제로 확인된 값만 넣으세요.
- 직전 대화에서 환불을 논의하던 중의 짧은 답변("전부 다", "첫 번째 거")은
  clarification으로 분류하고 refund_reference를 true로 표시하세요.
- clarification이 선택지 답변이면 selection_type을 표시하세요:
  첫/두/세 번째는 first/second/third, 전부·나머지는 other,
  특정 주문번호나 상품명을 집으면 specific.`

const classifierSchemaHint = `반드시 아래 형식의 JSON으로만 응답하세요:
{
  "intent": "refund_inquiry" | "order_status" | "product_inquiry" | "clarification" | "general_chat",
  "confidence": <0.0~1.0>,
  "entities": {
    "order_id": "<주문번호>",
    "product_name": "<상품명>",
    "time_reference": "<시간 표현>",
    "quantity": <수량>,
    "refund_reason": "<환불 사유>",
    "refund_reference": <이전 환불 논의 참조 여부>,
    "selection_type": "first" | "second" | "third" | "other" | "specific"
  }
}
확인되지 않은 entity는 생략하세요.`

type rawClassification struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
}

// Classifier assigns an intent and extracts entities from one utterance.
// It never fails: any model or parse problem yields the documented default
// verdict (general_chat, 0.5, no entities).
type Classifier struct {
	output *structured.Output[rawClassification]
	logger *zap.Logger
}

// NewClassifier creates a Classifier on gateway.
func NewClassifier(gateway *llm.Gateway, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "intent_classifier"))
	return &Classifier{
		output: structured.New[rawClassification](gateway, classifierSchemaHint, logger),
		logger: logger,
	}
}

// Classify runs the classifier over the utterance with a short history
// window for context.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []types.Turn) types.Classification {
	messages := []llm.Message{
		llm.SystemMessage(classifierSystemPrompt),
		llm.UserMessage(c.buildPrompt(utterance, history)),
	}

	raw, _, err := c.output.Generate(ctx, messages, llm.WithTemperature(0.0))
	if err != nil {
		c.logger.Warn("classification failed, using default", zap.Error(err))
		return types.DefaultClassification()
	}

	verdict := types.Classification{
		Intent:     types.ParseIntent(raw.Intent),
		Confidence: clamp(raw.Confidence),
		Entities:   cleanEntities(raw.Entities),
	}

	c.logger.Debug("classified",
		zap.String("intent", string(verdict.Intent)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Int("entities", len(verdict.Entities)))
	return verdict
}

func (c *Classifier) buildPrompt(utterance string, history []types.Turn) string {
	var b strings.Builder
	b.WriteString("## 최근 대화\n")
	recent := history
	if len(recent) > historyWindow*2 {
		recent = recent[len(recent)-historyWindow*2:]
	}
	if len(recent) == 0 {
		b.WriteString("(첫 대화)\n")
	}
	for _, turn := range recent {
		speaker := "사용자"
		if turn.Role == types.RoleAssistant {
			speaker = "봇"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
	}
	fmt.Fprintf(&b, "\n## 분류할 발화\n%s", utterance)
	return b.String()
}

// cleanEntities drops slots the model sent empty.
func cleanEntities(raw map[string]any) types.Entities {
	out := types.Entities{}
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
