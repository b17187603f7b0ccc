package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/llm"
	"github.com/BaSui01/mallchat/tools"
	"github.com/BaSui01/mallchat/types"
)

const generalSystemPrompt = `당신은 쇼핑몰의 친절한 고객 상담원입니다.
제공된 정보 안에서만 답하고, 모르는 내용은 모른다고 하세요.
주문이나 환불 처리가 필요해 보이면 주문번호를 물어보며 안내하세요.`

const generalFallback = "안녕하세요! 쇼핑몰 고객센터입니다. 주문 조회, 환불 문의, 상품 문의를 도와드릴 수 있어요. 무엇을 도와드릴까요?"

// GeneralAgent handles everything without a dedicated agent: small talk,
// product questions against the catalog, and synthesizing earlier step
// results into one reply. On model failure it degrades to a canned greeting
// rather than surfacing an error.
type GeneralAgent struct {
	gateway *llm.Gateway
	catalog *tools.Catalog // optional
	logger  *zap.Logger
}

// NewGeneralAgent creates a general agent. catalog may be nil.
func NewGeneralAgent(gateway *llm.Gateway, catalog *tools.Catalog, logger *zap.Logger) *GeneralAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneralAgent{
		gateway: gateway,
		catalog: catalog,
		logger:  logger.With(zap.String("component", "general_agent")),
	}
}

// Kind implements Agent.
func (a *GeneralAgent) Kind() types.AgentKind { return types.AgentGeneral }

// Handle builds a grounded prompt and lets the model answer freely.
func (a *GeneralAgent) Handle(ctx context.Context, utterance string, ac *Context) (types.AgentOutput, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "## 대화 맥락\n%s\n\n", ac.RenderRecent())

	if products := a.lookupProducts(ac); len(products) > 0 {
		doc, _ := json.Marshal(products)
		fmt.Fprintf(&b, "## 상품 정보\n%s\n\n", doc)
	}
	if summary := a.renderPrevious(ac); summary != "" {
		fmt.Fprintf(&b, "## 이전 단계 결과\n%s\n", summary)
	}
	fmt.Fprintf(&b, "## 현재 사용자 요청\n%s", utterance)

	reply, err := a.gateway.Generate(ctx, []llm.Message{
		llm.SystemMessage(generalSystemPrompt),
		llm.UserMessage(b.String()),
	})
	if err != nil {
		a.logger.Warn("falling back to canned reply", zap.Error(err))
		return types.AgentOutput{
			Agent:    types.AgentGeneral,
			Success:  true,
			Response: generalFallback,
		}, nil
	}

	return types.AgentOutput{
		Agent:    types.AgentGeneral,
		Success:  true,
		Response: reply,
	}, nil
}

func (a *GeneralAgent) lookupProducts(ac *Context) []types.Product {
	if a.catalog == nil {
		return nil
	}
	filter := tools.CatalogFilter{
		ProductName: ac.ParamString("product_name"),
		Category:    ac.ParamString("category"),
	}
	if filter.ProductName == "" && ac.Entities != nil {
		filter.ProductName = ac.Entities.ProductName()
	}
	if filter.ProductName == "" && filter.Category == "" {
		return nil
	}
	return a.catalog.Search(filter)
}

func (a *GeneralAgent) renderPrevious(ac *Context) string {
	if len(ac.Previous) == 0 {
		return ""
	}
	var b strings.Builder
	for key, out := range ac.Previous {
		if out.Response == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", key, out.Response)
	}
	return b.String()
}
