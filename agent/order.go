package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/tools"
	"github.com/BaSui01/mallchat/types"
)

// defaultOrderLimit caps an unfiltered "show my orders" lookup.
const defaultOrderLimit = 3

// OrderAgent answers order-status questions directly from the purchase
// history. It is fully deterministic; order data never goes through the
// model. Refund questions are out of its lane and left to the refund agent.
type OrderAgent struct {
	history *tools.OrderHistory
	today   time.Time
	logger  *zap.Logger
}

// NewOrderAgent creates an order agent over history. today anchors the
// elapsed-days derivation for delivered orders.
func NewOrderAgent(history *tools.OrderHistory, today time.Time, logger *zap.Logger) *OrderAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderAgent{
		history: history,
		today:   today,
		logger:  logger.With(zap.String("component", "order_agent")),
	}
}

// Kind implements Agent.
func (a *OrderAgent) Kind() types.AgentKind { return types.AgentOrder }

// Handle resolves the lookup filter from step parameters first, then from
// accumulated entities, and renders the matching orders.
func (a *OrderAgent) Handle(ctx context.Context, utterance string, ac *Context) (types.AgentOutput, error) {
	if err := ctx.Err(); err != nil {
		return types.AgentOutput{}, err
	}

	filter := a.buildFilter(ac)
	result := a.history.Query(filter)
	a.augmentDays(result.Orders)

	out := types.AgentOutput{
		Agent:   types.AgentOrder,
		Success: result.Success && result.Count > 0,
		Orders:  result.Orders,
	}

	switch {
	case !result.Success:
		out.Response = result.Message
		out.Error = result.Message
	case result.Count == 0:
		out.Response = "조건에 맞는 주문 내역을 찾지 못했습니다. 주문번호나 상품명을 알려주시겠어요?"
	default:
		out.Response = renderOrders(result.Orders)
	}

	a.logger.Debug("order lookup",
		zap.String("order_id", filter.OrderID),
		zap.String("product_name", filter.ProductName),
		zap.Int("count", result.Count))

	return out, nil
}

// augmentDays derives days_since_delivery for every delivered order.
func (a *OrderAgent) augmentDays(orders []types.Order) {
	for i := range orders {
		if days, ok := a.history.DaysSinceDelivery(orders[i].OrderID, a.today); ok {
			d := days
			orders[i].DaysSinceDelivery = &d
		}
	}
}

func (a *OrderAgent) buildFilter(ac *Context) tools.OrderFilter {
	filter := tools.OrderFilter{
		OrderID:        ac.ParamString("order_id"),
		ProductName:    ac.ParamString("product_name"),
		DeliveryStatus: ac.ParamString("delivery_status"),
		StartDate:      ac.ParamString("start_date"),
		EndDate:        ac.ParamString("end_date"),
	}
	if filter.OrderID == "" && ac.Entities != nil {
		filter.OrderID = ac.Entities.OrderID()
	}
	if filter.ProductName == "" && ac.Entities != nil {
		filter.ProductName = ac.Entities.ProductName()
	}

	if n, ok := ac.Params["limit"].(float64); ok && n > 0 {
		filter.Limit = int(n)
	} else if q := ac.Entities.Quantity(); q > 0 {
		filter.Limit = q
	}

	unfiltered := filter.OrderID == "" && filter.ProductName == "" &&
		filter.DeliveryStatus == "" && filter.StartDate == "" && filter.EndDate == ""
	if unfiltered && filter.Limit == 0 {
		filter.Limit = defaultOrderLimit
	}
	return filter
}

func renderOrders(orders []types.Order) string {
	if len(orders) == 1 {
		o := orders[0]
		return fmt.Sprintf("주문번호 %s (%s) 상품은 현재 '%s' 상태입니다. 주문일은 %s이고 금액은 %s원입니다.%s",
			o.OrderID, o.ProductName, o.DeliveryStatus, o.PurchaseDate,
			types.FormatKRW(o.Price), deliveredSuffix(o))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "주문 내역 %d건을 찾았습니다.\n", len(orders))
	for i, o := range orders {
		fmt.Fprintf(&b, "%d. %s — %s, %s원, %s 주문", i+1, o.ProductName, o.DeliveryStatus,
			types.FormatKRW(o.Price), o.PurchaseDate)
		if o.DeliveryStatus == tools.StatusDelivered && o.DeliveryDate != "" {
			fmt.Fprintf(&b, " (%s 배송완료%s)", o.DeliveryDate, elapsedSuffix(o))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func deliveredSuffix(o types.Order) string {
	if o.DeliveryStatus == tools.StatusDelivered && o.DeliveryDate != "" {
		return fmt.Sprintf(" %s에 배송이 완료되었습니다.%s", o.DeliveryDate, elapsedSentence(o))
	}
	return ""
}

func elapsedSuffix(o types.Order) string {
	if o.DaysSinceDelivery == nil {
		return ""
	}
	return fmt.Sprintf(", %d일 경과", *o.DaysSinceDelivery)
}

func elapsedSentence(o types.Order) string {
	if o.DaysSinceDelivery == nil {
		return ""
	}
	return fmt.Sprintf(" 배송 완료 후 %d일이 지났습니다.", *o.DaysSinceDelivery)
}
