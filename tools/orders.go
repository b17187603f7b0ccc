package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/types"
)

// Delivery status values as they appear in the purchase history.
const (
	StatusOrdered   = "주문접수"
	StatusPaid      = "결제완료"
	StatusPreparing = "상품준비중"
	StatusInTransit = "배송중"
	StatusDelivered = "배송완료"
)

// PreShipment reports whether the status precedes shipping, where
// cancellation is immediate and free.
func PreShipment(status string) bool {
	return status == StatusOrdered || status == StatusPaid || status == StatusPreparing
}

// OrderFilter narrows an order-history query. Zero fields match everything.
type OrderFilter struct {
	OrderID        string
	ProductName    string // substring, case-insensitive
	DeliveryStatus string
	StartDate      string // purchase date >=, "YYYY-MM-DD"
	EndDate        string // purchase date <=
	Limit          int    // 0 = unlimited
}

// OrderQueryResult is the envelope a history query returns.
type OrderQueryResult struct {
	Success bool          `json:"success"`
	Orders  []types.Order `json:"orders"`
	Count   int           `json:"count"`
	Message string        `json:"message,omitempty"`
}

// OrderHistory serves purchase-history lookups over the embedded fixture.
type OrderHistory struct {
	orders []types.Order
	logger *zap.Logger
}

// NewOrderHistory loads the embedded purchase history.
func NewOrderHistory(logger *zap.Logger) (*OrderHistory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := dataFS.ReadFile("data/purchase_history.json")
	if err != nil {
		return nil, fmt.Errorf("read purchase history: %w", err)
	}
	var orders []types.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("parse purchase history: %w", err)
	}
	return &OrderHistory{
		orders: orders,
		logger: logger.With(zap.String("component", "order_history")),
	}, nil
}

// Query applies the filter. An OrderID filter is a direct lookup: it either
// returns exactly that order or reports a miss, ignoring the other fields.
func (h *OrderHistory) Query(f OrderFilter) OrderQueryResult {
	if f.OrderID != "" {
		if order, ok := h.ByID(f.OrderID); ok {
			return OrderQueryResult{Success: true, Orders: []types.Order{order}, Count: 1}
		}
		return OrderQueryResult{
			Success: false,
			Orders:  []types.Order{},
			Message: fmt.Sprintf("주문번호 %s를 찾을 수 없습니다.", f.OrderID),
		}
	}

	var results []types.Order
	for _, order := range h.orders {
		if f.ProductName != "" &&
			!strings.Contains(strings.ToLower(order.ProductName), strings.ToLower(f.ProductName)) {
			continue
		}
		if f.DeliveryStatus != "" && order.DeliveryStatus != f.DeliveryStatus {
			continue
		}
		if f.StartDate != "" && order.PurchaseDate < f.StartDate {
			continue
		}
		if f.EndDate != "" && order.PurchaseDate > f.EndDate {
			continue
		}
		results = append(results, order)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PurchaseDate > results[j].PurchaseDate
	})
	if f.Limit > 0 && len(results) > f.Limit {
		results = results[:f.Limit]
	}
	if results == nil {
		results = []types.Order{}
	}
	return OrderQueryResult{Success: true, Orders: results, Count: len(results)}
}

// ByID returns the order with the given id.
func (h *OrderHistory) ByID(orderID string) (types.Order, bool) {
	for _, order := range h.orders {
		if order.OrderID == orderID {
			return order, true
		}
	}
	return types.Order{}, false
}

// LatestByProduct returns the most recent order matching the exact product
// name.
func (h *OrderHistory) LatestByProduct(productName string) (types.Order, bool) {
	var matches []types.Order
	for _, order := range h.orders {
		if order.ProductName == productName {
			matches = append(matches, order)
		}
	}
	if len(matches) == 0 {
		return types.Order{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].PurchaseDate > matches[j].PurchaseDate
	})
	return matches[0], true
}

// DaysSinceDelivery computes how many days ago the order completed delivery.
// Orders that are not delivered, or carry no delivery date, report false.
func (h *OrderHistory) DaysSinceDelivery(orderID string, today time.Time) (int, bool) {
	order, ok := h.ByID(orderID)
	if !ok || order.DeliveryStatus != StatusDelivered || order.DeliveryDate == "" {
		return 0, false
	}
	delivered, err := time.Parse(DateLayout, order.DeliveryDate)
	if err != nil {
		return 0, false
	}
	return int(today.Sub(delivered).Hours() / 24), true
}
