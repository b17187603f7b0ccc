package types

// Order is a purchase-history record. Dates are "YYYY-MM-DD" strings as the
// catalog data ships them; prices are KRW.
type Order struct {
	OrderID           string `json:"order_id"`
	ProductName       string `json:"product_name"`
	Category          string `json:"category"`
	Price             int    `json:"price"`
	Quantity          int    `json:"quantity,omitempty"`
	PurchaseDate      string `json:"purchase_date"`
	DeliveryStatus    string `json:"delivery_status"`
	DeliveryDate      string `json:"delivery_date,omitempty"`
	DaysSinceDelivery *int   `json:"days_since_delivery,omitempty"`
}

// Delivered reports whether the order has completed delivery.
func (o Order) Delivered() bool { return o.DeliveryStatus == "배송완료" }

// Product is a catalog entry, independent of any purchase.
type Product struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	Price       int    `json:"price"`
	Stock       int    `json:"stock"`
	Description string `json:"description,omitempty"`
}
