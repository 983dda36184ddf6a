package models

import "time"

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeSwiggy   OrderType = "swiggy"
	OrderTypeZomato   OrderType = "zomato"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeSwiggy, OrderTypeZomato:
		return true
	}
	return false
}

func (t OrderType) IsDelivery() bool {
	return t == OrderTypeSwiggy || t == OrderTypeZomato
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCooking   OrderStatus = "cooking"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCancelled OrderStatus = "cancelled"
)

// ActiveOrderStatuses are the statuses shown on the kitchen and table screens.
var ActiveOrderStatuses = []OrderStatus{OrderPending, OrderCooking, OrderReady}

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OrderNumber string      `gorm:"size:30;uniqueIndex" json:"order_number"`
	OrderType   OrderType   `gorm:"size:20;not null;index" json:"order_type"`
	Status      OrderStatus `gorm:"size:20;not null;index" json:"status"`

	TableID *uint  `gorm:"index" json:"table_id"`
	Table   *Table `json:"table,omitempty"`

	CustomerName            string `gorm:"size:100" json:"customer_name"`
	CustomerPhone           string `gorm:"size:30" json:"customer_phone"`
	DeliveryPlatformOrderID string `gorm:"size:100" json:"delivery_platform_order_id"`
	Notes                   string `gorm:"type:text" json:"notes"`

	TotalAmount     float64       `gorm:"not null;default:0" json:"total_amount"`
	PaidAmount      float64       `gorm:"not null;default:0" json:"paid_amount"`
	PaymentStatus   PaymentStatus `gorm:"size:20;not null;default:unpaid;index" json:"payment_status"`
	BillGeneratedAt *time.Time    `json:"bill_generated_at"`

	CreatedBy        uint  `gorm:"index" json:"created_by"`
	CreatedByProfile *User `gorm:"foreignKey:CreatedBy" json:"created_by_profile,omitempty"`

	Items    []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"order_items"`
	Payments []Payment   `json:"payments,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) Remaining() float64 {
	r := o.TotalAmount - o.PaidAmount
	if r < 0 {
		return 0
	}
	return r
}

type OrderItem struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OrderID    uint       `gorm:"not null;index" json:"order_id"`
	Order      *Order     `json:"order,omitempty"`
	RecipeID   uint       `gorm:"not null;index" json:"recipe_id"`
	Recipe     *Recipe    `json:"recipe,omitempty"`
	Quantity   int        `gorm:"not null" json:"quantity"`
	UnitPrice  float64    `gorm:"not null" json:"unit_price"`
	ItemStatus ItemStatus `gorm:"size:20;not null;default:pending;index" json:"item_status"`
	Notes      string     `gorm:"size:255" json:"notes"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
