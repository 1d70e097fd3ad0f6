package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
)

func (e *TableStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TableStatus(s)
	case string:
		*e = TableStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TableStatus: %T", src)
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

type OrderItemStatus string

const (
	OrderItemStatusActive    OrderItemStatus = "active"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
	OrderItemStatusCompleted OrderItemStatus = "completed"
)

func (e *OrderItemStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderItemStatus(s)
	case string:
		*e = OrderItemStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderItemStatus: %T", src)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodOther      PaymentMethod = "other"
)

func (e *PaymentMethod) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentMethod(s)
	case string:
		*e = PaymentMethod(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentMethod: %T", src)
	}
	return nil
}

type ActivityLog struct {
	ID        uuid.UUID   `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Operation string      `json:"operation"`
	Details   []byte      `json:"details"`
	TableID   pgtype.UUID `json:"table_id"`
	OrderID   pgtype.UUID `json:"order_id"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
}

type Category struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	ParentID  pgtype.UUID `json:"parent_id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type DailySalesReport struct {
	ID              uuid.UUID      `json:"id"`
	Date            pgtype.Date    `json:"date"`
	TotalSales      pgtype.Numeric `json:"total_sales"`
	TotalOrders     int32          `json:"total_orders"`
	CashSales       pgtype.Numeric `json:"cash_sales"`
	CreditCardSales pgtype.Numeric `json:"credit_card_sales"`
	DebitCardSales  pgtype.Numeric `json:"debit_card_sales"`
	OtherSales      pgtype.Numeric `json:"other_sales"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type Order struct {
	ID        uuid.UUID   `json:"id"`
	TableID   uuid.UUID   `json:"table_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	VariantID  pgtype.UUID     `json:"variant_id"`
	Name       string          `json:"name"`
	Quantity   int32           `json:"quantity"`
	Price      pgtype.Numeric  `json:"price"`
	AssignedTo pgtype.Text     `json:"assigned_to"`
	Status     OrderItemStatus `json:"status"`
	Method     pgtype.Text     `json:"method"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Payment struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	Amount    pgtype.Numeric `json:"amount"`
	Method    PaymentMethod  `json:"method"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Product struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	CategoryID pgtype.UUID    `json:"category_id"`
	IsWeighted bool           `json:"is_weighted"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type ProductVariant struct {
	ID        uuid.UUID      `json:"id"`
	ProductID uuid.UUID      `json:"product_id"`
	Name      string         `json:"name"`
	Price     pgtype.Numeric `json:"price"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Table struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Status    TableStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
