package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
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

func (e OrderStatus) Valid() bool {
	switch e {
	case OrderStatusPending,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	}
	return false
}

type OrderSource string

const (
	OrderSourceStaff    OrderSource = "staff"
	OrderSourceCustomer OrderSource = "customer"
)

func (e *OrderSource) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderSource(s)
	case string:
		*e = OrderSource(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderSource: %T", src)
	}
	return nil
}

type TableStatus string

const (
	TableStatusFree     TableStatus = "free"
	TableStatusOccupied TableStatus = "occupied"
	TableStatusReserved TableStatus = "reserved"
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

func (e TableStatus) Valid() bool {
	switch e {
	case TableStatusFree,
		TableStatusOccupied,
		TableStatusReserved:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodPending    PaymentMethod = "pending"
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodPix        PaymentMethod = "pix"
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

func (e PaymentMethod) Valid() bool {
	switch e {
	case PaymentMethodPending,
		PaymentMethodCash,
		PaymentMethodCreditCard,
		PaymentMethodDebitCard,
		PaymentMethodPix:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (e *PaymentStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentStatus(s)
	case string:
		*e = PaymentStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentStatus: %T", src)
	}
	return nil
}

type ServiceRequestStatus string

const (
	ServiceRequestStatusPending      ServiceRequestStatus = "pending"
	ServiceRequestStatusAcknowledged ServiceRequestStatus = "acknowledged"
)

func (e *ServiceRequestStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = ServiceRequestStatus(s)
	case string:
		*e = ServiceRequestStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for ServiceRequestStatus: %T", src)
	}
	return nil
}

func (e ServiceRequestStatus) Valid() bool {
	switch e {
	case ServiceRequestStatusPending,
		ServiceRequestStatusAcknowledged:
		return true
	}
	return false
}

type Category struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	ImageUrl    pgtype.Text `json:"image_url"`
	IsActive    bool        `json:"is_active"`
	SortOrder   int32       `json:"sort_order"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Invoice struct {
	ID                   uuid.UUID      `json:"id"`
	InvoiceNumber        string         `json:"invoice_number"`
	TableID              uuid.UUID      `json:"table_id"`
	TableNumber          string         `json:"table_number"`
	Subtotal             pgtype.Numeric `json:"subtotal"`
	ServiceFee           pgtype.Numeric `json:"service_fee"`
	TaxAmount            pgtype.Numeric `json:"tax_amount"`
	TotalAmount          pgtype.Numeric `json:"total_amount"`
	ServiceFeeEnabled    bool           `json:"service_fee_enabled"`
	ServiceFeePercentage pgtype.Numeric `json:"service_fee_percentage"`
	TaxPercentage        pgtype.Numeric `json:"tax_percentage"`
	PaymentMethod        PaymentMethod  `json:"payment_method"`
	PaymentStatus        PaymentStatus  `json:"payment_status"`
	CustomerName         string         `json:"customer_name"`
	CustomerDocument     pgtype.Text    `json:"customer_document"`
	Notes                pgtype.Text    `json:"notes"`
	WaiterID             pgtype.UUID    `json:"waiter_id"`
	ClosedAt             time.Time      `json:"closed_at"`
	CreatedAt            time.Time      `json:"created_at"`
}

type InvoiceItem struct {
	ID          uuid.UUID      `json:"id"`
	InvoiceID   uuid.UUID      `json:"invoice_id"`
	ProductName string         `json:"product_name"`
	Volume      string         `json:"volume"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Quantity    int32          `json:"quantity"`
	LineTotal   pgtype.Numeric `json:"line_total"`
	Position    int32          `json:"position"`
}

type Order struct {
	ID            uuid.UUID          `json:"id"`
	TableID       uuid.UUID          `json:"table_id"`
	Status        OrderStatus        `json:"status"`
	Source        OrderSource        `json:"source"`
	TotalAmount   pgtype.Numeric     `json:"total_amount"`
	CustomerNotes pgtype.Text        `json:"customer_notes"`
	WaiterID      pgtype.UUID        `json:"waiter_id"`
	InvoiceID     pgtype.UUID        `json:"invoice_id"`
	SettledAt     pgtype.Timestamptz `json:"settled_at"`
	ArchivedAt    pgtype.Timestamptz `json:"archived_at"`
	Version       int32              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type OrderItem struct {
	ID          uuid.UUID      `json:"id"`
	OrderID     uuid.UUID      `json:"order_id"`
	ProductID   pgtype.UUID    `json:"product_id"`
	ProductName string         `json:"product_name"`
	Volume      string         `json:"volume"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Quantity    int32          `json:"quantity"`
	LineTotal   pgtype.Numeric `json:"line_total"`
	Position    int32          `json:"position"`
}

type Product struct {
	ID             uuid.UUID      `json:"id"`
	CategoryID     uuid.UUID      `json:"category_id"`
	Name           string         `json:"name"`
	Description    pgtype.Text    `json:"description"`
	ImageUrl       pgtype.Text    `json:"image_url"`
	IsAvailable    bool           `json:"is_available"`
	ComingSoon     bool           `json:"coming_soon"`
	Ibu            pgtype.Numeric `json:"ibu"`
	Abv            pgtype.Numeric `json:"abv"`
	Harmonizations []string       `json:"harmonizations"`
	SortOrder      int32          `json:"sort_order"`
	Version        int32          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type ProductPriceVariant struct {
	ID        uuid.UUID      `json:"id"`
	ProductID uuid.UUID      `json:"product_id"`
	Volume    string         `json:"volume"`
	Price     pgtype.Numeric `json:"price"`
	Position  int32          `json:"position"`
}

type ServiceRequest struct {
	ID             uuid.UUID            `json:"id"`
	TableID        uuid.UUID            `json:"table_id"`
	TableNumber    string               `json:"table_number"`
	RequestType    string               `json:"request_type"`
	Status         ServiceRequestStatus `json:"status"`
	AcknowledgedBy pgtype.UUID          `json:"acknowledged_by"`
	AcknowledgedAt pgtype.Timestamptz   `json:"acknowledged_at"`
	CreatedAt      time.Time            `json:"created_at"`
}

type SystemSetting struct {
	ID                      int32          `json:"id"`
	BusinessName            string         `json:"business_name"`
	Subtitle                string         `json:"subtitle"`
	LogoUrl                 string         `json:"logo_url"`
	PrimaryColor            string         `json:"primary_color"`
	MenuUrl                 string         `json:"menu_url"`
	ContactInfo             string         `json:"contact_info"`
	ShowPricesPublic        bool           `json:"show_prices_public"`
	AllowOnlineOrders       bool           `json:"allow_online_orders"`
	RequireTableSelection   bool           `json:"require_table_selection"`
	TaxPercentage           pgtype.Numeric `json:"tax_percentage"`
	ServiceFeePercentage    pgtype.Numeric `json:"service_fee_percentage"`
	CategoryRotationSeconds int32          `json:"category_rotation_seconds"`
	PageRotationSeconds     int32          `json:"page_rotation_seconds"`
	MenuRefreshMinutes      int32          `json:"menu_refresh_minutes"`
	GlobalVolumeNames       []string       `json:"global_volume_names"`
	GlobalHarmonizationTags []string       `json:"global_harmonization_tags"`
	GlobalPriceTemplates    []byte         `json:"global_price_templates"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

type Table struct {
	ID        uuid.UUID   `json:"id"`
	Number    string      `json:"number"`
	Capacity  int32       `json:"capacity"`
	Location  pgtype.Text `json:"location"`
	Status    TableStatus `json:"status"`
	QrCode    string      `json:"qr_code"`
	Version   int32       `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	HashedPassword string    `json:"hashed_password"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
