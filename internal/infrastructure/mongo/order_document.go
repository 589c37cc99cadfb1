package mongo

import (
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Nested value objects are stored with the driver's default lower-cased keys
// (shippingAddress.city, notes.admin, ...).
type orderDoc struct {
	ID              string                 `bson:"_id"`
	OrderNumber     string                 `bson:"orderNumber"`
	CustomerID      string                 `bson:"customer"`
	Items           []lineDoc              `bson:"items"`
	Subtotal        primitive.Decimal128   `bson:"subtotal"`
	Tax             primitive.Decimal128   `bson:"tax"`
	ShippingCost    primitive.Decimal128   `bson:"shippingCost"`
	Discount        primitive.Decimal128   `bson:"discount"`
	TotalAmount     primitive.Decimal128   `bson:"totalAmount"`
	ShippingAddress domain.Address         `bson:"shippingAddress"`
	BillingAddress  domain.Address         `bson:"billingAddress"`
	PaymentMethod   string                 `bson:"paymentMethod"`
	PaymentStatus   string                 `bson:"paymentStatus"`
	PaymentDetails  domain.PaymentDetails  `bson:"paymentDetails"`
	Status          string                 `bson:"status"`
	StatusHistory   []domain.StatusEntry   `bson:"statusHistory"`
	ShippingDetails domain.ShippingDetails `bson:"shippingDetails"`
	Notes           domain.Notes           `bson:"notes"`
	Priority        string                 `bson:"priority"`
	PriorityRank    int                    `bson:"priorityRank"`
	Tags            []string               `bson:"tags"`
	Active          bool                   `bson:"isActive"`
	CreatedBy       string                 `bson:"createdBy,omitempty"`
	UpdatedBy       string                 `bson:"updatedBy,omitempty"`
	Version         int64                  `bson:"version"`
	CreatedAt       time.Time              `bson:"createdAt"`
	UpdatedAt       time.Time              `bson:"updatedAt"`
}

type lineDoc struct {
	ProductID string               `bson:"product"`
	Name      string               `bson:"name"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"price"`
	Discount  primitive.Decimal128 `bson:"discount"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	items := make([]lineDoc, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, lineDoc{
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: toDecimal128(li.UnitPrice),
			Discount:  toDecimal128(li.Discount),
		})
	}
	return orderDoc{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Items:           items,
		Subtotal:        toDecimal128(o.Subtotal),
		Tax:             toDecimal128(o.Tax),
		ShippingCost:    toDecimal128(o.ShippingCost),
		Discount:        toDecimal128(o.Discount),
		TotalAmount:     toDecimal128(o.TotalAmount),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentDetails:  o.PaymentDetails,
		Status:          string(o.Status),
		StatusHistory:   o.StatusHistory.Entries(),
		ShippingDetails: o.ShippingDetails,
		Notes:           o.Notes,
		Priority:        string(o.Priority),
		PriorityRank:    o.Priority.Rank(),
		Tags:            o.Tags,
		Active:          o.Active,
		CreatedBy:       o.CreatedBy,
		UpdatedBy:       o.UpdatedBy,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() *domain.Order {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, li := range d.Items {
		items = append(items, domain.LineItem{
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: fromDecimal128(li.UnitPrice),
			Discount:  fromDecimal128(li.Discount),
		})
	}
	return &domain.Order{
		ID:              d.ID,
		OrderNumber:     d.OrderNumber,
		CustomerID:      d.CustomerID,
		Items:           items,
		Subtotal:        fromDecimal128(d.Subtotal),
		Tax:             fromDecimal128(d.Tax),
		ShippingCost:    fromDecimal128(d.ShippingCost),
		Discount:        fromDecimal128(d.Discount),
		TotalAmount:     fromDecimal128(d.TotalAmount),
		ShippingAddress: d.ShippingAddress,
		BillingAddress:  d.BillingAddress,
		PaymentMethod:   domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		PaymentDetails:  d.PaymentDetails,
		Status:          domain.Status(d.Status),
		StatusHistory:   domain.RestoreHistory(d.StatusHistory),
		ShippingDetails: d.ShippingDetails,
		Notes:           d.Notes,
		Priority:        domain.Priority(d.Priority),
		Tags:            d.Tags,
		Active:          d.Active,
		CreatedBy:       d.CreatedBy,
		UpdatedBy:       d.UpdatedBy,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
