package order

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/shopspring/decimal"
)

// Address is a shipping or billing snapshot taken at checkout.
type Address struct {
	Name    string `json:"name" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
}

// ShippingDetails is filled in by fulfillment after the order is placed.
type ShippingDetails struct {
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
}

// PaymentDetails carries what the payment gateway reported back.
type PaymentDetails struct {
	TransactionID string     `json:"transactionId,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

type Notes struct {
	Customer string `json:"customer,omitempty"`
	Admin    string `json:"admin,omitempty"`
}

// LineItem is a snapshot of one product at the moment the order was placed.
type LineItem struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
}

// Total is quantity × unit price − discount.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))).Sub(li.Discount)
}

// LineFromReservation prices a line from the catalog state captured at reservation time.
// The product's discount percentage becomes the line discount.
func LineFromReservation(r product.Reservation) LineItem {
	gross := r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
	return LineItem{
		ProductID: r.ProductID,
		Name:      r.Name,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Discount:  gross.Sub(product.ApplyDiscount(gross, r.DiscountPercent)),
	}
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerID      string          `json:"customer"`
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Discount        decimal.Decimal `json:"discount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress Address         `json:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentDetails  PaymentDetails  `json:"paymentDetails"`
	Status          Status          `json:"status"`
	StatusHistory   StatusHistory   `json:"statusHistory"`
	ShippingDetails ShippingDetails `json:"shippingDetails"`
	Notes           Notes           `json:"notes"`
	Priority        Priority        `json:"priority"`
	Tags            []string        `json:"tags"`
	Active          bool            `json:"isActive"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	UpdatedBy       string          `json:"updatedBy,omitempty"`
	Version         int64           `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Params are the checkout facts needed to open an order.
type Params struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	CreatedBy       string
	Items           []LineItem
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	Discount        decimal.Decimal
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   PaymentMethod
	Priority        Priority
	Notes           Notes
	Tags            []string
	Now             time.Time
}

// New opens an order in pending/pending with its initial history entry and computed totals.
func New(p Params) (*Order, error) {
	verr := &ValidationError{}
	if len(p.Items) == 0 {
		verr.Add("items", "must contain at least one item")
	}
	for i, li := range p.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(li.ProductID) == "" {
			verr.Add(field+".product", "is required")
		}
		if li.Quantity < 1 {
			verr.Add(field+".quantity", "must be at least 1")
		}
		if li.UnitPrice.IsNegative() {
			verr.Add(field+".price", "must be zero or greater")
		}
		if li.Discount.IsNegative() {
			verr.Add(field+".discount", "must be zero or greater")
		}
	}
	verr.Merge(CheckCharges(p.Tax, p.ShippingCost, p.Discount))
	if !p.PaymentMethod.Valid() {
		verr.Add("paymentMethod", "is not a supported payment method")
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		verr.Add("priority", "must be one of low, normal, high, urgent")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	subtotal, total := ComputeTotals(p.Items, p.Tax, p.ShippingCost, p.Discount)
	if total.IsNegative() {
		verr.Add("totalAmount", "must not be negative")
		return nil, verr
	}

	billing := p.ShippingAddress
	if p.BillingAddress != nil {
		billing = *p.BillingAddress
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	o := &Order{
		ID:              p.ID,
		OrderNumber:     p.OrderNumber,
		CustomerID:      p.CustomerID,
		Items:           slices.Clone(p.Items),
		Subtotal:        subtotal,
		Tax:             p.Tax,
		ShippingCost:    p.ShippingCost,
		Discount:        p.Discount,
		TotalAmount:     total,
		ShippingAddress: p.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   p.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		Notes:           p.Notes,
		Priority:        priority,
		Tags:            normalizeTags(p.Tags),
		Active:          true,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.StatusHistory.append(StatusEntry{Status: StatusPending, Timestamp: now, UpdatedBy: p.CreatedBy})
	return o, nil
}

// ComputeTotals returns subtotal = Σ line totals and total = subtotal + tax + shipping − discount.
func ComputeTotals(items []LineItem, tax, shipping, discount decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.Total())
	}
	total = subtotal.Add(tax).Add(shipping).Sub(discount)
	return subtotal, total
}

// CheckCharges reports the order-level charges that are negative.
func CheckCharges(tax, shipping, discount decimal.Decimal) *ValidationError {
	verr := &ValidationError{}
	if tax.IsNegative() {
		verr.Add("tax", "must be zero or greater")
	}
	if shipping.IsNegative() {
		verr.Add("shippingCost", "must be zero or greater")
	}
	if discount.IsNegative() {
		verr.Add("discount", "must be zero or greater")
	}
	return verr
}

// ChangeStatus moves the order to next and appends the matching history entry.
// Supplying the current status is a no-op and reports false.
func (o *Order) ChangeStatus(next Status, actor, note string, at time.Time) (bool, error) {
	if next == o.Status {
		return false, nil
	}
	if !CanTransition(o.Status, next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}

	o.Status = next
	o.StatusHistory.append(StatusEntry{Status: next, Timestamp: at, UpdatedBy: actor, Note: note})

	switch next {
	case StatusShipped:
		if o.ShippingDetails.ShippedAt == nil {
			o.ShippingDetails.ShippedAt = timePtr(at)
		}
	case StatusDelivered:
		if o.ShippingDetails.DeliveredAt == nil {
			o.ShippingDetails.DeliveredAt = timePtr(at)
		}
	}
	o.touch(actor, at)
	return true, nil
}

// ChangePaymentStatus applies the independent payment state machine. No history is recorded.
func (o *Order) ChangePaymentStatus(next PaymentStatus, actor string, at time.Time) (bool, error) {
	if next == o.PaymentStatus {
		return false, nil
	}
	if !CanTransitionPayment(o.PaymentStatus, next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, o.PaymentStatus, next)
	}
	o.PaymentStatus = next
	if next == PaymentPaid && o.PaymentDetails.PaidAt == nil {
		o.PaymentDetails.PaidAt = timePtr(at)
	}
	o.touch(actor, at)
	return true, nil
}

func (o *Order) SetShippingDetails(d ShippingDetails, actor string, at time.Time) {
	o.ShippingDetails = d
	o.touch(actor, at)
}

func (o *Order) SetNotes(n Notes, actor string, at time.Time) {
	o.Notes = n
	o.touch(actor, at)
}

func (o *Order) SetPriority(p Priority, actor string, at time.Time) error {
	if !p.Valid() {
		return &ValidationError{Fields: []FieldError{{Field: "priority", Message: "must be one of low, normal, high, urgent"}}}
	}
	o.Priority = p
	o.touch(actor, at)
	return nil
}

func (o *Order) SetTags(tags []string, actor string, at time.Time) {
	o.Tags = normalizeTags(tags)
	o.touch(actor, at)
}

// Deactivate soft-deletes the order.
func (o *Order) Deactivate(actor string, at time.Time) {
	o.Active = false
	o.touch(actor, at)
}

// StockRequests lists what this order holds in inventory, one request per line.
func (o *Order) StockRequests() []product.StockRequest {
	reqs := make([]product.StockRequest, 0, len(o.Items))
	for _, li := range o.Items {
		reqs = append(reqs, product.StockRequest{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return reqs
}

// CheckHistory verifies the latest history entry matches the current status.
func (o *Order) CheckHistory() error {
	last, ok := o.StatusHistory.Last()
	if !ok {
		return fmt.Errorf("order %s: empty status history", o.ID)
	}
	if last.Status != o.Status {
		return fmt.Errorf("order %s: history ends in %s but status is %s", o.ID, last.Status, o.Status)
	}
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = slices.Clone(o.Items)
	c.Tags = slices.Clone(o.Tags)
	c.StatusHistory = RestoreHistory(o.StatusHistory.entries)
	c.ShippingDetails = ShippingDetails{
		Carrier:           o.ShippingDetails.Carrier,
		TrackingNumber:    o.ShippingDetails.TrackingNumber,
		EstimatedDelivery: clonePtr(o.ShippingDetails.EstimatedDelivery),
		ShippedAt:         clonePtr(o.ShippingDetails.ShippedAt),
		DeliveredAt:       clonePtr(o.ShippingDetails.DeliveredAt),
	}
	c.PaymentDetails.PaidAt = clonePtr(o.PaymentDetails.PaidAt)
	return &c
}

func (o *Order) touch(actor string, at time.Time) {
	if actor != "" {
		o.UpdatedBy = actor
	}
	o.UpdatedAt = at
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
