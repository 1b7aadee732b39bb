package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// MinorAmount
// ---------------------------------------------------------------------------

// MinorAmount is a money amount in minor currency units (grosze).
// The marketplace sends amounts as JSON numbers; numeric strings are accepted too.
type MinorAmount int64

// UnmarshalJSON accepts integers, floats (truncated) and numeric strings.
func (a *MinorAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*a = MinorAmount(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	*a = MinorAmount(int64(f))
	return nil
}

// ---------------------------------------------------------------------------
// MarketplaceOrder
// ---------------------------------------------------------------------------

// MarketplaceOrder is the typed view of a marketplace order detail.
// Optional fields are pointers so that "absent" and "zero" stay distinct.
type MarketplaceOrder struct {
	ID              EventID       `json:"id"`
	OrderID         EventID       `json:"orderId"`
	Status          string        `json:"status"`
	Summary         *OrderSummary `json:"summary"`
	TotalPrice      *MinorAmount  `json:"totalPrice"`
	Items           []OrderItem   `json:"items"`
	Delivery        OrderDelivery `json:"delivery"`
	ShippingAddress *Address      `json:"shippingAddress"`
	DeliveryAddress *Address      `json:"deliveryAddress"`
	BillingAddress  *Address      `json:"billingAddress"`
	InvoiceAddress  *Address      `json:"invoiceAddress"`
	User            *OrderUser    `json:"user"`
	Comment         string        `json:"comment"`

	// Raw is the order document as received, kept for logs
	Raw json.RawMessage `json:"-"`
}

// OrderSummary holds the totals computed by the marketplace
type OrderSummary struct {
	Total      *MinorAmount `json:"total"`
	TotalToPay *MinorAmount `json:"totalToPay"`
}

// OrderItem is one order line
type OrderItem struct {
	ExternalID string       `json:"externalId"`
	SKU        string       `json:"sku"`
	Name       string       `json:"name"`
	Quantity   *int         `json:"quantity"`
	Price      *MinorAmount `json:"price"`
	TotalPrice *MinorAmount `json:"totalPrice"`
}

// Qty returns the ordered quantity, 1 when not given.
func (i OrderItem) Qty() int {
	if i.Quantity == nil {
		return 1
	}
	return *i.Quantity
}

// OrderDelivery is the delivery method chosen by the buyer
type OrderDelivery struct {
	TypeID EventID      `json:"typeId"`
	Name   string       `json:"name"`
	Price  *MinorAmount `json:"price"`
}

// Tag returns the trimmed delivery type id.
func (d OrderDelivery) Tag() string {
	return strings.TrimSpace(d.TypeID.String())
}

// DisplayName returns the trimmed delivery name.
func (d OrderDelivery) DisplayName() string {
	return strings.TrimSpace(d.Name)
}

// PriceMinor returns the delivery price, 0 when absent.
func (d OrderDelivery) PriceMinor() int64 {
	if d.Price == nil {
		return 0
	}
	return int64(*d.Price)
}

// OrderUser is the buyer
type OrderUser struct {
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Phone           string   `json:"phone"`
	DeliveryAddress *Address `json:"deliveryAddress"`
	InvoiceAddress  *Address `json:"invoiceAddress"`
}

// Address is a postal address as sent by the marketplace
type Address struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
	Street      string `json:"address"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone"`
	TaxID       string `json:"nip"`
}

// IsEmpty reports whether no address field is filled.
func (a *Address) IsEmpty() bool {
	if a == nil {
		return true
	}
	return strings.TrimSpace(a.FirstName+a.LastName+a.CompanyName+a.Street+a.Zip+a.City+a.CountryCode+a.Phone+a.TaxID) == ""
}

// ParseMarketplaceOrder decodes an order detail body. The body must be a JSON object.
func ParseMarketplaceOrder(body json.RawMessage) (*MarketplaceOrder, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: order body is not an object", ErrMalformedResponse)
	}
	var order MarketplaceOrder
	if err := json.Unmarshal(trimmed, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	order.Raw = append(json.RawMessage(nil), trimmed...)
	return &order, nil
}

// ExternalID returns the marketplace order id, falling back to orderId.
func (o *MarketplaceOrder) ExternalID() string {
	if !o.ID.IsEmpty() {
		return o.ID.String()
	}
	return o.OrderID.String()
}

// NormalizedStatus returns the trimmed lower-case status.
func (o *MarketplaceOrder) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(o.Status))
}

// TotalMinor returns the order total: summary.total, then summary.totalToPay, then totalPrice.
func (o *MarketplaceOrder) TotalMinor() (int64, bool) {
	if o.Summary != nil {
		if o.Summary.Total != nil {
			return int64(*o.Summary.Total), true
		}
		if o.Summary.TotalToPay != nil {
			return int64(*o.Summary.TotalToPay), true
		}
	}
	if o.TotalPrice != nil {
		return int64(*o.TotalPrice), true
	}
	return 0, false
}

// ItemsTotalMinor sums item totals; an item without totalPrice counts price*quantity.
// The second result is false when no item carried any price.
func (o *MarketplaceOrder) ItemsTotalMinor() (int64, bool) {
	var sum int64
	found := false
	for _, item := range o.Items {
		switch {
		case item.TotalPrice != nil:
			sum += int64(*item.TotalPrice)
			found = true
		case item.Price != nil:
			sum += int64(*item.Price) * int64(item.Qty())
			found = true
		}
	}
	return sum, found
}

// DeliveryMinor returns delivery.price, else total minus items floored at 0.
func (o *MarketplaceOrder) DeliveryMinor() (int64, bool) {
	if o.Delivery.Price != nil {
		return int64(*o.Delivery.Price), true
	}
	total, okTotal := o.TotalMinor()
	items, okItems := o.ItemsTotalMinor()
	if !okTotal || !okItems {
		return 0, false
	}
	if total-items < 0 {
		return 0, true
	}
	return total - items, true
}

// ShippingAddressCandidate returns the first non-empty of shippingAddress,
// deliveryAddress and user.deliveryAddress.
func (o *MarketplaceOrder) ShippingAddressCandidate() *Address {
	candidates := []*Address{o.ShippingAddress, o.DeliveryAddress}
	if o.User != nil {
		candidates = append(candidates, o.User.DeliveryAddress)
	}
	for _, c := range candidates {
		if !c.IsEmpty() {
			return c
		}
	}
	return &Address{}
}

// BillingAddressCandidate returns the first non-empty of billingAddress,
// invoiceAddress and user.invoiceAddress, defaulting to the shipping address.
func (o *MarketplaceOrder) BillingAddressCandidate() *Address {
	candidates := []*Address{o.BillingAddress, o.InvoiceAddress}
	if o.User != nil {
		candidates = append(candidates, o.User.InvoiceAddress)
	}
	for _, c := range candidates {
		if !c.IsEmpty() {
			return c
		}
	}
	return o.ShippingAddressCandidate()
}

// DeliveryJSON returns the delivery section for log details.
func (o *MarketplaceOrder) DeliveryJSON() string {
	b, err := json.Marshal(o.Delivery)
	if err != nil {
		return ""
	}
	return string(b)
}
