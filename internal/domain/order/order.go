package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posbridge/backend/internal/domain/shared"
)

// ExpeditionType tells whether an order is collected by the customer or
// delivered by a courier.
type ExpeditionType string

const (
	ExpeditionDelivery ExpeditionType = "delivery"
	ExpeditionPickup   ExpeditionType = "pickup"
)

// Valid reports whether the expedition type is one of the two accepted values.
func (e ExpeditionType) Valid() bool {
	return e == ExpeditionDelivery || e == ExpeditionPickup
}

// PaymentStatus is the platform-side payment state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// SponsorType identifies the party funding a discount.
type SponsorType string

const (
	SponsorPlatform   SponsorType = "PLATFORM"
	SponsorVendor     SponsorType = "VENDOR"
	SponsorThirdParty SponsorType = "THIRD_PARTY"
)

// ToppingType classifies a topping entry.
type ToppingType string

const (
	ToppingProduct ToppingType = "PRODUCT"
	ToppingVariant ToppingType = "VARIANT"
	ToppingExtra   ToppingType = "EXTRA"
)

// UnavailabilityHandling is the platform instruction for an out-of-stock item.
type UnavailabilityHandling string

const (
	UnavailabilityRemove         UnavailabilityHandling = "REMOVE"
	UnavailabilityReduceQuantity UnavailabilityHandling = "REDUCE_QUANTITY"
	UnavailabilityCallAndReplace UnavailabilityHandling = "CALL_CUSTOMER_AND_REPLACE"
	UnavailabilityCancelOrder    UnavailabilityHandling = "CANCEL_ORDER"
)

// OrderType is derived from the expedition type and the rider pickup time.
type OrderType string

const (
	TypePickup         OrderType = "pickup"
	TypeVendorDelivery OrderType = "vendor_delivery"
	TypeOwnDelivery    OrderType = "own_delivery"
)

// CallbackURLs holds the optional platform endpoints this system calls back
// when an order changes state.
type CallbackURLs struct {
	OrderAccepted                  string
	OrderRejected                  string
	OrderProductModification       string
	OrderPickedUp                  string
	OrderPrepared                  string
	OrderPreparationTimeAdjustment string
}

// Order is the anchor record for one platform order. The full entity graph
// (customer, payment, price, products, toppings, discounts) hangs off it and
// is written atomically at ingestion time.
type Order struct {
	shared.BaseEntity

	Token          string
	Code           string
	ShortCode      *string
	PlacedAt       time.Time
	ExpiryDate     time.Time
	ExpeditionType ExpeditionType
	Test           bool
	PreOrder       bool

	// Status is free-form on purpose: the platform owns the vocabulary and
	// no transition matrix is enforced server-side.
	Status string

	CorporateTaxID        string
	CustomerComment       *string
	InvoicingCarrierType  *string
	InvoicingCarrierValue *string

	MaxPickupTimestamp   time.Time
	MinPickupTimestamp   *time.Time
	PreparationIntervals [][]int

	Callbacks CallbackURLs

	// Parameters is an extensible platform parameter map. The POS status
	// path stores posStatus and lastStatusUpdate here, never in Status.
	Parameters map[string]string

	Customer           *Customer
	Payment            *Payment
	Price              *Price
	LocalInfo          *LocalInfo
	PlatformRestaurant *PlatformRestaurant
	Delivery           *Delivery
	Pickup             *Pickup
	Products           []Product
	Discounts          []Discount
	DeliveryFees       []DeliveryFee
}

// OrderType derives the fulfilment flavour: pickup orders are always
// "pickup"; delivery orders without a rider pickup time are courier
// ("vendor") deliveries, those with one are delivered by the vendor itself.
func (o *Order) OrderType() OrderType {
	if o.ExpeditionType == ExpeditionPickup {
		return TypePickup
	}
	if o.Delivery == nil || o.Delivery.RiderPickupTime == nil {
		return TypeVendorDelivery
	}
	return TypeOwnDelivery
}

// CallbackURL resolves the outbound URL for a callback-bearing status.
// It returns false both for statuses that never call out and for
// callback-bearing statuses whose URL was not supplied by the platform.
func (o *Order) CallbackURL(s Status) (string, bool) {
	var url string
	switch s {
	case StatusAccepted:
		url = o.Callbacks.OrderAccepted
	case StatusRejected:
		url = o.Callbacks.OrderRejected
	case StatusPickedUp:
		url = o.Callbacks.OrderPickedUp
	default:
		return "", false
	}
	return url, url != ""
}

// IsTest reports whether the platform flagged this as a test order.
func (o *Order) IsTest() bool {
	return o.Test
}

// IsPaid reports whether the order was prepaid on the platform.
func (o *Order) IsPaid() bool {
	return o.Payment != nil && o.Payment.Status == PaymentPaid
}

// Customer is shared across orders, deduplicated by email.
type Customer struct {
	shared.BaseEntity

	Email                  *string
	FirstName              *string
	LastName               *string
	MobilePhone            *string
	MobilePhoneCountryCode *string
	Code                   *string
	PlatformID             *string
	Flags                  []string
}

// Payment is order-exclusive, inserted fresh for every order.
type Payment struct {
	shared.BaseEntity

	Status              PaymentStatus
	Type                string
	RemoteCode          *string
	RequiredMoneyChange *string
	VATID               *string
	VATName             *string
}

// Price is order-exclusive. Monetary values are nullable: an unparsable
// input amount degrades to nil rather than rejecting the whole order.
type Price struct {
	shared.BaseEntity

	GrandTotal *decimal.Decimal
	TotalNet   *decimal.Decimal
	SubTotal   *decimal.Decimal
	VATTotal   *decimal.Decimal
	VATVisible bool

	MinimumDeliveryValue             *decimal.Decimal
	DifferenceToMinimumDeliveryValue *decimal.Decimal

	PayRestaurant       *decimal.Decimal
	RiderTip            *decimal.Decimal
	CollectFromCustomer *decimal.Decimal

	Commission          *decimal.Decimal
	ContainerCharge     *decimal.Decimal
	DeliveryFee         *decimal.Decimal
	DiscountAmountTotal *decimal.Decimal
	DeliveryFeeDiscount *decimal.Decimal

	ServiceFeePercent *decimal.Decimal
	ServiceFeeTotal   *decimal.Decimal
	ServiceTax        *decimal.Decimal
	ServiceTaxValue   *decimal.Decimal
}

// LocalInfo carries platform locale metadata, shared across all orders from
// the same platform key.
type LocalInfo struct {
	shared.BaseEntity

	CountryCode    string
	CurrencySymbol string
	Platform       string
	PlatformKey    string

	CurrencySymbolPosition *string
	CurrencySymbolSpaces   *string
	DecimalDigits          *string
	DecimalSeparator       *string
	Email                  *string
	Phone                  *string
	ThousandsSeparator     *string
	Website                *string
}

// PlatformRestaurant identifies the vendor on the delivery platform, shared
// across all of that vendor's orders.
type PlatformRestaurant struct {
	shared.BaseEntity

	PlatformID string
}

// Address is the flattened delivery address. All fields are optional; the
// whole address is absent for own-delivery orders.
type Address struct {
	Building             *string
	City                 *string
	Company              *string
	DeliveryArea         *string
	DeliveryInstructions *string
	DeliveryMainArea     *string
	Entrance             *string
	FlatNumber           *string
	Floor                *string
	Intercom             *string
	Latitude             *float64
	Longitude            *float64
	Number               *string
	Postcode             *string
	Street               *string
}

// Delivery is present for delivery orders only, mutually exclusive with Pickup.
type Delivery struct {
	shared.BaseEntity

	OrderID              uuid.UUID
	ExpectedDeliveryTime *time.Time
	ExpressDelivery      bool
	RiderPickupTime      *time.Time
	Address              Address
}

// Pickup is present for pickup orders only, mutually exclusive with Delivery.
type Pickup struct {
	shared.BaseEntity

	OrderID    uuid.UUID
	PickupTime *time.Time
	PickupCode *string
}

// Product is one order line. Quantity stays a string as received from the
// platform but must be decimal-comparable.
type Product struct {
	shared.BaseEntity

	OrderID        uuid.UUID
	PlatformID     *string
	CategoryName   *string
	Name           *string
	Description    *string
	PaidPrice      *decimal.Decimal
	UnitPrice      *decimal.Decimal
	Quantity       string
	RemoteCode     *string
	Comment        *string
	VariationName  *string
	HalfHalf       bool
	Unavailability *UnavailabilityHandling

	Toppings  []Topping
	Discounts []Discount
}

// Topping is a product modifier. Toppings form a tree: a topping may carry
// child toppings (the external contract caps nesting at five levels, storage
// does not) and its own discounts.
type Topping struct {
	shared.BaseEntity

	ProductID      uuid.UUID
	ParentID       *uuid.UUID
	PlatformID     *string
	Name           string
	Price          *decimal.Decimal
	Quantity       int
	RemoteCode     *string
	Type           *ToppingType
	Unavailability *UnavailabilityHandling

	Children  []Topping
	Discounts []Discount
}

// Discount attaches to exactly one of order, product or topping.
type Discount struct {
	shared.BaseEntity

	OrderID   *uuid.UUID
	ProductID *uuid.UUID
	ToppingID *uuid.UUID

	Name   *string
	Amount *decimal.Decimal
	Type   *string

	Sponsorships []Sponsorship
}

// Sponsorship records which party funds a discount and by how much.
type Sponsorship struct {
	shared.BaseEntity

	DiscountID uuid.UUID
	Sponsor    SponsorType
	Amount     *decimal.Decimal
}

// DeliveryFee is one named fee line attached to the order.
type DeliveryFee struct {
	shared.BaseEntity

	OrderID uuid.UUID
	Name    *string
	Value   *decimal.Decimal
}
