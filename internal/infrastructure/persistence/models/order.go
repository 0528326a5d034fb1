package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posbridge/backend/internal/domain/order"
)

// OrderModel is the orders table. The unique index on token is the last line
// of defense against double ingestion of the same platform order.
type OrderModel struct {
	BaseModel

	Token          string  `gorm:"size:512;uniqueIndex;not null"`
	Code           string  `gorm:"size:255;index;not null"`
	ShortCode      *string `gorm:"size:64;index"`
	PlacedAt       time.Time
	ExpiryDate     time.Time
	ExpeditionType string `gorm:"size:16;not null"`
	Test           bool
	PreOrder       bool
	Status         string `gorm:"size:64;index"`

	CorporateTaxID        string `gorm:"size:255"`
	CustomerComment       *string
	InvoicingCarrierType  *string `gorm:"size:255"`
	InvoicingCarrierValue *string `gorm:"size:255"`

	MaxPickupTimestamp   time.Time
	MinPickupTimestamp   *time.Time
	PreparationIntervals string `gorm:"type:jsonb"`

	Parameters string `gorm:"type:jsonb"`

	CallbackAcceptedURL     string `gorm:"size:2048"`
	CallbackRejectedURL     string `gorm:"size:2048"`
	CallbackModificationURL string `gorm:"size:2048"`
	CallbackPickedUpURL     string `gorm:"size:2048"`
	CallbackPreparedURL     string `gorm:"size:2048"`
	CallbackPrepTimeURL     string `gorm:"size:2048"`

	CustomerID           uuid.UUID `gorm:"type:uuid;not null;index"`
	PaymentID            uuid.UUID `gorm:"type:uuid;not null"`
	PriceID              uuid.UUID `gorm:"type:uuid;not null"`
	LocalInfoID          uuid.UUID `gorm:"type:uuid;not null"`
	PlatformRestaurantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName specifies the table name for OrderModel
func (OrderModel) TableName() string { return "orders" }

// NewOrderModel maps the domain order (without its relations) to the orders
// row. The relation IDs must already be resolved on the domain entities.
func NewOrderModel(o *order.Order) *OrderModel {
	m := &OrderModel{
		Token:          o.Token,
		Code:           o.Code,
		ShortCode:      o.ShortCode,
		PlacedAt:       o.PlacedAt,
		ExpiryDate:     o.ExpiryDate,
		ExpeditionType: string(o.ExpeditionType),
		Test:           o.Test,
		PreOrder:       o.PreOrder,
		Status:         o.Status,

		CorporateTaxID:        o.CorporateTaxID,
		CustomerComment:       o.CustomerComment,
		InvoicingCarrierType:  o.InvoicingCarrierType,
		InvoicingCarrierValue: o.InvoicingCarrierValue,

		MaxPickupTimestamp:   o.MaxPickupTimestamp,
		MinPickupTimestamp:   o.MinPickupTimestamp,
		PreparationIntervals: marshalJSON(o.PreparationIntervals),

		Parameters: marshalJSON(o.Parameters),

		CallbackAcceptedURL:     o.Callbacks.OrderAccepted,
		CallbackRejectedURL:     o.Callbacks.OrderRejected,
		CallbackModificationURL: o.Callbacks.OrderProductModification,
		CallbackPickedUpURL:     o.Callbacks.OrderPickedUp,
		CallbackPreparedURL:     o.Callbacks.OrderPrepared,
		CallbackPrepTimeURL:     o.Callbacks.OrderPreparationTimeAdjustment,

		CustomerID:           o.Customer.ID,
		PaymentID:            o.Payment.ID,
		PriceID:              o.Price.ID,
		LocalInfoID:          o.LocalInfo.ID,
		PlatformRestaurantID: o.PlatformRestaurant.ID,
	}
	m.FromDomainBaseEntity(o.BaseEntity)
	return m
}

// ToDomain converts the orders row back to the domain entity. Relations are
// left nil; the repository attaches them.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseEntity:     m.BaseModel.ToDomain(),
		Token:          m.Token,
		Code:           m.Code,
		ShortCode:      m.ShortCode,
		PlacedAt:       m.PlacedAt,
		ExpiryDate:     m.ExpiryDate,
		ExpeditionType: order.ExpeditionType(m.ExpeditionType),
		Test:           m.Test,
		PreOrder:       m.PreOrder,
		Status:         m.Status,

		CorporateTaxID:        m.CorporateTaxID,
		CustomerComment:       m.CustomerComment,
		InvoicingCarrierType:  m.InvoicingCarrierType,
		InvoicingCarrierValue: m.InvoicingCarrierValue,

		MaxPickupTimestamp: m.MaxPickupTimestamp,
		MinPickupTimestamp: m.MinPickupTimestamp,

		Callbacks: order.CallbackURLs{
			OrderAccepted:                  m.CallbackAcceptedURL,
			OrderRejected:                  m.CallbackRejectedURL,
			OrderProductModification:       m.CallbackModificationURL,
			OrderPickedUp:                  m.CallbackPickedUpURL,
			OrderPrepared:                  m.CallbackPreparedURL,
			OrderPreparationTimeAdjustment: m.CallbackPrepTimeURL,
		},
	}
	unmarshalJSON(m.PreparationIntervals, &o.PreparationIntervals)
	unmarshalJSON(m.Parameters, &o.Parameters)
	return o
}

// CustomerModel is the customers table, deduplicated by email.
type CustomerModel struct {
	BaseModel

	Email                  *string `gorm:"size:255;index"`
	FirstName              *string `gorm:"size:255"`
	LastName               *string `gorm:"size:255"`
	MobilePhone            *string `gorm:"size:64"`
	MobilePhoneCountryCode *string `gorm:"size:16"`
	Code                   *string `gorm:"size:255"`
	PlatformID             *string `gorm:"size:255"`
	Flags                  string  `gorm:"type:jsonb"`
}

// TableName specifies the table name for CustomerModel
func (CustomerModel) TableName() string { return "customers" }

// NewCustomerModel maps the domain customer to its row.
func NewCustomerModel(c *order.Customer) *CustomerModel {
	m := &CustomerModel{
		Email:                  c.Email,
		FirstName:              c.FirstName,
		LastName:               c.LastName,
		MobilePhone:            c.MobilePhone,
		MobilePhoneCountryCode: c.MobilePhoneCountryCode,
		Code:                   c.Code,
		PlatformID:             c.PlatformID,
		Flags:                  marshalJSON(c.Flags),
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// ToDomain converts the customers row back to the domain entity.
func (m *CustomerModel) ToDomain() *order.Customer {
	c := &order.Customer{
		BaseEntity:             m.BaseModel.ToDomain(),
		Email:                  m.Email,
		FirstName:              m.FirstName,
		LastName:               m.LastName,
		MobilePhone:            m.MobilePhone,
		MobilePhoneCountryCode: m.MobilePhoneCountryCode,
		Code:                   m.Code,
		PlatformID:             m.PlatformID,
	}
	unmarshalJSON(m.Flags, &c.Flags)
	return c
}

// PaymentModel is the payments table, one row per order.
type PaymentModel struct {
	BaseModel

	Status              string  `gorm:"size:16;not null"`
	Type                string  `gorm:"size:64;not null"`
	RemoteCode          *string `gorm:"size:255"`
	RequiredMoneyChange *string `gorm:"size:64"`
	VATID               *string `gorm:"size:255;column:vat_id"`
	VATName             *string `gorm:"size:255;column:vat_name"`
}

// TableName specifies the table name for PaymentModel
func (PaymentModel) TableName() string { return "payments" }

// NewPaymentModel maps the domain payment to its row.
func NewPaymentModel(p *order.Payment) *PaymentModel {
	m := &PaymentModel{
		Status:              string(p.Status),
		Type:                p.Type,
		RemoteCode:          p.RemoteCode,
		RequiredMoneyChange: p.RequiredMoneyChange,
		VATID:               p.VATID,
		VATName:             p.VATName,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ToDomain converts the payments row back to the domain entity.
func (m *PaymentModel) ToDomain() *order.Payment {
	return &order.Payment{
		BaseEntity:          m.BaseModel.ToDomain(),
		Status:              order.PaymentStatus(m.Status),
		Type:                m.Type,
		RemoteCode:          m.RemoteCode,
		RequiredMoneyChange: m.RequiredMoneyChange,
		VATID:               m.VATID,
		VATName:             m.VATName,
	}
}

// PriceModel is the prices table, one row per order. All amounts are
// nullable numerics.
type PriceModel struct {
	BaseModel

	GrandTotal *decimal.Decimal `gorm:"type:numeric(14,4)"`
	TotalNet   *decimal.Decimal `gorm:"type:numeric(14,4)"`
	SubTotal   *decimal.Decimal `gorm:"type:numeric(14,4)"`
	VATTotal   *decimal.Decimal `gorm:"type:numeric(14,4);column:vat_total"`
	VATVisible bool             `gorm:"column:vat_visible"`

	MinimumDeliveryValue             *decimal.Decimal `gorm:"type:numeric(14,4)"`
	DifferenceToMinimumDeliveryValue *decimal.Decimal `gorm:"type:numeric(14,4)"`

	PayRestaurant       *decimal.Decimal `gorm:"type:numeric(14,4)"`
	RiderTip            *decimal.Decimal `gorm:"type:numeric(14,4)"`
	CollectFromCustomer *decimal.Decimal `gorm:"type:numeric(14,4)"`

	Commission          *decimal.Decimal `gorm:"type:numeric(14,4)"`
	ContainerCharge     *decimal.Decimal `gorm:"type:numeric(14,4)"`
	DeliveryFee         *decimal.Decimal `gorm:"type:numeric(14,4)"`
	DiscountAmountTotal *decimal.Decimal `gorm:"type:numeric(14,4)"`
	DeliveryFeeDiscount *decimal.Decimal `gorm:"type:numeric(14,4)"`

	ServiceFeePercent *decimal.Decimal `gorm:"type:numeric(8,4)"`
	ServiceFeeTotal   *decimal.Decimal `gorm:"type:numeric(14,4)"`
	ServiceTax        *decimal.Decimal `gorm:"type:numeric(14,4)"`
	ServiceTaxValue   *decimal.Decimal `gorm:"type:numeric(14,4)"`
}

// TableName specifies the table name for PriceModel
func (PriceModel) TableName() string { return "prices" }

// NewPriceModel maps the domain price to its row.
func NewPriceModel(p *order.Price) *PriceModel {
	m := &PriceModel{
		GrandTotal: p.GrandTotal,
		TotalNet:   p.TotalNet,
		SubTotal:   p.SubTotal,
		VATTotal:   p.VATTotal,
		VATVisible: p.VATVisible,

		MinimumDeliveryValue:             p.MinimumDeliveryValue,
		DifferenceToMinimumDeliveryValue: p.DifferenceToMinimumDeliveryValue,

		PayRestaurant:       p.PayRestaurant,
		RiderTip:            p.RiderTip,
		CollectFromCustomer: p.CollectFromCustomer,

		Commission:          p.Commission,
		ContainerCharge:     p.ContainerCharge,
		DeliveryFee:         p.DeliveryFee,
		DiscountAmountTotal: p.DiscountAmountTotal,
		DeliveryFeeDiscount: p.DeliveryFeeDiscount,

		ServiceFeePercent: p.ServiceFeePercent,
		ServiceFeeTotal:   p.ServiceFeeTotal,
		ServiceTax:        p.ServiceTax,
		ServiceTaxValue:   p.ServiceTaxValue,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ToDomain converts the prices row back to the domain entity.
func (m *PriceModel) ToDomain() *order.Price {
	return &order.Price{
		BaseEntity: m.BaseModel.ToDomain(),
		GrandTotal: m.GrandTotal,
		TotalNet:   m.TotalNet,
		SubTotal:   m.SubTotal,
		VATTotal:   m.VATTotal,
		VATVisible: m.VATVisible,

		MinimumDeliveryValue:             m.MinimumDeliveryValue,
		DifferenceToMinimumDeliveryValue: m.DifferenceToMinimumDeliveryValue,

		PayRestaurant:       m.PayRestaurant,
		RiderTip:            m.RiderTip,
		CollectFromCustomer: m.CollectFromCustomer,

		Commission:          m.Commission,
		ContainerCharge:     m.ContainerCharge,
		DeliveryFee:         m.DeliveryFee,
		DiscountAmountTotal: m.DiscountAmountTotal,
		DeliveryFeeDiscount: m.DeliveryFeeDiscount,

		ServiceFeePercent: m.ServiceFeePercent,
		ServiceFeeTotal:   m.ServiceFeeTotal,
		ServiceTax:        m.ServiceTax,
		ServiceTaxValue:   m.ServiceTaxValue,
	}
}

// LocalInfoModel is the local_infos table, shared per platform key.
type LocalInfoModel struct {
	BaseModel

	CountryCode    string `gorm:"size:8;not null"`
	CurrencySymbol string `gorm:"size:16;not null"`
	Platform       string `gorm:"size:255;not null"`
	PlatformKey    string `gorm:"size:255;not null;index"`

	CurrencySymbolPosition *string `gorm:"size:16"`
	CurrencySymbolSpaces   *string `gorm:"size:16"`
	DecimalDigits          *string `gorm:"size:8"`
	DecimalSeparator       *string `gorm:"size:8"`
	Email                  *string `gorm:"size:255"`
	Phone                  *string `gorm:"size:64"`
	ThousandsSeparator     *string `gorm:"size:8"`
	Website                *string `gorm:"size:2048"`
}

// TableName specifies the table name for LocalInfoModel
func (LocalInfoModel) TableName() string { return "local_infos" }

// NewLocalInfoModel maps the domain local info to its row.
func NewLocalInfoModel(l *order.LocalInfo) *LocalInfoModel {
	m := &LocalInfoModel{
		CountryCode:    l.CountryCode,
		CurrencySymbol: l.CurrencySymbol,
		Platform:       l.Platform,
		PlatformKey:    l.PlatformKey,

		CurrencySymbolPosition: l.CurrencySymbolPosition,
		CurrencySymbolSpaces:   l.CurrencySymbolSpaces,
		DecimalDigits:          l.DecimalDigits,
		DecimalSeparator:       l.DecimalSeparator,
		Email:                  l.Email,
		Phone:                  l.Phone,
		ThousandsSeparator:     l.ThousandsSeparator,
		Website:                l.Website,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// ToDomain converts the local_infos row back to the domain entity.
func (m *LocalInfoModel) ToDomain() *order.LocalInfo {
	return &order.LocalInfo{
		BaseEntity:     m.BaseModel.ToDomain(),
		CountryCode:    m.CountryCode,
		CurrencySymbol: m.CurrencySymbol,
		Platform:       m.Platform,
		PlatformKey:    m.PlatformKey,

		CurrencySymbolPosition: m.CurrencySymbolPosition,
		CurrencySymbolSpaces:   m.CurrencySymbolSpaces,
		DecimalDigits:          m.DecimalDigits,
		DecimalSeparator:       m.DecimalSeparator,
		Email:                  m.Email,
		Phone:                  m.Phone,
		ThousandsSeparator:     m.ThousandsSeparator,
		Website:                m.Website,
	}
}

// PlatformRestaurantModel is the platform_restaurants table, one row per
// vendor on the platform.
type PlatformRestaurantModel struct {
	BaseModel

	PlatformID string `gorm:"size:255;not null;uniqueIndex"`
}

// TableName specifies the table name for PlatformRestaurantModel
func (PlatformRestaurantModel) TableName() string { return "platform_restaurants" }

// NewPlatformRestaurantModel maps the domain platform restaurant to its row.
func NewPlatformRestaurantModel(r *order.PlatformRestaurant) *PlatformRestaurantModel {
	m := &PlatformRestaurantModel{PlatformID: r.PlatformID}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}

// ToDomain converts the platform_restaurants row back to the domain entity.
func (m *PlatformRestaurantModel) ToDomain() *order.PlatformRestaurant {
	return &order.PlatformRestaurant{
		BaseEntity: m.BaseModel.ToDomain(),
		PlatformID: m.PlatformID,
	}
}

// DeliveryModel is the deliveries table with the address flattened in.
type DeliveryModel struct {
	BaseModel

	OrderID              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	ExpectedDeliveryTime *time.Time
	ExpressDelivery      bool
	RiderPickupTime      *time.Time

	AddressBuilding             *string `gorm:"size:255"`
	AddressCity                 *string `gorm:"size:255"`
	AddressCompany              *string `gorm:"size:255"`
	AddressDeliveryArea         *string `gorm:"size:255"`
	AddressDeliveryInstructions *string
	AddressDeliveryMainArea     *string `gorm:"size:255"`
	AddressEntrance             *string `gorm:"size:255"`
	AddressFlatNumber           *string `gorm:"size:64"`
	AddressFloor                *string `gorm:"size:64"`
	AddressIntercom             *string `gorm:"size:255"`
	AddressLatitude             *float64
	AddressLongitude            *float64
	AddressNumber               *string `gorm:"size:64"`
	AddressPostcode             *string `gorm:"size:32"`
	AddressStreet               *string `gorm:"size:512"`
}

// TableName specifies the table name for DeliveryModel
func (DeliveryModel) TableName() string { return "deliveries" }

// NewDeliveryModel maps the domain delivery to its row.
func NewDeliveryModel(d *order.Delivery, orderID uuid.UUID) *DeliveryModel {
	m := &DeliveryModel{
		OrderID:              orderID,
		ExpectedDeliveryTime: d.ExpectedDeliveryTime,
		ExpressDelivery:      d.ExpressDelivery,
		RiderPickupTime:      d.RiderPickupTime,

		AddressBuilding:             d.Address.Building,
		AddressCity:                 d.Address.City,
		AddressCompany:              d.Address.Company,
		AddressDeliveryArea:         d.Address.DeliveryArea,
		AddressDeliveryInstructions: d.Address.DeliveryInstructions,
		AddressDeliveryMainArea:     d.Address.DeliveryMainArea,
		AddressEntrance:             d.Address.Entrance,
		AddressFlatNumber:           d.Address.FlatNumber,
		AddressFloor:                d.Address.Floor,
		AddressIntercom:             d.Address.Intercom,
		AddressLatitude:             d.Address.Latitude,
		AddressLongitude:            d.Address.Longitude,
		AddressNumber:               d.Address.Number,
		AddressPostcode:             d.Address.Postcode,
		AddressStreet:               d.Address.Street,
	}
	m.FromDomainBaseEntity(d.BaseEntity)
	return m
}

// ToDomain converts the deliveries row back to the domain entity.
func (m *DeliveryModel) ToDomain() *order.Delivery {
	return &order.Delivery{
		BaseEntity:           m.BaseModel.ToDomain(),
		OrderID:              m.OrderID,
		ExpectedDeliveryTime: m.ExpectedDeliveryTime,
		ExpressDelivery:      m.ExpressDelivery,
		RiderPickupTime:      m.RiderPickupTime,
		Address: order.Address{
			Building:             m.AddressBuilding,
			City:                 m.AddressCity,
			Company:              m.AddressCompany,
			DeliveryArea:         m.AddressDeliveryArea,
			DeliveryInstructions: m.AddressDeliveryInstructions,
			DeliveryMainArea:     m.AddressDeliveryMainArea,
			Entrance:             m.AddressEntrance,
			FlatNumber:           m.AddressFlatNumber,
			Floor:                m.AddressFloor,
			Intercom:             m.AddressIntercom,
			Latitude:             m.AddressLatitude,
			Longitude:            m.AddressLongitude,
			Number:               m.AddressNumber,
			Postcode:             m.AddressPostcode,
			Street:               m.AddressStreet,
		},
	}
}

// PickupModel is the pickups table.
type PickupModel struct {
	BaseModel

	OrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PickupTime *time.Time
	PickupCode *string `gorm:"size:64"`
}

// TableName specifies the table name for PickupModel
func (PickupModel) TableName() string { return "pickups" }

// NewPickupModel maps the domain pickup to its row.
func NewPickupModel(p *order.Pickup, orderID uuid.UUID) *PickupModel {
	m := &PickupModel{
		OrderID:    orderID,
		PickupTime: p.PickupTime,
		PickupCode: p.PickupCode,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ToDomain converts the pickups row back to the domain entity.
func (m *PickupModel) ToDomain() *order.Pickup {
	return &order.Pickup{
		BaseEntity: m.BaseModel.ToDomain(),
		OrderID:    m.OrderID,
		PickupTime: m.PickupTime,
		PickupCode: m.PickupCode,
	}
}

// ProductModel is the products table.
type ProductModel struct {
	BaseModel

	OrderID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	PlatformID     *string          `gorm:"size:255"`
	CategoryName   *string          `gorm:"size:255"`
	Name           *string          `gorm:"size:512"`
	Description    *string
	PaidPrice      *decimal.Decimal `gorm:"type:numeric(14,4)"`
	UnitPrice      *decimal.Decimal `gorm:"type:numeric(14,4)"`
	Quantity       string           `gorm:"size:32;not null"`
	RemoteCode     *string          `gorm:"size:255"`
	Comment        *string
	VariationName  *string          `gorm:"size:512"`
	HalfHalf       bool
	Unavailability *string          `gorm:"size:64"`
}

// TableName specifies the table name for ProductModel
func (ProductModel) TableName() string { return "products" }

// NewProductModel maps the domain product to its row.
func NewProductModel(p *order.Product, orderID uuid.UUID) *ProductModel {
	m := &ProductModel{
		OrderID:        orderID,
		PlatformID:     p.PlatformID,
		CategoryName:   p.CategoryName,
		Name:           p.Name,
		Description:    p.Description,
		PaidPrice:      p.PaidPrice,
		UnitPrice:      p.UnitPrice,
		Quantity:       p.Quantity,
		RemoteCode:     p.RemoteCode,
		Comment:        p.Comment,
		VariationName:  p.VariationName,
		HalfHalf:       p.HalfHalf,
		Unavailability: unavailabilityColumn(p.Unavailability),
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ToDomain converts the products row back to the domain entity.
func (m *ProductModel) ToDomain() *order.Product {
	return &order.Product{
		BaseEntity:     m.BaseModel.ToDomain(),
		OrderID:        m.OrderID,
		PlatformID:     m.PlatformID,
		CategoryName:   m.CategoryName,
		Name:           m.Name,
		Description:    m.Description,
		PaidPrice:      m.PaidPrice,
		UnitPrice:      m.UnitPrice,
		Quantity:       m.Quantity,
		RemoteCode:     m.RemoteCode,
		Comment:        m.Comment,
		VariationName:  m.VariationName,
		HalfHalf:       m.HalfHalf,
		Unavailability: unavailabilityDomain(m.Unavailability),
	}
}

// ToppingModel is the toppings table. ParentID builds the topping tree;
// root toppings have a nil parent.
type ToppingModel struct {
	BaseModel

	ProductID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	ParentID       *uuid.UUID       `gorm:"type:uuid;index"`
	PlatformID     *string          `gorm:"size:255"`
	Name           string           `gorm:"size:512;not null"`
	Price          *decimal.Decimal `gorm:"type:numeric(14,4)"`
	Quantity       int              `gorm:"not null"`
	RemoteCode     *string          `gorm:"size:255"`
	Type           *string          `gorm:"size:32"`
	Unavailability *string          `gorm:"size:64"`
}

// TableName specifies the table name for ToppingModel
func (ToppingModel) TableName() string { return "toppings" }

// NewToppingModel maps one domain topping (without children) to its row.
func NewToppingModel(t *order.Topping, productID uuid.UUID, parentID *uuid.UUID) *ToppingModel {
	var typ *string
	if t.Type != nil {
		s := string(*t.Type)
		typ = &s
	}
	m := &ToppingModel{
		ProductID:      productID,
		ParentID:       parentID,
		PlatformID:     t.PlatformID,
		Name:           t.Name,
		Price:          t.Price,
		Quantity:       t.Quantity,
		RemoteCode:     t.RemoteCode,
		Type:           typ,
		Unavailability: unavailabilityColumn(t.Unavailability),
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// ToDomain converts the toppings row back to the domain entity, children
// excluded.
func (m *ToppingModel) ToDomain() *order.Topping {
	var typ *order.ToppingType
	if m.Type != nil {
		t := order.ToppingType(*m.Type)
		typ = &t
	}
	return &order.Topping{
		BaseEntity:     m.BaseModel.ToDomain(),
		ProductID:      m.ProductID,
		ParentID:       m.ParentID,
		PlatformID:     m.PlatformID,
		Name:           m.Name,
		Price:          m.Price,
		Quantity:       m.Quantity,
		RemoteCode:     m.RemoteCode,
		Type:           typ,
		Unavailability: unavailabilityDomain(m.Unavailability),
	}
}

// DiscountModel is the discounts table. Exactly one of the three owner
// columns is set.
type DiscountModel struct {
	BaseModel

	OrderID   *uuid.UUID `gorm:"type:uuid;index"`
	ProductID *uuid.UUID `gorm:"type:uuid;index"`
	ToppingID *uuid.UUID `gorm:"type:uuid;index"`

	Name   *string          `gorm:"size:512"`
	Amount *decimal.Decimal `gorm:"type:numeric(14,4)"`
	Type   *string          `gorm:"size:255"`
}

// TableName specifies the table name for DiscountModel
func (DiscountModel) TableName() string { return "discounts" }

// NewDiscountModel maps the domain discount to its row.
func NewDiscountModel(d *order.Discount) *DiscountModel {
	m := &DiscountModel{
		OrderID:   d.OrderID,
		ProductID: d.ProductID,
		ToppingID: d.ToppingID,
		Name:      d.Name,
		Amount:    d.Amount,
		Type:      d.Type,
	}
	m.FromDomainBaseEntity(d.BaseEntity)
	return m
}

// ToDomain converts the discounts row back to the domain entity.
func (m *DiscountModel) ToDomain() *order.Discount {
	return &order.Discount{
		BaseEntity: m.BaseModel.ToDomain(),
		OrderID:    m.OrderID,
		ProductID:  m.ProductID,
		ToppingID:  m.ToppingID,
		Name:       m.Name,
		Amount:     m.Amount,
		Type:       m.Type,
	}
}

// SponsorshipModel is the sponsorships table.
type SponsorshipModel struct {
	BaseModel

	DiscountID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Sponsor    string           `gorm:"size:32;not null"`
	Amount     *decimal.Decimal `gorm:"type:numeric(14,4)"`
}

// TableName specifies the table name for SponsorshipModel
func (SponsorshipModel) TableName() string { return "sponsorships" }

// NewSponsorshipModel maps the domain sponsorship to its row.
func NewSponsorshipModel(s *order.Sponsorship, discountID uuid.UUID) *SponsorshipModel {
	m := &SponsorshipModel{
		DiscountID: discountID,
		Sponsor:    string(s.Sponsor),
		Amount:     s.Amount,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// ToDomain converts the sponsorships row back to the domain entity.
func (m *SponsorshipModel) ToDomain() *order.Sponsorship {
	return &order.Sponsorship{
		BaseEntity: m.BaseModel.ToDomain(),
		DiscountID: m.DiscountID,
		Sponsor:    order.SponsorType(m.Sponsor),
		Amount:     m.Amount,
	}
}

// DeliveryFeeModel is the delivery_fees table.
type DeliveryFeeModel struct {
	BaseModel

	OrderID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name    *string          `gorm:"size:255"`
	Value   *decimal.Decimal `gorm:"type:numeric(14,4)"`
}

// TableName specifies the table name for DeliveryFeeModel
func (DeliveryFeeModel) TableName() string { return "delivery_fees" }

// NewDeliveryFeeModel maps the domain delivery fee to its row.
func NewDeliveryFeeModel(f *order.DeliveryFee, orderID uuid.UUID) *DeliveryFeeModel {
	m := &DeliveryFeeModel{
		OrderID: orderID,
		Name:    f.Name,
		Value:   f.Value,
	}
	m.FromDomainBaseEntity(f.BaseEntity)
	return m
}

// ToDomain converts the delivery_fees row back to the domain entity.
func (m *DeliveryFeeModel) ToDomain() *order.DeliveryFee {
	return &order.DeliveryFee{
		BaseEntity: m.BaseModel.ToDomain(),
		OrderID:    m.OrderID,
		Name:       m.Name,
		Value:      m.Value,
	}
}

// AllModels lists every persistence model, in dependency order. Used by the
// sqlite-backed tests for AutoMigrate.
func AllModels() []any {
	return []any{
		&CustomerModel{},
		&PaymentModel{},
		&PriceModel{},
		&LocalInfoModel{},
		&PlatformRestaurantModel{},
		&OrderModel{},
		&DeliveryModel{},
		&PickupModel{},
		&ProductModel{},
		&ToppingModel{},
		&DiscountModel{},
		&SponsorshipModel{},
		&DeliveryFeeModel{},
	}
}

func unavailabilityColumn(u *order.UnavailabilityHandling) *string {
	if u == nil {
		return nil
	}
	s := string(*u)
	return &s
}

func unavailabilityDomain(s *string) *order.UnavailabilityHandling {
	if s == nil {
		return nil
	}
	u := order.UnavailabilityHandling(*s)
	return &u
}

// MarshalParameters serializes a parameter map for the orders.parameters
// jsonb column.
func MarshalParameters(params map[string]string) string {
	return marshalJSON(params)
}

// marshalJSON serializes flags, parameter maps and interval matrices for
// jsonb columns. The input types cannot fail to marshal.
func marshalJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalJSON[T any](s string, out *T) {
	if s == "" {
		return
	}
	// Corrupt column content leaves the zero value in place.
	_ = json.Unmarshal([]byte(s), out)
}
