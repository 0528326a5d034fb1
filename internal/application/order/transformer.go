package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/order"
	"github.com/posbridge/backend/internal/domain/shared"
)

// Transform failures. Only structural problems abort the transform; bad
// monetary and date values degrade to nil with a warning instead.
var (
	ErrMissingCustomer       = errors.New("order transform: customer information is required")
	ErrMissingPayment        = errors.New("order transform: payment information is required")
	ErrMissingPrice          = errors.New("order transform: price information is required")
	ErrMissingLocalInfo      = errors.New("order transform: local info is required")
	ErrInvalidExpeditionType = errors.New("order transform: invalid expedition type")
)

// Transformer maps the raw webhook payload into the order graph. It is a
// second layer of defense after the Validator: the four hard-required nested
// objects are re-checked here because persistence cannot proceed without them.
type Transformer struct {
	logger *zap.Logger
}

// NewTransformer creates a Transformer.
func NewTransformer(logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{logger: logger}
}

// Transform produces the full order graph ready for the repository.
func (t *Transformer) Transform(raw map[string]any) (*order.Order, error) {
	expedition, err := t.expeditionType(raw)
	if err != nil {
		return nil, err
	}

	customer, err := t.customer(rawMap(raw, "customer"))
	if err != nil {
		return nil, err
	}
	payment, err := t.payment(rawMap(raw, "payment"))
	if err != nil {
		return nil, err
	}
	price, err := t.price(rawMap(raw, "price"))
	if err != nil {
		return nil, err
	}
	localInfo, err := t.localInfo(rawMap(raw, "localInfo"))
	if err != nil {
		return nil, err
	}

	token, _ := rawString(raw, "token")
	code, _ := rawString(raw, "code")
	test, _ := rawBool(raw, "test")
	preOrder, _ := rawBool(raw, "preOrder")
	taxID, _ := rawString(raw, "corporateTaxId")

	o := &order.Order{
		BaseEntity:     shared.NewBaseEntity(),
		Token:          token,
		Code:           code,
		ShortCode:      optString(raw, "shortCode"),
		PlacedAt:       t.timestampOrNow(raw, "createdAt"),
		ExpiryDate:     t.timestampOrNow(raw, "expiryDate"),
		ExpeditionType: expedition,
		Test:           test,
		PreOrder:       preOrder,
		CorporateTaxID: taxID,

		Customer:           customer,
		Payment:            payment,
		Price:              price,
		LocalInfo:          localInfo,
		PlatformRestaurant: t.platformRestaurant(rawMap(raw, "platformRestaurant")),
	}

	if comments := rawMap(raw, "comments"); comments != nil {
		o.CustomerComment = optString(comments, "customerComment")
	}
	if invoicing := rawMap(raw, "invoicingInformation"); invoicing != nil {
		o.InvoicingCarrierType = optString(invoicing, "carrierType")
		o.InvoicingCarrierValue = optString(invoicing, "carrierValue")
	}

	o.Parameters = t.parameters(rawMap(raw, "extraParameters"))
	t.prepTimeAdjustments(raw, o)
	o.Callbacks = t.callbackURLs(rawMap(raw, "callbackUrls"))

	if expedition == order.ExpeditionDelivery {
		if delivery := rawMap(raw, "delivery"); delivery != nil {
			o.Delivery = t.delivery(delivery)
		}
	}
	if expedition == order.ExpeditionPickup {
		if pickup := rawMap(raw, "pickup"); pickup != nil {
			o.Pickup = t.pickup(pickup)
		}
	}

	if products, ok := rawSlice(raw, "products"); ok {
		for i, p := range products {
			if pm, isMap := p.(map[string]any); isMap {
				o.Products = append(o.Products, t.product(pm, fmt.Sprintf("products[%d]", i)))
			}
		}
	}
	if discounts, ok := rawSlice(raw, "discounts"); ok {
		o.Discounts = t.discounts(discounts, "discounts")
	}
	if price := rawMap(raw, "price"); price != nil {
		if fees, ok := rawSlice(price, "deliveryFees"); ok {
			for i, f := range fees {
				if fm, isMap := f.(map[string]any); isMap {
					o.DeliveryFees = append(o.DeliveryFees, order.DeliveryFee{
						BaseEntity: shared.NewBaseEntity(),
						Name:       optString(fm, "name"),
						Value:      t.amount(fm["value"], fmt.Sprintf("price.deliveryFees[%d].value", i)),
					})
				}
			}
		}
	}

	return o, nil
}

func (t *Transformer) expeditionType(raw map[string]any) (order.ExpeditionType, error) {
	s, _ := rawString(raw, "expeditionType")
	expedition := order.ExpeditionType(strings.ToLower(s))
	if !expedition.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidExpeditionType, s)
	}
	return expedition, nil
}

func (t *Transformer) customer(m map[string]any) (*order.Customer, error) {
	if m == nil {
		return nil, ErrMissingCustomer
	}
	return &order.Customer{
		BaseEntity:             shared.NewBaseEntity(),
		Email:                  optString(m, "email"),
		FirstName:              optString(m, "firstName"),
		LastName:               optString(m, "lastName"),
		MobilePhone:            optString(m, "mobilePhone"),
		MobilePhoneCountryCode: optString(m, "mobilePhoneCountryCode"),
		Code:                   optString(m, "code"),
		PlatformID:             optString(m, "platformId"),
		Flags:                  t.flags(m["flags"]),
	}, nil
}

// flags accepts a single string or a sequence of strings, normalizing to a
// sequence. Anything else is dropped.
func (t *Transformer) flags(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (t *Transformer) payment(m map[string]any) (*order.Payment, error) {
	if m == nil {
		return nil, ErrMissingPayment
	}

	typ, _ := rawString(m, "type")
	if typ == "" {
		typ = "unknown"
	}

	return &order.Payment{
		BaseEntity:          shared.NewBaseEntity(),
		Status:              t.paymentStatus(m),
		Type:                typ,
		RemoteCode:          optString(m, "remoteCode"),
		RequiredMoneyChange: optString(m, "requiredMoneyChange"),
		VATID:               optString(m, "vatId"),
		VATName:             optString(m, "vatName"),
	}, nil
}

func (t *Transformer) paymentStatus(m map[string]any) order.PaymentStatus {
	s, _ := rawString(m, "status")
	if strings.ToLower(s) == "paid" {
		return order.PaymentPaid
	}
	return order.PaymentPending
}

func (t *Transformer) price(m map[string]any) (*order.Price, error) {
	if m == nil {
		return nil, ErrMissingPrice
	}

	vatVisible := true
	if b, ok := rawBool(m, "vatVisible"); ok {
		vatVisible = b
	}

	totalNet := m["totalNet"]
	if totalNet == nil {
		// subTotal is the deprecated predecessor of totalNet.
		totalNet = m["subTotal"]
	}

	return &order.Price{
		BaseEntity: shared.NewBaseEntity(),
		GrandTotal: t.amount(m["grandTotal"], "price.grandTotal"),
		TotalNet:   t.amount(totalNet, "price.totalNet"),
		SubTotal:   t.amount(m["subTotal"], "price.subTotal"),
		VATTotal:   t.amount(m["vatTotal"], "price.vatTotal"),
		VATVisible: vatVisible,

		MinimumDeliveryValue:             t.amount(m["minimumDeliveryValue"], "price.minimumDeliveryValue"),
		DifferenceToMinimumDeliveryValue: t.amount(m["differenceToMinimumDeliveryValue"], "price.differenceToMinimumDeliveryValue"),

		PayRestaurant:       t.amount(m["payRestaurant"], "price.payRestaurant"),
		RiderTip:            t.amount(m["riderTip"], "price.riderTip"),
		CollectFromCustomer: t.amount(m["collectFromCustomer"], "price.collectFromCustomer"),

		Commission:          t.amount(m["comission"], "price.comission"),
		ContainerCharge:     t.amount(m["containerCharge"], "price.containerCharge"),
		DeliveryFee:         t.amount(m["deliveryFee"], "price.deliveryFee"),
		DiscountAmountTotal: t.amount(m["discountAmountTotal"], "price.discountAmountTotal"),
		DeliveryFeeDiscount: t.amount(m["deliveryFeeDiscount"], "price.deliveryFeeDiscount"),

		ServiceFeePercent: t.amount(m["serviceFeePercent"], "price.serviceFeePercent"),
		ServiceFeeTotal:   t.amount(m["serviceFeeTotal"], "price.serviceFeeTotal"),
		ServiceTax:        t.amount(m["serviceTax"], "price.serviceTax"),
		ServiceTaxValue:   t.amount(m["serviceTaxValue"], "price.serviceTaxValue"),
	}, nil
}

func (t *Transformer) localInfo(m map[string]any) (*order.LocalInfo, error) {
	if m == nil {
		return nil, ErrMissingLocalInfo
	}

	countryCode, _ := rawString(m, "countryCode")
	currencySymbol, _ := rawString(m, "currencySymbol")
	platform, _ := rawString(m, "platform")
	platformKey, _ := rawString(m, "platformKey")

	return &order.LocalInfo{
		BaseEntity:     shared.NewBaseEntity(),
		CountryCode:    countryCode,
		CurrencySymbol: currencySymbol,
		Platform:       platform,
		PlatformKey:    platformKey,

		CurrencySymbolPosition: optString(m, "currencySymbolPosition"),
		CurrencySymbolSpaces:   optString(m, "currencySymbolSpaces"),
		DecimalDigits:          optString(m, "decimalDigits"),
		DecimalSeparator:       optString(m, "decimalSeparator"),
		Email:                  optString(m, "email"),
		Phone:                  optString(m, "phone"),
		ThousandsSeparator:     optString(m, "thousandsSeparator"),
		Website:                optString(m, "website"),
	}, nil
}

func (t *Transformer) platformRestaurant(m map[string]any) *order.PlatformRestaurant {
	id, _ := rawString(m, "id")
	return &order.PlatformRestaurant{
		BaseEntity: shared.NewBaseEntity(),
		PlatformID: id,
	}
}

func (t *Transformer) parameters(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	params := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			params[k] = s
		}
	}
	return params
}

func (t *Transformer) prepTimeAdjustments(raw map[string]any, o *order.Order) {
	adjustments := rawMap(raw, "PreparationTimeAdjustments")

	// The schema requires a max pickup timestamp even when the platform
	// sends none: default to one hour out.
	o.MaxPickupTimestamp = time.Now().Add(time.Hour)
	if adjustments == nil {
		return
	}

	if s, ok := rawString(adjustments, "maxPickUpTimestamp"); ok {
		if ts := t.timestamp(s, "PreparationTimeAdjustments.maxPickUpTimestamp"); ts != nil {
			o.MaxPickupTimestamp = *ts
		}
	}
	if s, ok := rawString(adjustments, "minPickUpTimestamp"); ok {
		o.MinPickupTimestamp = t.timestamp(s, "PreparationTimeAdjustments.minPickUpTimestamp")
	}

	if intervals, ok := rawSlice(adjustments, "preparationTimeChangeIntervalsInMinutes"); ok {
		for _, interval := range intervals {
			pair, isSlice := interval.([]any)
			if !isSlice {
				continue
			}
			minutes := make([]int, 0, len(pair))
			for _, v := range pair {
				if f, isNum := v.(float64); isNum {
					minutes = append(minutes, int(f))
				}
			}
			o.PreparationIntervals = append(o.PreparationIntervals, minutes)
		}
	}
}

func (t *Transformer) callbackURLs(m map[string]any) order.CallbackURLs {
	if m == nil {
		return order.CallbackURLs{}
	}
	get := func(key string) string {
		s, _ := rawString(m, key)
		return s
	}
	return order.CallbackURLs{
		OrderAccepted:                  get("orderAcceptedUrl"),
		OrderRejected:                  get("orderRejectedUrl"),
		OrderProductModification:       get("orderProductModificationUrl"),
		OrderPickedUp:                  get("orderPickedUpUrl"),
		OrderPrepared:                  get("orderPreparedUrl"),
		OrderPreparationTimeAdjustment: get("orderPreparationTimeAdjustmentUrl"),
	}
}

func (t *Transformer) delivery(m map[string]any) *order.Delivery {
	express, _ := rawBool(m, "expressDelivery")

	d := &order.Delivery{
		BaseEntity:      shared.NewBaseEntity(),
		ExpressDelivery: express,
	}
	if s, ok := rawString(m, "expectedDeliveryTime"); ok {
		d.ExpectedDeliveryTime = t.timestamp(s, "delivery.expectedDeliveryTime")
	}
	if s, ok := rawString(m, "riderPickupTime"); ok {
		d.RiderPickupTime = t.timestamp(s, "delivery.riderPickupTime")
	}

	if address := rawMap(m, "address"); address != nil {
		d.Address = order.Address{
			Building:             optString(address, "building"),
			City:                 optString(address, "city"),
			Company:              optString(address, "company"),
			DeliveryArea:         optString(address, "deliveryArea"),
			DeliveryInstructions: optString(address, "deliveryInstructions"),
			DeliveryMainArea:     optString(address, "deliveryMainArea"),
			Entrance:             optString(address, "entrance"),
			FlatNumber:           optString(address, "flatNumber"),
			Floor:                optString(address, "floor"),
			Intercom:             optString(address, "intercom"),
			Number:               optString(address, "number"),
			Postcode:             optString(address, "postcode"),
			Street:               optString(address, "street"),
		}
		if lat, ok := rawFloat(address, "latitude"); ok {
			d.Address.Latitude = &lat
		}
		if lng, ok := rawFloat(address, "longitude"); ok {
			d.Address.Longitude = &lng
		}
	}

	return d
}

func (t *Transformer) pickup(m map[string]any) *order.Pickup {
	p := &order.Pickup{
		BaseEntity: shared.NewBaseEntity(),
		PickupCode: optString(m, "pickupCode"),
	}
	if s, ok := rawString(m, "pickupTime"); ok {
		p.PickupTime = t.timestamp(s, "pickup.pickupTime")
	}
	return p
}

func (t *Transformer) product(m map[string]any, path string) order.Product {
	halfHalf, _ := rawBool(m, "halfHalf")

	p := order.Product{
		BaseEntity:     shared.NewBaseEntity(),
		PlatformID:     optString(m, "id"),
		CategoryName:   optString(m, "categoryName"),
		Name:           optString(m, "name"),
		Description:    optString(m, "description"),
		PaidPrice:      t.amount(m["paidPrice"], path+".paidPrice"),
		UnitPrice:      t.amount(m["unitPrice"], path+".unitPrice"),
		Quantity:       t.quantityString(m["quantity"]),
		RemoteCode:     optString(m, "remoteCode"),
		Comment:        optString(m, "comment"),
		HalfHalf:       halfHalf,
		Unavailability: t.unavailabilityHandling(m["itemUnavailabilityHandling"]),
	}

	if variation := rawMap(m, "variation"); variation != nil {
		p.VariationName = optString(variation, "name")
	}

	if toppings, ok := rawSlice(m, "selectedToppings"); ok {
		p.Toppings = t.toppings(toppings, path+".selectedToppings")
	}
	if discounts, ok := rawSlice(m, "discounts"); ok {
		p.Discounts = t.discounts(discounts, path+".discounts")
	}

	return p
}

// quantityString keeps the platform quantity as a string but defaults to "1"
// when absent, matching the schema default.
func (t *Transformer) quantityString(v any) string {
	switch val := v.(type) {
	case string:
		if val != "" {
			return val
		}
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return "1"
}

func (t *Transformer) toppings(items []any, path string) []order.Topping {
	var out []order.Topping
	for i, item := range items {
		m, isMap := item.(map[string]any)
		if !isMap {
			continue
		}
		itemPath := fmt.Sprintf("%s[%d]", path, i)

		name, _ := rawString(m, "name")
		quantity := 1
		if f, ok := rawFloat(m, "quantity"); ok && f > 0 {
			quantity = int(f)
		}

		topping := order.Topping{
			BaseEntity:     shared.NewBaseEntity(),
			PlatformID:     optString(m, "id"),
			Name:           name,
			Price:          t.amount(m["price"], itemPath+".price"),
			Quantity:       quantity,
			RemoteCode:     optString(m, "remoteCode"),
			Type:           t.toppingType(m["type"]),
			Unavailability: t.unavailabilityHandling(m["itemUnavailabilityHandling"]),
		}

		if children, ok := rawSlice(m, "children"); ok {
			topping.Children = t.toppings(children, itemPath+".children")
		}
		if discounts, ok := rawSlice(m, "discounts"); ok {
			topping.Discounts = t.discounts(discounts, itemPath+".discounts")
		}

		out = append(out, topping)
	}
	return out
}

func (t *Transformer) discounts(items []any, path string) []order.Discount {
	var out []order.Discount
	for i, item := range items {
		m, isMap := item.(map[string]any)
		if !isMap {
			continue
		}
		itemPath := fmt.Sprintf("%s[%d]", path, i)

		discount := order.Discount{
			BaseEntity: shared.NewBaseEntity(),
			Name:       optString(m, "name"),
			Amount:     t.amount(m["amount"], itemPath+".amount"),
			Type:       optString(m, "type"),
		}

		if sponsorships, ok := rawSlice(m, "sponsorships"); ok {
			for j, s := range sponsorships {
				sm, isMap := s.(map[string]any)
				if !isMap {
					continue
				}
				discount.Sponsorships = append(discount.Sponsorships, order.Sponsorship{
					BaseEntity: shared.NewBaseEntity(),
					Sponsor:    t.sponsorType(sm["sponsor"]),
					Amount:     t.amount(sm["amount"], fmt.Sprintf("%s.sponsorships[%d].amount", itemPath, j)),
				})
			}
		}

		out = append(out, discount)
	}
	return out
}

func (t *Transformer) unavailabilityHandling(v any) *order.UnavailabilityHandling {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	handling := order.UnavailabilityHandling(strings.ToUpper(s))
	switch handling {
	case order.UnavailabilityRemove, order.UnavailabilityReduceQuantity,
		order.UnavailabilityCallAndReplace, order.UnavailabilityCancelOrder:
		return &handling
	}
	return nil
}

func (t *Transformer) toppingType(v any) *order.ToppingType {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	typ := order.ToppingType(strings.ToUpper(s))
	switch typ {
	case order.ToppingProduct, order.ToppingVariant, order.ToppingExtra:
		return &typ
	}
	return nil
}

// sponsorType falls back to PLATFORM for unrecognized sponsors.
func (t *Transformer) sponsorType(v any) order.SponsorType {
	s, _ := v.(string)
	sponsor := order.SponsorType(strings.ToUpper(s))
	switch sponsor {
	case order.SponsorPlatform, order.SponsorVendor, order.SponsorThirdParty:
		return sponsor
	}
	return order.SponsorPlatform
}

// amount parses a monetary or quantity value, degrading to nil with a
// warning when unparsable. Partial data beats rejecting the whole order.
func (t *Transformer) amount(v any, field string) *decimal.Decimal {
	if v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil
	}
	d, ok := parseAmount(v)
	if !ok {
		t.logger.Warn("Unparsable amount, storing null",
			zap.String("field", field),
			zap.Any("value", v))
		return nil
	}
	return &d
}

// timestamp parses an optional platform timestamp, nil on failure.
func (t *Transformer) timestamp(s string, field string) *time.Time {
	if s == "" {
		return nil
	}
	ts, ok := parseTimestamp(s)
	if !ok {
		t.logger.Warn("Unparsable timestamp, storing null",
			zap.String("field", field),
			zap.String("value", s))
		return nil
	}
	return &ts
}

// timestampOrNow is for the schema-required timestamps: absent or malformed
// values default to now rather than nil.
func (t *Transformer) timestampOrNow(m map[string]any, key string) time.Time {
	if s, ok := rawString(m, key); ok {
		if ts, parsed := parseTimestamp(s); parsed {
			return ts
		}
		t.logger.Warn("Unparsable timestamp, defaulting to now",
			zap.String("field", key),
			zap.String("value", s))
	}
	return time.Now()
}
