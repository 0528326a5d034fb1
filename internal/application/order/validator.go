package order

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldError names one offending payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult accumulates every discovered problem; validation never
// short-circuits on the first failure.
type ValidationResult struct {
	Valid  bool         `json:"isValid"`
	Errors []FieldError `json:"errors"`
}

// Validator checks a raw order payload against the platform contract. It
// never returns an error: all findings land in the result list.
type Validator struct {
	checks *validator.Validate
}

// NewValidator creates a payload validator.
func NewValidator() *Validator {
	return &Validator{checks: validator.New()}
}

// Validate runs all contract rules over the raw payload.
func (v *Validator) Validate(raw map[string]any) ValidationResult {
	run := &validationRun{checks: v.checks}

	run.requireString(raw, "token", 512)
	run.requireString(raw, "code", 255)
	run.requireString(raw, "createdAt", 0)
	run.requireString(raw, "expiryDate", 0)
	run.require(raw, "expeditionType")

	if rawPresent(raw, "expeditionType") {
		if s, ok := rawString(raw, "expeditionType"); !ok || (s != "pickup" && s != "delivery") {
			run.add("expeditionType", `Must be either "pickup" or "delivery"`, raw["expeditionType"])
		}
	}

	run.checkBool(raw, "test")
	run.checkBool(raw, "preOrder")

	run.validateCustomer(raw)
	run.validateLocalInfo(raw)
	run.validatePlatformRestaurant(raw)
	run.validatePayment(raw)
	run.validatePrice(raw)
	run.validateProducts(raw)

	switch expedition, _ := rawString(raw, "expeditionType"); expedition {
	case "delivery":
		run.validateDelivery(raw)
	case "pickup":
		run.validatePickup(raw)
	}

	run.checkDate(raw, "createdAt", "createdAt")
	run.checkDate(raw, "expiryDate", "expiryDate")

	return ValidationResult{
		Valid:  len(run.errors) == 0,
		Errors: run.errors,
	}
}

// validationRun holds the error accumulator for one Validate call so the
// Validator itself stays safe for concurrent use.
type validationRun struct {
	checks *validator.Validate
	errors []FieldError
}

func (r *validationRun) add(field, message string, value any) {
	r.errors = append(r.errors, FieldError{Field: field, Message: message, Value: value})
}

func (r *validationRun) require(m map[string]any, field string) bool {
	if !rawPresent(m, field) {
		r.add(field, fmt.Sprintf("%s is required", field), nil)
		return false
	}
	return true
}

func (r *validationRun) requireString(m map[string]any, field string, maxLen int) {
	if !r.require(m, field) {
		return
	}
	s, ok := rawString(m, field)
	if !ok {
		r.add(field, fmt.Sprintf("%s must be of type string", field), fmt.Sprintf("%T", m[field]))
		return
	}
	if maxLen > 0 {
		if err := r.checks.Var(s, fmt.Sprintf("max=%d", maxLen)); err != nil {
			r.add(field, fmt.Sprintf("%s must not exceed %d characters", field, maxLen), len(s))
		}
	}
}

func (r *validationRun) checkBool(m map[string]any, field string) {
	if v, ok := m[field]; ok && v != nil {
		if _, isBool := v.(bool); !isBool {
			r.add(field, fmt.Sprintf("%s must be a boolean", field), fmt.Sprintf("%T", v))
		}
	}
}

func (r *validationRun) checkNumericString(v any, field string) {
	if v == nil {
		return
	}
	if s, isStr := v.(string); isStr && s == "" {
		return
	}
	if _, ok := parseAmount(v); !ok {
		r.add(field, fmt.Sprintf("%s must be a valid numeric string", field), v)
	}
}

func (r *validationRun) checkDate(m map[string]any, key, field string) {
	s, ok := rawString(m, key)
	if !ok || s == "" {
		return
	}
	if _, ok := parseTimestamp(s); !ok {
		r.add(field, fmt.Sprintf("%s must be a valid date string", field), s)
	}
}

func (r *validationRun) validateCustomer(raw map[string]any) {
	if raw["customer"] == nil {
		r.add("customer", "Customer information is required", nil)
		return
	}
	customer := rawMap(raw, "customer")
	if customer == nil {
		r.add("customer", "Customer information is required", nil)
		return
	}
	if v, ok := customer["email"]; ok && v != nil {
		if _, isStr := v.(string); !isStr {
			r.add("customer.email", "Customer email must be a string", nil)
		}
	}
}

func (r *validationRun) validateLocalInfo(raw map[string]any) {
	localInfo := rawMap(raw, "localInfo")
	if localInfo == nil {
		r.add("localInfo", "Local info is required", nil)
		return
	}

	r.requireString(localInfo, "countryCode", 0)
	if code, ok := rawString(localInfo, "countryCode"); ok && code != "" {
		if err := r.checks.Var(code, "len=2"); err != nil {
			r.add("localInfo.countryCode", "Country code must be 2 characters", nil)
		}
	}

	r.requireString(localInfo, "currencySymbol", 0)
	r.requireString(localInfo, "platform", 0)
	r.requireString(localInfo, "platformKey", 0)
}

func (r *validationRun) validatePlatformRestaurant(raw map[string]any) {
	pr := rawMap(raw, "platformRestaurant")
	if pr == nil {
		r.add("platformRestaurant", "Platform restaurant info is required", nil)
		return
	}
	r.requireString(pr, "id", 0)
}

func (r *validationRun) validatePayment(raw map[string]any) {
	payment := rawMap(raw, "payment")
	if payment == nil {
		r.add("payment", "Payment info is required", nil)
		return
	}

	if status, _ := rawString(payment, "status"); status != "pending" && status != "paid" {
		r.add("payment.status", `Payment status must be "pending" or "paid"`, payment["status"])
	}
	r.requireString(payment, "type", 0)
}

func (r *validationRun) validatePrice(raw map[string]any) {
	price := rawMap(raw, "price")
	if price == nil {
		r.add("price", "Price info is required", nil)
		return
	}

	r.requireString(price, "grandTotal", 0)
	r.requireString(price, "totalNet", 0)
	r.requireString(price, "vatTotal", 0)

	r.checkNumericString(price["grandTotal"], "price.grandTotal")
	r.checkNumericString(price["totalNet"], "price.totalNet")
	r.checkNumericString(price["vatTotal"], "price.vatTotal")
}

func (r *validationRun) validateProducts(raw map[string]any) {
	products, ok := rawSlice(raw, "products")
	if !ok {
		r.add("products", "Products must be an array", nil)
		return
	}

	for i, p := range products {
		path := fmt.Sprintf("products[%d]", i)
		product, isMap := p.(map[string]any)
		if p == nil || !isMap {
			r.add(path, "Product cannot be null", nil)
			continue
		}

		if v, ok := product["quantity"]; ok {
			r.checkNumericString(v, path+".quantity")
		}
		if v, ok := product["paidPrice"]; ok {
			r.checkNumericString(v, path+".paidPrice")
		}
		if v, ok := product["unitPrice"]; ok {
			r.checkNumericString(v, path+".unitPrice")
		}
	}
}

func (r *validationRun) validateDelivery(raw map[string]any) {
	delivery := rawMap(raw, "delivery")
	if delivery == nil {
		r.add("delivery", "Delivery info is required for delivery orders", nil)
		return
	}

	// Address may be absent entirely for own-delivery orders.
	address := rawMap(delivery, "address")
	if address == nil {
		return
	}

	if lat, ok := rawFloat(address, "latitude"); ok {
		if err := r.checks.Var(lat, "gte=-90,lte=90"); err != nil {
			r.add("delivery.address.latitude", "Latitude must be between -90 and 90", lat)
		}
	}
	if lng, ok := rawFloat(address, "longitude"); ok {
		if err := r.checks.Var(lng, "gte=-180,lte=180"); err != nil {
			r.add("delivery.address.longitude", "Longitude must be between -180 and 180", lng)
		}
	}
}

func (r *validationRun) validatePickup(raw map[string]any) {
	pickup := rawMap(raw, "pickup")
	if pickup == nil {
		return
	}
	r.checkDate(pickup, "pickupTime", "pickup.pickupTime")
}
