package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apporder "github.com/posbridge/backend/internal/application/order"
	"github.com/posbridge/backend/internal/domain/order"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

// OrderHandler exposes the platform webhook surface: inbound order ingestion,
// the two status-update paths, the prepared notification, and a read-back
// endpoint for the dashboard.
type OrderHandler struct {
	BaseHandler
	orders *apporder.Service
	status *apporder.StatusService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *apporder.Service, status *apporder.StatusService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{
		orders: orders,
		status: status,
		logger: logger,
	}
}

// RegisterRoutes registers order routes. Paths mirror the delivery-platform
// webhook contract, so they stay exactly as the platform dials them.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/order/:remoteId", h.Ingest)
	rg.POST("/remoteId/:remoteId/remoteOrder/:remoteOrderId/posOrderStatus", h.UpdatePOSStatus)
	rg.PUT("/delivery-hero/order/status/:orderToken", h.UpdateStatus)
	rg.POST("/delivery-hero/orders/:orderToken/preparation-completed", h.MarkPrepared)
	rg.GET("/orders/:orderToken", h.GetOrder)
}

// IngestResponse is the acknowledgment returned to the platform for a new
// order. RemoteOrderID is our identifier for the order, echoed back so the
// platform can reference it in later status webhooks.
type IngestResponse struct {
	Success       bool                   `json:"success"`
	RemoteOrderID string                 `json:"remoteOrderId"`
	Message       string                 `json:"message"`
	Data          *apporder.IngestResult `json:"data"`
}

// Ingest handles POST /order/:remoteId — an inbound new-order webhook.
func (h *OrderHandler) Ingest(c *gin.Context) {
	remoteID := c.Param("remoteId")

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body must be a JSON object")
		return
	}

	result, err := h.orders.Ingest(c.Request.Context(), remoteID, raw)
	if err != nil {
		var verr *apporder.ValidationError
		if errors.As(err, &verr) {
			details := make([]dto.ValidationDetail, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				details = append(details, dto.ValidationDetail{Field: fe.Field, Message: fe.Message})
			}
			h.ValidationError(c, details)
			return
		}
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, IngestResponse{
		Success:       true,
		RemoteOrderID: result.ID.String(),
		Message:       "Order received",
		Data:          result,
	})
}

// posStatusRequest is the platform-side status note body.
type posStatusRequest struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// UpdatePOSStatus handles the platform-specific POS status note. The order is
// matched by token, code, or short code; the note lands in the order's
// parameter map and never touches the primary status.
func (h *OrderHandler) UpdatePOSStatus(c *gin.Context) {
	reference := c.Param("remoteOrderId")

	var req posStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body must be a JSON object")
		return
	}
	if req.Status == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "status is required")
		return
	}

	result, err := h.status.UpdatePOSStatus(c.Request.Context(), reference, req.Status, req.Timestamp)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// UpdateStatus handles PUT /delivery-hero/order/status/:orderToken — an
// operator-driven status change. The body is passed through verbatim to the
// platform callback for statuses that require one.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	token := c.Param("orderToken")

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body must be a JSON object")
		return
	}

	keyword, _ := body["status"].(string)
	if keyword == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "status is required")
		return
	}

	result, err := h.status.UpdateStatus(c.Request.Context(), token, keyword, body)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// MarkPrepared handles the preparation-completed notification. Precondition
// failures (not a delivery order, no prepared callback URL) are client
// errors; an unreachable platform is not — the local write already happened.
func (h *OrderHandler) MarkPrepared(c *gin.Context) {
	token := c.Param("orderToken")

	result, err := h.status.MarkPrepared(c.Request.Context(), token)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// OrderResponse is the dashboard read-back shape for a stored order,
// including the full product, topping and discount graph.
type OrderResponse struct {
	ID             string                `json:"id"`
	Token          string                `json:"token"`
	Code           string                `json:"code"`
	ShortCode      *string               `json:"shortCode,omitempty"`
	Status         string                `json:"status"`
	ExpeditionType string                `json:"expeditionType"`
	Test           bool                  `json:"test"`
	PreOrder       bool                  `json:"preOrder"`
	PlacedAt       string                `json:"placedAt"`
	ExpiryDate     string                `json:"expiryDate"`
	CustomerName   string                `json:"customerName,omitempty"`
	GrandTotal     *string               `json:"grandTotal,omitempty"`
	ProductCount   int                   `json:"productCount"`
	Products       []ProductResponse     `json:"products"`
	Discounts      []DiscountResponse    `json:"discounts,omitempty"`
	DeliveryFees   []DeliveryFeeResponse `json:"deliveryFees,omitempty"`
	Parameters     map[string]string     `json:"parameters,omitempty"`
}

// ProductResponse is one order line with its topping tree and discounts.
type ProductResponse struct {
	Name          *string            `json:"name,omitempty"`
	CategoryName  *string            `json:"categoryName,omitempty"`
	Quantity      string             `json:"quantity"`
	PaidPrice     *string            `json:"paidPrice,omitempty"`
	UnitPrice     *string            `json:"unitPrice,omitempty"`
	Comment       *string            `json:"comment,omitempty"`
	VariationName *string            `json:"variationName,omitempty"`
	HalfHalf      bool               `json:"halfHalf"`
	Toppings      []ToppingResponse  `json:"selectedToppings,omitempty"`
	Discounts     []DiscountResponse `json:"discounts,omitempty"`
}

// ToppingResponse is a product modifier; children carry the nested tree.
type ToppingResponse struct {
	Name      string             `json:"name"`
	Price     *string            `json:"price,omitempty"`
	Quantity  int                `json:"quantity"`
	Type      *string            `json:"type,omitempty"`
	Children  []ToppingResponse  `json:"children,omitempty"`
	Discounts []DiscountResponse `json:"discounts,omitempty"`
}

// DiscountResponse is one discount with its funding sponsorships.
type DiscountResponse struct {
	Name         *string               `json:"name,omitempty"`
	Amount       *string               `json:"amount,omitempty"`
	Type         *string               `json:"type,omitempty"`
	Sponsorships []SponsorshipResponse `json:"sponsorships,omitempty"`
}

// SponsorshipResponse names the party funding a discount.
type SponsorshipResponse struct {
	Sponsor string  `json:"sponsor"`
	Amount  *string `json:"amount,omitempty"`
}

// DeliveryFeeResponse is one named fee line.
type DeliveryFeeResponse struct {
	Name  *string `json:"name,omitempty"`
	Value *string `json:"value,omitempty"`
}

// GetOrder handles GET /orders/:orderToken.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	token := c.Param("orderToken")

	o, err := h.orders.Get(c.Request.Context(), token)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, orderToResponse(o))
}

func orderToResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:             o.ID.String(),
		Token:          o.Token,
		Code:           o.Code,
		ShortCode:      o.ShortCode,
		Status:         o.Status,
		ExpeditionType: string(o.ExpeditionType),
		Test:           o.Test,
		PreOrder:       o.PreOrder,
		PlacedAt:       o.PlacedAt.UTC().Format(time.RFC3339),
		ExpiryDate:     o.ExpiryDate.UTC().Format(time.RFC3339),
		ProductCount:   len(o.Products),
		Products:       productsToResponse(o.Products),
		Discounts:      discountsToResponse(o.Discounts),
		Parameters:     o.Parameters,
	}
	if o.Customer != nil {
		resp.CustomerName = strings.TrimSpace(
			strVal(o.Customer.FirstName) + " " + strVal(o.Customer.LastName))
	}
	if o.Price != nil {
		resp.GrandTotal = decStr(o.Price.GrandTotal)
	}
	for _, fee := range o.DeliveryFees {
		resp.DeliveryFees = append(resp.DeliveryFees, DeliveryFeeResponse{
			Name:  fee.Name,
			Value: decStr(fee.Value),
		})
	}
	return resp
}

func productsToResponse(products []order.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, ProductResponse{
			Name:          p.Name,
			CategoryName:  p.CategoryName,
			Quantity:      p.Quantity,
			PaidPrice:     decStr(p.PaidPrice),
			UnitPrice:     decStr(p.UnitPrice),
			Comment:       p.Comment,
			VariationName: p.VariationName,
			HalfHalf:      p.HalfHalf,
			Toppings:      toppingsToResponse(p.Toppings),
			Discounts:     discountsToResponse(p.Discounts),
		})
	}
	return out
}

func toppingsToResponse(toppings []order.Topping) []ToppingResponse {
	if len(toppings) == 0 {
		return nil
	}
	out := make([]ToppingResponse, 0, len(toppings))
	for _, t := range toppings {
		r := ToppingResponse{
			Name:      t.Name,
			Price:     decStr(t.Price),
			Quantity:  t.Quantity,
			Children:  toppingsToResponse(t.Children),
			Discounts: discountsToResponse(t.Discounts),
		}
		if t.Type != nil {
			s := string(*t.Type)
			r.Type = &s
		}
		out = append(out, r)
	}
	return out
}

func discountsToResponse(discounts []order.Discount) []DiscountResponse {
	if len(discounts) == 0 {
		return nil
	}
	out := make([]DiscountResponse, 0, len(discounts))
	for _, d := range discounts {
		r := DiscountResponse{
			Name:   d.Name,
			Amount: decStr(d.Amount),
			Type:   d.Type,
		}
		for _, s := range d.Sponsorships {
			r.Sponsorships = append(r.Sponsorships, SponsorshipResponse{
				Sponsor: string(s.Sponsor),
				Amount:  decStr(s.Amount),
			})
		}
		out = append(out, r)
	}
	return out
}

func decStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
