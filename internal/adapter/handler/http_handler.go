package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
	"github.com/bgysuite/barangay-backend/internal/core/service"
)

func init() {
	// Reject unknown document types at the binding layer so the error names
	// the offending field instead of the whole payload.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
			return domain.DocumentType(fl.Field().String()).Valid()
		})
	}
}

type HTTPHandler struct {
	requests    *service.RequestService
	fulfillment *service.FulfillmentService
	payments    *service.PaymentService
	logger      *logrus.Logger
}

func NewHTTPHandler(requests *service.RequestService, fulfillment *service.FulfillmentService, payments *service.PaymentService, logger *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{
		requests:    requests,
		fulfillment: fulfillment,
		payments:    payments,
		logger:      logger,
	}
}

// Register wires all routes. Session handling lives in front of this
// service; handlers trust the role header it sets.
func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.HealthCheck)

	api := r.Group("/api")
	api.GET("/items", h.ListItems)
	api.GET("/status-counts", h.StatusCounts)
	api.POST("/requests", h.Submit)
	api.GET("/requests/:id", h.GetRequest)
	api.DELETE("/requests/:id", h.Withdraw)
	api.GET("/requests/:id/receipt", h.GetReceipt)
	api.POST("/requests/:id/payment", h.Pay)

	admin := api.Group("", requireAdmin())
	admin.POST("/requests/:id/decision", h.Decide)
	admin.POST("/requests/:id/complete", h.Complete)
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-User-Role") != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, apiResponse{
				Success: false,
				Message: "administrator role required",
			})
			return
		}
		c.Next()
	}
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type submitLineItem struct {
	ItemID       string            `json:"item_id"`
	DocumentType string            `json:"document_type" binding:"omitempty,doctype"`
	Fields       map[string]string `json:"fields"`
	Quantity     int               `json:"quantity" binding:"required,min=1"`
}

type submitPayload struct {
	RequestID  string           `json:"request_id"`
	Kind       string           `json:"kind" binding:"required,oneof=document asset"`
	ResidentID string           `json:"resident_id" binding:"required"`
	Items      []submitLineItem `json:"items" binding:"required,min=1,dive"`
}

type decidePayload struct {
	Outcome string `json:"outcome" binding:"required,oneof=approved denied"`
	Message string `json:"message"`
}

type lineItemView struct {
	ItemID       string            `json:"item_id,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Quantity     int               `json:"quantity"`
}

type requestView struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	ResidentID    string         `json:"resident_id"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status,omitempty"`
	Completed     bool           `json:"completed"`
	AdminMessage  string         `json:"admin_message,omitempty"`
	Total         string         `json:"total,omitempty"`
	AmountPaid    *string        `json:"amount_paid,omitempty"`
	Items         []lineItemView `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
	DecidedAt     *time.Time     `json:"decided_at,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
}

type receiptView struct {
	Number    string    `json:"number"`
	RequestID string    `json:"request_id"`
	Amount    string    `json:"amount"`
	IssuedAt  time.Time `json:"issued_at"`
}

func (h *HTTPHandler) Submit(c *gin.Context) {
	var payload submitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body: " + err.Error()})
		return
	}

	items := make([]service.SubmitLineItem, 0, len(payload.Items))
	for _, in := range payload.Items {
		items = append(items, service.SubmitLineItem{
			ItemID:       in.ItemID,
			DocumentType: in.DocumentType,
			Fields:       in.Fields,
			Quantity:     in.Quantity,
		})
	}

	req, err := h.requests.Submit(c.Request.Context(), payload.RequestID, domain.RequestKind(payload.Kind), payload.ResidentID, items)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, apiResponse{
		Success: true,
		Message: "request submitted",
		Data:    h.view(c, req),
	})
}

func (h *HTTPHandler) GetRequest(c *gin.Context) {
	req, err := h.requests.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: h.view(c, req)})
}

func (h *HTTPHandler) Withdraw(c *gin.Context) {
	if err := h.requests.Withdraw(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "request withdrawn"})
}

func (h *HTTPHandler) Decide(c *gin.Context) {
	var payload decidePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body: " + err.Error()})
		return
	}

	req, err := h.fulfillment.Decide(c.Request.Context(), c.Param("id"), domain.RequestStatus(payload.Outcome), payload.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "request " + string(req.Status),
		Data:    h.view(c, req),
	})
}

func (h *HTTPHandler) Pay(c *gin.Context) {
	receipt, err := h.payments.Pay(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "payment recorded",
		Data: receiptView{
			Number:    receipt.Number,
			RequestID: receipt.RequestID,
			Amount:    receipt.Amount.String(),
			IssuedAt:  receipt.IssuedAt,
		},
	})
}

func (h *HTTPHandler) Complete(c *gin.Context) {
	req, err := h.fulfillment.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "request completed", Data: h.view(c, req)})
}

func (h *HTTPHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.payments.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "ok",
		Data: receiptView{
			Number:    receipt.Number,
			RequestID: receipt.RequestID,
			Amount:    receipt.Amount.String(),
			IssuedAt:  receipt.IssuedAt,
		},
	})
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	items, err := h.requests.ListItems(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	type itemView struct {
		ItemID    string `json:"item_id"`
		Name      string `json:"name"`
		UnitPrice string `json:"unit_price"`
		Quantity  int    `json:"quantity"`
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{
			ItemID:    item.ItemID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
		})
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: views})
}

func (h *HTTPHandler) StatusCounts(c *gin.Context) {
	counts, err := h.requests.StatusCounts(c.Request.Context(), c.Query("resident_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: counts})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) view(c *gin.Context, req *domain.Request) requestView {
	v := requestView{
		ID:           req.ID,
		Kind:         string(req.Kind),
		ResidentID:   req.ResidentID,
		Status:       string(req.Status),
		Completed:    req.Completed,
		AdminMessage: req.AdminMessage,
		CreatedAt:    req.CreatedAt,
		DecidedAt:    req.DecidedAt,
		PaidAt:       req.PaidAt,
	}
	if req.Kind == domain.KindAsset {
		v.PaymentStatus = string(req.PaymentStatus)
	}
	if req.AmountPaid != nil {
		s := req.AmountPaid.String()
		v.AmountPaid = &s
	}
	for _, line := range req.Items {
		v.Items = append(v.Items, lineItemView{
			ItemID:       line.ItemID,
			DocumentType: string(line.DocumentType),
			Fields:       line.Fields,
			Quantity:     line.Quantity,
		})
	}
	if total, err := h.requests.ComputeTotal(c.Request.Context(), req); err == nil {
		v.Total = total.String()
	}
	return v
}

// respondError maps the domain error taxonomy to HTTP statuses. Everything
// in the taxonomy is an expected client outcome; only unrecognized errors
// are logged and reported as server faults.
func (h *HTTPHandler) respondError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		stockErr      *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: validationErr.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, apiResponse{
			Success: false,
			Message: stockErr.Error(),
			Data: gin.H{
				"item_id":   stockErr.ItemID,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			},
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, apiResponse{Success: false, Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, apiResponse{Success: false, Message: "duplicate request"})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotApproved),
		errors.Is(err, domain.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, apiResponse{Success: false, Message: err.Error()})
	default:
		h.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Message: "internal error"})
	}
}
