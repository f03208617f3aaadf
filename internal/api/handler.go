package api

import (
	"errors"
	"net/http"
	"time"

	"tickify/internal/models"
	"tickify/internal/service"
	"tickify/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService    *service.OrderService
	paymentService  *service.PaymentService
	eventService    *service.EventService
	ticketService   *service.TicketService
	merchantService *service.MerchantService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	eventService *service.EventService,
	ticketService *service.TicketService,
	merchantService *service.MerchantService,
) *Handler {
	return &Handler{
		orderService:    orderService,
		paymentService:  paymentService,
		eventService:    eventService,
		ticketService:   ticketService,
		merchantService: merchantService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// public catalog
		v1.GET("/events", h.listEvents)
		v1.GET("/events/:id", h.getEvent)
		v1.GET("/events/:id/tickets", h.listTicketTypes)
		v1.GET("/tickets/:id/availability", h.getAvailability)

		// gateway server-to-server and browser returns
		v1.POST("/payments/notify", h.paymentNotify)
		v1.GET("/payments/return", h.paymentReturn)
		v1.GET("/payments/cancel", h.paymentCancelled)
	}

	auth := v1.Group("", AuthRequired())
	{
		auth.POST("/orders", RequireRole(models.RoleCustomer), h.createOrder)
		auth.GET("/orders", h.listOrders)
		auth.GET("/orders/:id", h.getOrder)
		auth.POST("/orders/:id/cancel", h.cancelOrder)
		auth.PATCH("/orders/:id/status", RequireRole(models.RoleAdmin), h.overrideOrderStatus)

		auth.POST("/payments/initiate", RequireRole(models.RoleCustomer), h.initiatePayment)

		auth.POST("/events", RequireRole(models.RoleMerchant), h.createEvent)
		auth.PATCH("/events/:id", RequireRole(models.RoleMerchant, models.RoleAdmin), h.updateEvent)
		auth.DELETE("/events/:id", RequireRole(models.RoleMerchant, models.RoleAdmin), h.cancelEvent)
		auth.POST("/events/:id/publish", RequireRole(models.RoleMerchant, models.RoleAdmin), h.publishEvent)
		auth.POST("/events/:id/tickets", RequireRole(models.RoleMerchant, models.RoleAdmin), h.createTicketType)
		auth.PATCH("/tickets/:id", RequireRole(models.RoleMerchant, models.RoleAdmin), h.updateTicketType)
		auth.DELETE("/tickets/:id", RequireRole(models.RoleMerchant, models.RoleAdmin), h.deleteTicketType)

		auth.GET("/merchant/events", RequireRole(models.RoleMerchant), h.listMerchantEvents)
		auth.GET("/merchant/earnings", RequireRole(models.RoleMerchant), h.listMerchantEarnings)

		auth.POST("/merchants/:id/verify", RequireRole(models.RoleAdmin), h.verifyMerchant)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	actor := identityFrom(c)
	order, items, err := h.orderService.CreateOrder(c.Request.Context(), actor.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order, "items": items})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), identityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	if err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled"})
}

func (h *Handler) overrideOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orderService.OverrideStatus(c.Request.Context(), c.Param("id"), req.Status, identityFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

func (h *Handler) initiatePayment(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}

	actor := identityFrom(c)
	resp, err := h.paymentService.InitiatePayment(c.Request.Context(), req.OrderID, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// paymentNotify receives the gateway's form-encoded server-to-server
// callback. The gateway expects a bare 200 on success and retries
// otherwise.
func (h *Handler) paymentNotify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "Invalid IPN")
		return
	}

	fields := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	if err := h.paymentService.HandleCallback(c.Request.Context(), fields); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidSignature),
			errors.Is(err, models.ErrAmountMismatch),
			errors.Is(err, models.ErrMerchantMismatch),
			errors.Is(err, models.ErrValidation),
			errors.Is(err, models.ErrOrderNotFound),
			errors.Is(err, models.ErrPaymentNotFound):
			c.String(http.StatusBadRequest, "Invalid IPN")
		default:
			c.String(http.StatusInternalServerError, "ERROR")
		}
		return
	}

	c.String(http.StatusOK, "OK")
}

func (h *Handler) paymentReturn(c *gin.Context) {
	c.String(http.StatusOK, "Payment successful")
}

func (h *Handler) paymentCancelled(c *gin.Context) {
	c.String(http.StatusOK, "Payment cancelled")
}

func (h *Handler) createEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	actor := identityFrom(c)
	event, err := h.eventService.CreateEvent(c.Request.Context(), actor.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (h *Handler) updateEvent(c *gin.Context) {
	var upd store.EventUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	event, err := h.eventService.UpdateEvent(c.Request.Context(), c.Param("id"), identityFrom(c), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *Handler) cancelEvent(c *gin.Context) {
	if err := h.eventService.CancelEvent(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event cancelled"})
}

func (h *Handler) publishEvent(c *gin.Context) {
	event, err := h.eventService.PublishEvent(c.Request.Context(), c.Param("id"), identityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.eventService.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.eventService.ListPublishedEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) listMerchantEvents(c *gin.Context) {
	actor := identityFrom(c)
	events, err := h.eventService.ListMerchantEvents(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) createTicketType(c *gin.Context) {
	var req service.CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tt, err := h.ticketService.CreateTicketType(c.Request.Context(), c.Param("id"), identityFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": tt})
}

func (h *Handler) listTicketTypes(c *gin.Context) {
	tickets, err := h.ticketService.ListTicketTypes(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) getAvailability(c *gin.Context) {
	available, err := h.ticketService.GetAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_type_id": c.Param("id"), "available": available})
}

func (h *Handler) updateTicketType(c *gin.Context) {
	var upd store.TicketTypeUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tt, err := h.ticketService.UpdateTicketType(c.Request.Context(), c.Param("id"), identityFrom(c), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": tt})
}

func (h *Handler) deleteTicketType(c *gin.Context) {
	if err := h.ticketService.DeleteTicketType(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ticket type deleted"})
}

func (h *Handler) listMerchantEarnings(c *gin.Context) {
	records, err := h.paymentService.ListMerchantEarnings(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": records})
}

func (h *Handler) verifyMerchant(c *gin.Context) {
	if err := h.merchantService.VerifyMerchant(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Merchant verified"})
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidSignature),
		errors.Is(err, models.ErrAmountMismatch),
		errors.Is(err, models.ErrMerchantMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrTicketTypeNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrMerchantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrSalesWindowClosed),
		errors.Is(err, models.ErrEventNotOnSale),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrOrderNotPending),
		errors.Is(err, models.ErrTicketsSold):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
