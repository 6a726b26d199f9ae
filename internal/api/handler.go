package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pharmacy-store/internal/auth"
	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/catalog"
	"pharmacy-store/internal/models"
	"pharmacy-store/internal/notify"
	"pharmacy-store/internal/service"
	"pharmacy-store/internal/util"
	"pharmacy-store/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CatalogService is the storefront catalog as seen by the API
type CatalogService interface {
	ListProducts(ctx context.Context, q catalog.Query) ([]service.ProductView, error)
	Featured(ctx context.Context) ([]service.ProductView, error)
	Categories(ctx context.Context) ([]string, error)
	CreatePromotion(ctx context.Context, p *models.Promotion) error
	SaveProduct(ctx context.Context, p *models.Product) error
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
}

// CartService manages session carts
type CartService interface {
	Create(ctx context.Context) (*service.CartView, error)
	Get(ctx context.Context, id uuid.UUID) (*service.CartView, error)
	AddItem(ctx context.Context, id, productID uuid.UUID) (*service.CartView, error)
	UpdateQuantity(ctx context.Context, id, productID uuid.UUID, delta int) (*service.CartView, error)
	RemoveItem(ctx context.Context, id, productID uuid.UUID) (*service.CartView, error)
}

// CheckoutService places orders
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cartID uuid.UUID, customer models.Customer, idempotencyKey string) (*models.Receipt, error)
	GetReceipt(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error)
}

// OrderService is the cashier dashboard backend
type OrderService interface {
	ListOrders(ctx context.Context, text, tab string) ([]models.Order, error)
	Counts(ctx context.Context) (map[models.OrderStatus]int, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.OrderDetails, error)
	FindByPickupCode(ctx context.Context, code string) (*service.OrderDetails, error)
	Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus) (*service.OrderDetails, error)
	ApplyAction(ctx context.Context, id uuid.UUID, action workflow.Action) (*service.OrderDetails, error)
	Subscribe(ctx context.Context) <-chan notify.Notification
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	catalog   CatalogService
	carts     CartService
	checkout  CheckoutService
	orders    OrderService
	issuer    *auth.Issuer
	checks    map[string]Pinger
	keepAlive time.Duration
	streams   chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog CatalogService,
	carts CartService,
	checkout CheckoutService,
	orders OrderService,
	issuer *auth.Issuer,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		catalog:   catalog,
		carts:     carts,
		checkout:  checkout,
		orders:    orders,
		issuer:    issuer,
		checks:    checks,
		keepAlive: 15 * time.Second,
		streams:   make(chan struct{}),
		logger:    util.Component("api"),
	}
}

// CloseStreams ends every open order stream
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streams) })
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(auth.Identify(h.issuer))
	{
		v1.GET("/me", h.me)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/featured", h.featuredProducts)
		v1.GET("/categories", h.listCategories)

		v1.POST("/carts", h.createCart)
		v1.GET("/carts/:id", h.getCart)
		v1.POST("/carts/:id/items", h.addCartItem)
		v1.PATCH("/carts/:id/items/:productId", h.updateCartItem)
		v1.DELETE("/carts/:id/items/:productId", h.removeCartItem)
		v1.POST("/carts/:id/checkout", h.checkoutCart)
		v1.GET("/receipts/:id", h.getReceipt)
	}

	staff := v1.Group("/orders", auth.RequireRole(auth.RoleCashier, auth.RoleAdmin))
	{
		staff.GET("", h.listOrders)
		staff.GET("/counts", h.orderCounts)
		staff.GET("/stream", h.streamOrders)
		staff.GET("/pickup/:code", h.findByPickupCode)
		staff.GET("/:id", h.getOrder)
		staff.POST("/:id/status", h.setOrderStatus)
		staff.POST("/:id/actions/:action", h.applyOrderAction)
	}

	admin := v1.Group("", auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/promotions", h.createPromotion)
		admin.PUT("/products/:id", h.saveProduct)
		admin.PUT("/products/:id/stock", h.setProductStock)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// me tells the client who is signed in and which view to open
func (h *Handler) me(c *gin.Context) {
	identity, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"identity": nil, "home": auth.HomeView("")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity, "home": auth.HomeView(identity.Role)})
}

// respondError maps domain errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, models.ErrNotFound), errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "result": nil})
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, models.ErrConcurrentUpdate),
		errors.Is(err, models.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generic failure"})
	}
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
