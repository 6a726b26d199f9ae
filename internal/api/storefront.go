package api

import (
	"errors"
	"net/http"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/catalog"
	"pharmacy-store/internal/models"
	"pharmacy-store/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

type updateItemRequest struct {
	Delta int `json:"delta"`
}

type checkoutRequest struct {
	CustomerName   string `json:"customer_name"`
	CustomerPhone  string `json:"customer_phone"`
	Notes          string `json:"notes"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// listProducts handles catalog browse and search
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), catalog.Query{
		Text:     c.Query("q"),
		Category: c.Query("category"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// featuredProducts handles the promoted products strip
func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := h.catalog.Featured(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// listCategories handles the category filter options
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// createCart opens a cart session
func (h *Handler) createCart(c *gin.Context) {
	view, err := h.carts.Create(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// getCart returns a cart with current prices
func (h *Handler) getCart(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.carts.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// addCartItem adds one unit of a product
func (h *Handler) addCartItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	view, err := h.carts.AddItem(c.Request.Context(), id, req.ProductID)
	h.respondCart(c, view, err)
}

// updateCartItem moves a line's quantity by delta
func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	view, err := h.carts.UpdateQuantity(c.Request.Context(), id, productID, req.Delta)
	h.respondCart(c, view, err)
}

// removeCartItem drops a line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}

	view, err := h.carts.RemoveItem(c.Request.Context(), id, productID)
	h.respondCart(c, view, err)
}

// respondCart writes a cart mutation result. A stock limit is a conflict
// that still carries the unchanged cart.
func (h *Handler) respondCart(c *gin.Context, view *service.CartView, err error) {
	if errors.Is(err, cart.ErrStockLimit) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "cart": view})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// checkoutCart places the order for a cart
func (h *Handler) checkoutCart(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	receipt, err := h.checkout.PlaceOrder(c.Request.Context(), id, models.Customer{
		Name:  req.CustomerName,
		Phone: req.CustomerPhone,
		Notes: req.Notes,
	}, req.IdempotencyKey)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// getReceipt shows the receipt of a placed order again
func (h *Handler) getReceipt(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	receipt, err := h.checkout.GetReceipt(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
