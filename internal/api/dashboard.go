package api

import (
	"io"
	"net/http"
	"time"

	"pharmacy-store/internal/models"
	"pharmacy-store/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

type stockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

type productRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Barcode     *string         `json:"barcode"`
	Category    *string         `json:"category"`
	Section     *string         `json:"section"`
	ImageURL    *string         `json:"image_url"`
}

type promotionRequest struct {
	Name          string              `json:"name"`
	Description   *string             `json:"description"`
	DiscountType  models.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	StartDate     time.Time           `json:"start_date"`
	EndDate       time.Time           `json:"end_date"`
	IsActive      *bool               `json:"is_active"`
	ProductIDs    []uuid.UUID         `json:"product_ids"`
}

// listOrders handles the dashboard list with search text and status tab
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Query("q"), c.DefaultQuery("tab", workflow.TabAll))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// orderCounts handles the per-status badges
func (h *Handler) orderCounts(c *gin.Context) {
	counts, err := h.orders.Counts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	details, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// findByPickupCode handles the counter lookup. No match is a 404 with a
// null result, which the dashboard shows as "no order found".
func (h *Handler) findByPickupCode(c *gin.Context) {
	details, err := h.orders.FindByPickupCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": details})
}

// setOrderStatus moves an order to an explicit status
func (h *Handler) setOrderStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	details, err := h.orders.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// applyOrderAction runs a named dashboard action
func (h *Handler) applyOrderAction(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	details, err := h.orders.ApplyAction(c.Request.Context(), id, workflow.Action(c.Param("action")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// streamOrders pushes a "changed" server-sent event whenever any order
// changes. Clients re-fetch what they display.
func (h *Handler) streamOrders(c *gin.Context) {
	ch := h.orders.Subscribe(c.Request.Context())

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("changed", n)
			return true
		case t := <-ticker.C:
			c.SSEvent("ping", t.Unix())
			return true
		case <-h.streams:
			return false
		}
	})
}

// createPromotion handles admin promotion creation
func (h *Handler) createPromotion(c *gin.Context) {
	var req promotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	promo := &models.Promotion{
		ID:            uuid.New(),
		Name:          req.Name,
		Description:   req.Description,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      req.IsActive == nil || *req.IsActive,
		ProductIDs:    req.ProductIDs,
	}
	if err := h.catalog.CreatePromotion(c.Request.Context(), promo); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}

// saveProduct handles admin catalog upserts
func (h *Handler) saveProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product := &models.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Barcode:     req.Barcode,
		Category:    req.Category,
		Section:     req.Section,
		ImageURL:    req.ImageURL,
	}
	if err := h.catalog.SaveProduct(c.Request.Context(), product); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// setProductStock handles admin stock corrections
func (h *Handler) setProductStock(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if err := h.catalog.SetStock(c.Request.Context(), id, *req.Stock); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "stock": *req.Stock})
}
