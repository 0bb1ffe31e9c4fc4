package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"serenity-booking/internal/domain"
	orderrepo "serenity-booking/internal/repository/order"
	ordersvc "serenity-booking/internal/service/order"
)

type adminTokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminTokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *handlers) createOrder(c *gin.Context) {
	var in ordersvc.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	o, err := h.deps.Orders.Create(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// customerOrders is the customer dashboard.
func (h *handlers) customerOrders(c *gin.Context) {
	dash, err := h.deps.Orders.ForCustomer(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.deps.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) patchOrder(c *gin.Context) {
	var p domain.OrderPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	o, err := h.deps.Orders.Patch(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) upsertUser(c *gin.Context) {
	var in domain.CustomerDetails
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	u, err := h.deps.Customers.Upsert(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handlers) getUser(c *gin.Context) {
	u, err := h.deps.Customers.GetByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handlers) adminToken(c *gin.Context) {
	if h.deps.Admin == nil {
		h.writeError(c, errAdminNotConfigured)
		return
	}
	var req adminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "username and password are required")
		return
	}
	token, exp, err := h.deps.Admin.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminTokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp})
}

func (h *handlers) adminOrders(c *gin.Context) {
	f := orderrepo.Filter{
		Search:      c.Query("search"),
		Status:      domain.OrderStatus(c.Query("status")),
		ServiceType: c.Query("service"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.badRequest(c, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	dash, err := h.deps.Orders.AdminList(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
