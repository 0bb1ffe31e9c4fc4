package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/service/visitor"
)

type visitorRequest struct {
	visitor.ProfileInput
	Preferences *domain.Preferences `json:"preferences"`
}

type cartItemRequest struct {
	ServiceID string `json:"serviceId"`
	Quantity  int    `json:"quantity"`
}

func (h *handlers) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.deps.Catalog.List(),
		"currency": h.deps.Catalog.Currency(),
	})
}

func (h *handlers) envCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Flags)
}

// getVisitor returns the profile, creating it on first contact and counting
// the visit.
func (h *handlers) getVisitor(c *gin.Context) {
	p, err := h.deps.Visitors.Open(c.Request.Context(), h.session(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updateVisitor(c *gin.Context) {
	var req visitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	sess := h.session(c)
	p, err := h.deps.Visitors.UpdateProfile(c.Request.Context(), sess, req.ProfileInput)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.Preferences != nil {
		if p, err = h.deps.Visitors.SetPreferences(c.Request.Context(), sess, *req.Preferences); err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) clearVisitor(c *gin.Context) {
	if err := h.deps.Visitors.Clear(c.Request.Context(), h.session(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getCart(c *gin.Context) {
	view, err := h.deps.Carts.Get(c.Request.Context(), h.session(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	view, err := h.deps.Carts.AddItem(c.Request.Context(), h.session(c), req.ServiceID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	view, err := h.deps.Carts.UpdateQuantity(c.Request.Context(), h.session(c), c.Param("serviceId"), req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	view, err := h.deps.Carts.RemoveItem(c.Request.Context(), h.session(c), c.Param("serviceId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) clearCart(c *gin.Context) {
	view, err := h.deps.Carts.Clear(c.Request.Context(), h.session(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
