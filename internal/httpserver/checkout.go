package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/service/checkout"
)

// maxWebhookBody matches the provider's documented payload ceiling.
const maxWebhookBody = 64 << 10

// stateResponse is a checkout state with the error rendered like every other
// error body.
type stateResponse struct {
	checkout.State
	Error *errorBody `json:"error,omitempty"`
}

func (h *handlers) writeState(c *gin.Context, st checkout.State, err error) {
	resp := stateResponse{State: st}
	status := http.StatusOK
	if err != nil {
		body := toBody(err)
		resp.Error = &body
		status = statusFor(body.Kind)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("checkout step failed",
				zap.String("phase", string(st.Phase)),
				zap.String("payment_intent_id", st.PaymentIntentID),
				zap.Error(err))
		}
	}
	c.JSON(status, resp)
}

func (h *handlers) submitCheckout(c *gin.Context) {
	var in checkout.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	st, err := h.deps.Checkout.Submit(c.Request.Context(), h.session(c), in)
	h.writeState(c, st, err)
}

func (h *handlers) confirmCheckout(c *gin.Context) {
	var in checkout.ConfirmInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	st, err := h.deps.Checkout.Confirm(c.Request.Context(), h.session(c), in)
	h.writeState(c, st, err)
}

// resumeCheckout handles the provider redirect. Without a client secret only a
// read-only lookup is possible.
func (h *handlers) resumeCheckout(c *gin.Context) {
	var rp checkout.ReturnParams
	if err := c.ShouldBindQuery(&rp); err != nil {
		h.badRequest(c, "invalid query")
		return
	}
	st, err := h.deps.Checkout.Resume(c.Request.Context(), h.session(c), rp)
	h.writeState(c, st, err)
}

// verifyPayment keeps the old route. Without the client secret it can only
// report state; writes need the full return URL or the webhook.
func (h *handlers) verifyPayment(c *gin.Context) {
	var rp checkout.ReturnParams
	if err := c.ShouldBindQuery(&rp); err != nil {
		h.badRequest(c, "invalid query")
		return
	}
	if rp.PaymentIntentID == "" {
		rp.PaymentIntentID = c.Query("paymentIntentId")
	}
	if rp.ClientSecret == "" && rp.PaymentIntentID != "" {
		st, err := h.deps.Checkout.Lookup(c.Request.Context(), rp.PaymentIntentID)
		h.writeState(c, st, err)
		return
	}
	st, err := h.deps.Checkout.Resume(c.Request.Context(), h.session(c), rp)
	h.writeState(c, st, err)
}

func (h *handlers) lookupCheckout(c *gin.Context) {
	st, err := h.deps.Checkout.Lookup(c.Request.Context(), c.Param("intentId"))
	h.writeState(c, st, err)
}

func (h *handlers) scheduleOrder(c *gin.Context) {
	var in checkout.ScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	st, err := h.deps.Checkout.Schedule(c.Request.Context(), c.Param("id"), in)
	h.writeState(c, st, err)
}

func (h *handlers) stripeWebhook(c *gin.Context) {
	if h.deps.Webhooks == nil || !h.deps.Webhooks.Configured() || h.deps.Reconcile == nil {
		h.writeError(c, domain.NewError(domain.KindNotConfigured, "webhooks not configured", nil))
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.badRequest(c, "unreadable body")
		return
	}
	ev, err := h.deps.Webhooks.Parse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		h.writeError(c, err)
		return
	}
	outcome, err := h.deps.Reconcile.Handle(c.Request.Context(), ev)
	if err != nil {
		// A 5xx makes the provider redeliver.
		h.logger.Error("webhook handling failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Raw),
			zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: errorBody{
			Kind:      domain.KindInternal,
			Message:   "webhook not processed",
			Retriable: true,
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
