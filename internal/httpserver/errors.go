package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/payment"
	"serenity-booking/internal/service/admin"
)

const kindUnauthorized domain.ErrorKind = "unauthorized"

type errorBody struct {
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Retriable bool             `json:"retriable"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindPaymentDeclined:
		return http.StatusPaymentRequired
	case domain.KindPaymentIncomplete:
		return http.StatusConflict
	case domain.KindNotConfigured, domain.KindUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindPartialFailure:
		return http.StatusBadGateway
	case kindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// toBody classifies err for clients. Unclassified errors never leak their text.
func toBody(err error) errorBody {
	switch {
	case errors.Is(err, admin.ErrInvalidCredentials), errors.Is(err, admin.ErrInvalidToken):
		return errorBody{Kind: kindUnauthorized, Message: "unauthorized"}
	case errors.Is(err, payment.ErrInvalidSignature):
		return errorBody{Kind: domain.KindValidation, Message: "invalid webhook signature"}
	}
	if de, ok := domain.AsError(err); ok {
		return errorBody{Kind: de.Kind, Message: de.Message, Retriable: de.Retriable()}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return errorBody{Kind: domain.KindNotFound, Message: "not found"}
	}
	return errorBody{Kind: domain.KindInternal, Message: "internal server error"}
}

func (h *handlers) writeError(c *gin.Context, err error) {
	body := toBody(err)
	status := statusFor(body.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(body.Kind)),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func (h *handlers) badRequest(c *gin.Context, msg string) {
	h.writeError(c, domain.Validation(msg))
}
