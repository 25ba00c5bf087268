package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

// stripeWebhook needs the raw body: the signature covers the exact bytes sent.
func (h *handlers) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	if len(payload) > maxWebhookBody {
		h.logger.Printf("webhook: rejected body over %d bytes", maxWebhookBody)
		c.JSON(http.StatusRequestEntityTooLarge, errorBody(http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body exceeds the size limit"))
		return
	}
	sig := c.GetHeader(signatureHeader)
	if sig == "" {
		badRequest(c, "missing "+signatureHeader+" header")
		return
	}
	out, err := h.deps.PaymentSvc.HandleWebhook(c.Request.Context(), payload, sig)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": out.Duplicate})
}

func (h *handlers) syncPayment(c *gin.Context) {
	res, err := h.deps.PaymentSvc.Sync(c.Request.Context(), userFromCtx(c.Request.Context()), c.Param("id"), false)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":              res.OrderID,
		"orderStatus":          res.OrderStatus,
		"status":               res.PaymentStatus,
		"amount":               money(res.Amount),
		"sessionId":            res.SessionID,
		"sessionStatus":        res.SessionStatus,
		"sessionPaymentStatus": sessionPaymentStatus(res.SessionPaid),
	})
}

func sessionPaymentStatus(paid bool) string {
	if paid {
		return "paid"
	}
	return "unpaid"
}
