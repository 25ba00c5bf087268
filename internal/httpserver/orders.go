package httpserver

import (
	"net/http"

	checkoutsvc "storefront/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	AddressID string `json:"addressId"`
	Notes     string `json:"notes"`
}

type checkoutRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := bodyID("addressId", req.AddressID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	o, err := h.deps.CheckoutSvc.CreateOrder(c.Request.Context(), checkoutsvc.CreateOrderInput{
		UserID:    userFromCtx(c.Request.Context()),
		AddressID: req.AddressID,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(o, nil))
}

func (h *handlers) getOrder(c *gin.Context) {
	d, err := h.deps.OrderSvc.Get(c.Request.Context(), userFromCtx(c.Request.Context()), c.Param("id"), false)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(d.Order, d.Payment))
}

func (h *handlers) cancelOrder(c *gin.Context) {
	o, err := h.deps.OrderSvc.Cancel(c.Request.Context(), userFromCtx(c.Request.Context()), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o, nil))
}

func (h *handlers) openCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.deps.CheckoutSvc.OpenPaymentSession(c.Request.Context(), checkoutsvc.OpenSessionInput{
		UserID:     userFromCtx(c.Request.Context()),
		OrderID:    c.Param("id"),
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": res.SessionID, "url": res.URL})
}
