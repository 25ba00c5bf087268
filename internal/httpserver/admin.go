package httpserver

import (
	"net/http"

	"storefront/internal/domain"
	ordersvc "storefront/internal/service/order"
	refundsvc "storefront/internal/service/refund"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type updateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

func (h *handlers) adminGetOrder(c *gin.Context) {
	d, err := h.deps.OrderSvc.Get(c.Request.Context(), "", c.Param("id"), true)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(d.Order, d.Payment))
}

func (h *handlers) adminUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(c, h.logger, domain.Invalid("status", "required"))
		return
	}
	o, err := h.deps.OrderSvc.UpdateStatus(c.Request.Context(), ordersvc.UpdateStatusInput{
		OrderID: c.Param("id"),
		Status:  req.Status,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o, nil))
}

func (h *handlers) adminRefund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	res, err := h.deps.RefundSvc.Refund(c.Request.Context(), refundsvc.Input{
		OrderID: c.Param("id"),
		Amount:  req.Amount,
		Reason:  req.Reason,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refundId": res.RefundID,
		"amount":   money(res.Amount),
		"status":   res.Status,
	})
}
