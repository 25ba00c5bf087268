package httpserver

import (
	"net/http"

	cartsvc "storefront/internal/service/cart"

	"github.com/gin-gonic/gin"
)

func (h *handlers) getCart(c *gin.Context) {
	v, err := h.deps.CartSvc.Get(c.Request.Context(), userFromCtx(c.Request.Context()))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(v))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartsvc.AddItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := bodyID("productId", req.ProductID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	v, err := h.deps.CartSvc.AddItem(c.Request.Context(), userFromCtx(c.Request.Context()), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(v))
}

func (h *handlers) changeCartItem(c *gin.Context) {
	var req cartsvc.ChangeQuantityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.ItemID = c.Param("itemId")
	v, err := h.deps.CartSvc.ChangeQuantity(c.Request.Context(), userFromCtx(c.Request.Context()), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(v))
}
