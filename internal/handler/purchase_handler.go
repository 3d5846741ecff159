package handler

import (
	"net/http"

	"github.com/blues/ideamarket/internal/logic"
	"github.com/gin-gonic/gin"
)

type PurchaseHandler struct {
	purchaseLogic *logic.PurchaseLogic
}

func NewPurchaseHandler(purchaseLogic *logic.PurchaseLogic) *PurchaseHandler {
	return &PurchaseHandler{purchaseLogic: purchaseLogic}
}

// GetPurchases 购买记录，可按买家过滤
func (h *PurchaseHandler) GetPurchases(c *gin.Context) {
	page := pageQuery(c)
	purchases, total, err := h.purchaseLogic.List(c.Request.Context(), c.Query("buyer"), page)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	PageResponse(c, purchases, page, total)
}

// RecordPurchase 客户端上报成交，以链上回执为准
func (h *PurchaseHandler) RecordPurchase(c *gin.Context) {
	var req logic.RecordPurchaseInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.purchaseLogic.Record(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, CodeCreation)
		return
	}
	status := http.StatusCreated
	if !result.Recorded {
		status = http.StatusOK
	}
	SuccessResponse(c, status, "Purchase recorded", result)
}
