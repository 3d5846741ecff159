package handler

import (
	"net/http"

	"github.com/blues/ideamarket/internal/logic"
	"github.com/gin-gonic/gin"
)

type ChainHandler struct {
	chainLogic *logic.ChainLogic
	statsLogic *logic.StatsLogic
}

func NewChainHandler(chainLogic *logic.ChainLogic, statsLogic *logic.StatsLogic) *ChainHandler {
	return &ChainHandler{chainLogic: chainLogic, statsLogic: statsLogic}
}

// GetBlockNumber 当前区块高度
func (h *ChainHandler) GetBlockNumber(c *gin.Context) {
	head, err := h.chainLogic.BlockNumber(c.Request.Context())
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", BlockNumberResponse{BlockNumber: head})
}

// GetTransaction 交易状态
func (h *ChainHandler) GetTransaction(c *gin.Context) {
	status, err := h.chainLogic.TransactionStatus(c.Request.Context(), c.Param("hash"))
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", status)
}

func (h *ChainHandler) GetGasPrice(c *gin.Context) {
	price, err := h.chainLogic.GasPrice(c.Request.Context())
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", price)
}

// GetBalance 原生币和USDC余额
func (h *ChainHandler) GetBalance(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	balance, err := h.chainLogic.Balance(c.Request.Context(), address)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", balance)
}

// GetStats 平台统计
func (h *ChainHandler) GetStats(c *gin.Context) {
	stats, err := h.statsLogic.Get(c.Request.Context())
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", stats)
}

// Health 健康检查，数据库不可用时返回 503
func (h *ChainHandler) Health(c *gin.Context) {
	health, healthy := h.statsLogic.Health(c.Request.Context())
	health["service"] = "ideamarket-api"
	if !healthy {
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["status"] = "ok"
	c.JSON(http.StatusOK, health)
}
