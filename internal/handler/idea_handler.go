package handler

import (
	"net/http"

	"github.com/blues/ideamarket/internal/logic"
	"github.com/gin-gonic/gin"
)

type IdeaHandler struct {
	ideaLogic *logic.IdeaLogic
}

func NewIdeaHandler(ideaLogic *logic.IdeaLogic) *IdeaHandler {
	return &IdeaHandler{ideaLogic: ideaLogic}
}

// IdeaListResponse 挂单列表，source 表示数据来源
type IdeaListResponse struct {
	Ideas  []logic.IdeaView `json:"ideas"`
	Source string           `json:"source"`
}

// GetIdeas 挂单列表，available=true 只返回未售出
func (h *IdeaHandler) GetIdeas(c *gin.Context) {
	page := pageQuery(c)
	result, err := h.ideaLogic.List(c.Request.Context(), c.Query("available") == "true", page)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	PageResponse(c, IdeaListResponse{Ideas: result.Items, Source: result.Source}, page, result.Total)
}

// GetIdea 挂单详情
func (h *IdeaHandler) GetIdea(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	idea, err := h.ideaLogic.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", idea)
}

// CreateIdea 创建挂单
func (h *IdeaHandler) CreateIdea(c *gin.Context) {
	var req logic.CreateIdeaInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.ideaLogic.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, CodeCreation)
		return
	}
	SuccessResponse(c, http.StatusCreated, result.Message, result)
}

// RetrieveContent 持有人读取解密后的正文
func (h *IdeaHandler) RetrieveContent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req RetrieveContentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !logic.IsAddress(req.BuyerAddress) {
		ErrorResponse(c, http.StatusBadRequest, CodeInvalidAddress, "Invalid Ethereum address format")
		return
	}
	result, err := h.ideaLogic.RetrieveContent(c.Request.Context(), id, req.BuyerAddress)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", result)
}
