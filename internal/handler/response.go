package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blues/ideamarket/internal/content"
	"github.com/blues/ideamarket/internal/logger"
	"github.com/blues/ideamarket/internal/logic"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// PageResponse 带分页信息的成功响应
func PageResponse(c *gin.Context, data interface{}, page repository.Page, total int64) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Pagination: &Pagination{
			Page:    page.Page,
			Limit:   page.Limit,
			Total:   total,
			HasMore: int64(page.Page*page.Limit) < total,
		},
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, code, message string, details ...interface{}) {
	body := &ErrorBody{Code: code, Message: message}
	if len(details) > 0 {
		body.Details = details[0]
	}
	c.JSON(statusCode, Response{
		Success: false,
		Error:   body,
	})
}

// handleError 把业务错误映射为错误码，未识别的错误使用 fallback
func handleError(c *gin.Context, err error, fallback string) {
	var verr *logic.ValidationError
	switch {
	case errors.As(err, &verr):
		ErrorResponse(c, http.StatusBadRequest, CodeValidation, "Validation failed", []*logic.ValidationError{verr})
	case errors.Is(err, logic.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, logic.ErrAlreadyExists):
		ErrorResponse(c, http.StatusBadRequest, CodeAlreadyExists, err.Error())
	case errors.Is(err, logic.ErrNotOwner):
		ErrorResponse(c, http.StatusForbidden, CodeNotOwner, err.Error())
	case errors.Is(err, content.ErrNoKey):
		ErrorResponse(c, http.StatusServiceUnavailable, fallback, err.Error())
	default:
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, fallback, err.Error())
	}
}

// pageQuery 读取 page 和 limit，非法值按默认处理
func pageQuery(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultPageSize)))
	return repository.Page{Page: page, Limit: limit}.Normalize()
}

// addressParam 路径中的地址，格式错误时直接响应
func addressParam(c *gin.Context) (string, bool) {
	address := c.Param("address")
	if !logic.IsAddress(address) {
		ErrorResponse(c, http.StatusBadRequest, CodeInvalidAddress, "Invalid Ethereum address format")
		return "", false
	}
	return address, true
}

// idParam 路径中的正整数ID
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, CodeValidation, "Invalid id",
			[]*logic.ValidationError{{Field: "id", Message: "must be a positive integer"}})
		return 0, false
	}
	return id, true
}

// bindJSON 解析并校验请求体，binding 标签不满足时响应 VALIDATION_ERROR，其余为 INVALID_JSON
func bindJSON(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	if details := logic.FieldErrors(err); len(details) > 0 {
		ErrorResponse(c, http.StatusBadRequest, CodeValidation, "Validation failed", details)
		return false
	}
	ErrorResponse(c, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON in request body: "+err.Error())
	return false
}
