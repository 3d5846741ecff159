package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// AdminTokenHeader 管理接口令牌请求头
	AdminTokenHeader = "X-Admin-Token"
	RequestIDHeader  = "X-Request-ID"
)

// RequestID 沿用客户端传入的请求ID，没有时生成
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AdminAuth token 为空时不校验
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			ErrorResponse(c, http.StatusUnauthorized, CodeUnauthorized, "Missing or invalid admin token")
			c.Abort()
			return
		}
		c.Next()
	}
}
