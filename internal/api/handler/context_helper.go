package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/api/middleware"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/jwt"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id（即操作人 ID）。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, "not authenticated")
		return "", false
	}
	return s, true
}

// MustGetClaims 从 Gin 上下文中提取完整的 Token 声明
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.CtxClaims)
	if !exists {
		response.Unauthorized(c, "not authenticated")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, "not authenticated")
		return nil, false
	}
	return claims, true
}

// bindFailed 请求体绑定失败：超出大小限制返回 413，其余返回 400
func bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "request body too large")
		return
	}
	response.BadRequest(c, "invalid request: "+err.Error())
}
