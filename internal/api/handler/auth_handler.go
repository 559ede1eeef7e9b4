package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/response"
)

// TokenRevoker 吊销 Token（写入黑名单）
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthHandler 认证相关接口；Token 由外部身份服务签发，这里只负责当前身份与登出
type AuthHandler struct {
	revoker TokenRevoker
	logger  *zap.Logger
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(revoker TokenRevoker, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{revoker: revoker, logger: logger}
}

// Me 当前身份
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}
	response.OK(c, "success", gin.H{
		"user_id": claims.UserID,
		"role":    claims.Role,
	})
}

// Logout 吊销当前 Access Token，剩余有效期内不可再用
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	if h.revoker != nil && claims.ID != "" {
		if err := h.revoker.BlacklistToken(c.Request.Context(), claims.ID, claims.RemainingTTL()); err != nil {
			h.logger.Error("写入 Token 黑名单失败", zap.String("user_id", claims.UserID), zap.Error(err))
			response.InternalError(c)
			return
		}
	}

	response.OK(c, "logged out", nil)
}
