package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/service"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/response"
)

// SessionHandler 经营周期接口
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// GetCurrent 当前经营周期
// GET /api/v1/sessions/current
func (h *SessionHandler) GetCurrent(c *gin.Context) {
	session, err := h.sessionSvc.Current(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, "success", session)
}
