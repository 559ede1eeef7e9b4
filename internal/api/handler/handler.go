package handler

import (
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Session    *SessionHandler
	Assignment *AssignmentHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
// revoker 为 nil 时登出只返回成功，不写黑名单
func NewHandler(svc *service.Service, txm repository.TxManager, revoker TokenRevoker, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(revoker, logger),
		Session:    NewSessionHandler(svc.Session),
		Assignment: NewAssignmentHandler(svc, txm, logger),
		Export:     NewExportHandler(svc.Export),
	}
}
