package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
)

// 操作日志动作
const (
	ActionAssignmentCreate   = "assignment.create"
	ActionAssignmentBulk     = "assignment.bulk_create"
	ActionAssignmentImport   = "assignment.import"
	ActionAssignmentStatus   = "assignment.status_change"
	ActionAssignmentLuwang   = "assignment.luwang_update"
	ActionAssignmentReassign = "assignment.reassign"
	ActionAssignmentNote     = "assignment.note"
	ActionAssignmentSync     = "assignment.sync"
)

// ActivityLogger 操作审计，尽力而为：写入失败只记日志，不影响主流程
type ActivityLogger interface {
	Log(ctx context.Context, actorID, action, description string)
}

type activityLogger struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewActivityLogger 创建 ActivityLogger 实例
func NewActivityLogger(repo *repository.Repository, logger *zap.Logger) ActivityLogger {
	return &activityLogger{repo: repo, logger: logger}
}

func (l *activityLogger) Log(ctx context.Context, actorID, action, description string) {
	entry := &model.ActivityLog{
		ActorID:     actorID,
		Action:      action,
		Description: description,
	}
	if err := l.repo.ActivityLog.Create(ctx, entry); err != nil {
		l.logger.Warn("写入操作日志失败",
			zap.String("actor_id", actorID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
