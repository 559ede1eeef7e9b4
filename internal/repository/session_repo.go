package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
)

// SessionRepository 经营周期数据访问接口
type SessionRepository interface {
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetCurrent(ctx context.Context) (*model.Session, error)
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := conn(ctx, r.db).
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCurrent 当前生效的经营周期；多条 is_active 时取开始日期最新的一条
func (r *sessionRepo) GetCurrent(ctx context.Context) (*model.Session, error) {
	var session model.Session
	err := conn(ctx, r.db).
		Where("is_active = ?", true).
		Order("start_date DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActivityLogRepository 操作日志数据访问接口
type ActivityLogRepository interface {
	Create(ctx context.Context, log *model.ActivityLog) error
}

type activityLogRepo struct {
	db *gorm.DB
}

// NewActivityLogRepo 创建 ActivityLogRepository 实例
func NewActivityLogRepo(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepo{db: db}
}

// Create 写入操作日志；失败只回滚到自己的 SAVEPOINT
func (r *activityLogRepo) Create(ctx context.Context, log *model.ActivityLog) error {
	return isolated(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(log).Error
	})
}
