package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:varchar(64)"                   json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(64)"                   json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// newID 生成主键；主键由应用侧生成，不依赖数据库扩展函数
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// NormalizeDate 去掉时分秒，取时间值自身的日历日并落到本地零点
//
// 驱动读出的 date 列是 UTC 零点，先转本地时区会在负偏移时区错成前一天。
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// DateLayout 对外统一的日期格式
const DateLayout = "2006-01-02"

// ParseDate 解析日期，支持常见导入格式
func ParseDate(s string) (time.Time, error) {
	layouts := []string{DateLayout, "2006/01/02", "01/02/2006", time.RFC3339}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return NormalizeDate(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
