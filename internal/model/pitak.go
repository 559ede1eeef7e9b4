package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 以下实体由外部模块维护，本服务只读

// Worker 工人表，对应 workers
type Worker struct {
	WorkerID    string  `gorm:"type:varchar(64);primaryKey"                json:"worker_id"`
	Name        string  `gorm:"type:varchar(100);not null"                 json:"name"`
	KabisilyaID *string `gorm:"type:varchar(64)"                           json:"kabisilya_id,omitempty"`
	Status      string  `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // active | inactive
	SoftDeleteModel
}

// TableName 指定表名
func (Worker) TableName() string { return "workers" }

// Worker 状态
const (
	WorkerActive   = "active"
	WorkerInactive = "inactive"
)

// BeforeCreate 生成主键
func (w *Worker) BeforeCreate(_ *gorm.DB) error {
	newID(&w.WorkerID)
	return nil
}

// Bukid 农场表，对应 bukids
type Bukid struct {
	BukidID string `gorm:"type:varchar(64);primaryKey"                json:"bukid_id"`
	Name    string `gorm:"type:varchar(100);not null"                 json:"name"`
	Status  string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	SoftDeleteModel
}

// TableName 指定表名
func (Bukid) TableName() string { return "bukids" }

// BeforeCreate 生成主键
func (b *Bukid) BeforeCreate(_ *gorm.DB) error {
	newID(&b.BukidID)
	return nil
}

// Pitak 地块表，对应 pitaks
type Pitak struct {
	PitakID     string          `gorm:"type:varchar(64);primaryKey"                json:"pitak_id"`
	BukidID     *string         `gorm:"type:varchar(64);index"                     json:"bukid_id,omitempty"`
	Location    string          `gorm:"type:varchar(200)"                          json:"location"`
	TotalLuwang decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"      json:"total_luwang"`
	Status      string          `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // active | inactive | completed
	SoftDeleteModel

	// 关联
	Bukid *Bukid `gorm:"foreignKey:BukidID;references:BukidID" json:"bukid,omitempty"`
}

// TableName 指定表名
func (Pitak) TableName() string { return "pitaks" }

// Pitak 状态；inactive 与 completed 都视为已关闭
const (
	PitakActive    = "active"
	PitakInactive  = "inactive"
	PitakCompleted = "completed"
)

// Open 地块是否可继续派工或修改派工
func (p *Pitak) Open() bool { return p.Status == PitakActive }

// BeforeCreate 生成主键
func (p *Pitak) BeforeCreate(_ *gorm.DB) error {
	newID(&p.PitakID)
	return nil
}

// Session 经营周期表，对应 sessions
type Session struct {
	SessionID string    `gorm:"type:varchar(64);primaryKey"   json:"session_id"`
	Name      string    `gorm:"type:varchar(100);not null"    json:"name"`
	StartDate time.Time `gorm:"type:date;not null"            json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"            json:"end_date"`
	IsActive  bool      `gorm:"not null;default:false;index"  json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Session) TableName() string { return "sessions" }

// BeforeCreate 生成主键
func (s *Session) BeforeCreate(_ *gorm.DB) error {
	newID(&s.SessionID)
	return nil
}

// ActivityLog 操作日志表，对应 activity_logs
type ActivityLog struct {
	ActivityLogID string    `gorm:"type:varchar(64);primaryKey"           json:"activity_log_id"`
	ActorID       string    `gorm:"type:varchar(64);not null;index"       json:"actor_id"`
	Action        string    `gorm:"type:varchar(50);not null;index"       json:"action"`
	Description   string    `gorm:"type:text;not null"                    json:"description"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"    json:"created_at"`
}

// TableName 指定表名
func (ActivityLog) TableName() string { return "activity_logs" }

// BeforeCreate 生成主键
func (l *ActivityLog) BeforeCreate(_ *gorm.DB) error {
	newID(&l.ActivityLogID)
	return nil
}
