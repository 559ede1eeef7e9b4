package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssignmentStatus 派工状态
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Valid 是否为已知状态
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentActive, AssignmentCompleted, AssignmentCancelled:
		return true
	}
	return false
}

// Terminal 是否为终态
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentCancelled
}

// Assignment 工人在某日被派到某地块的记录
//
// 两条唯一约束只覆盖 active 记录：
//   - 同一工人在同一地块只能有一条 active 记录（不论日期）
//   - 同一工人在同一日期只能有一条 active 记录（不论地块）
type Assignment struct {
	AssignmentID   string                         `gorm:"type:varchar(64);primaryKey"                json:"assignment_id"`
	WorkerID       string                         `gorm:"type:varchar(64);not null;uniqueIndex:uq_assignments_active_worker_pitak,where:status = 'active' AND deleted_at IS NULL;uniqueIndex:uq_assignments_active_worker_date,where:status = 'active' AND deleted_at IS NULL" json:"worker_id"`
	PitakID        string                         `gorm:"type:varchar(64);not null;index;uniqueIndex:uq_assignments_active_worker_pitak,where:status = 'active' AND deleted_at IS NULL" json:"pitak_id"`
	SessionID      string                         `gorm:"type:varchar(64);not null;index"            json:"session_id"`
	LuwangCount    decimal.Decimal                `gorm:"type:numeric(10,2);not null;default:0"      json:"luwang_count"`
	AssignmentDate time.Time                      `gorm:"type:date;not null;uniqueIndex:uq_assignments_active_worker_date,where:status = 'active' AND deleted_at IS NULL" json:"assignment_date"`
	Status         AssignmentStatus               `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // active | completed | cancelled
	Notes          datatypes.JSONSlice[NoteEntry] `json:"notes"`
	VersionedModel

	// 关联
	Worker *Worker `gorm:"foreignKey:WorkerID;references:WorkerID" json:"worker,omitempty"`
	Pitak  *Pitak  `gorm:"foreignKey:PitakID;references:PitakID"   json:"pitak,omitempty"`
}

func (Assignment) TableName() string { return "assignments" }

// BeforeCreate 生成主键并规整日期
func (a *Assignment) BeforeCreate(_ *gorm.DB) error {
	newID(&a.AssignmentID)
	a.AssignmentDate = NormalizeDate(a.AssignmentDate)
	if a.Status == "" {
		a.Status = AssignmentActive
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

// AppendNote 追加一条备注，已有记录不做任何改动
func (a *Assignment) AppendNote(entry NoteEntry) {
	a.Notes = append(a.Notes, entry)
}
