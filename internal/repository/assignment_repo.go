package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// ErrDuplicateActive 违反 active 记录唯一约束（同工人同地块 / 同工人同日期）
var ErrDuplicateActive = errors.New("an active assignment already exists for this worker")

// AssignmentFilter 派工查询条件，零值字段不参与过滤
type AssignmentFilter struct {
	SessionID string
	WorkerIDs []string
	PitakID   string
	Status    model.AssignmentStatus
	Date      *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
	Offset    int
	Limit     int
}

// AssignmentRepository 派工数据访问接口
type AssignmentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	List(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, int64, error)
	Count(ctx context.Context, filter AssignmentFilter) (int64, error)
	FindActiveByWorkersAndPitak(ctx context.Context, workerIDs []string, pitakID string) ([]model.Assignment, error)
	FindActiveByWorkersOnDate(ctx context.Context, workerIDs []string, date time.Time) ([]model.Assignment, error)
	Create(ctx context.Context, assignment *model.Assignment) error
	Update(ctx context.Context, assignment *model.Assignment) error
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var assignment model.Assignment
	err := conn(ctx, r.db).
		Preload("Worker").
		Preload("Pitak").
		Preload("Pitak.Bukid").
		Where("assignment_id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) scoped(ctx context.Context, f AssignmentFilter) *gorm.DB {
	q := conn(ctx, r.db).Model(&model.Assignment{})
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if len(f.WorkerIDs) > 0 {
		q = q.Where("worker_id IN ?", f.WorkerIDs)
	}
	if f.PitakID != "" {
		q = q.Where("pitak_id = ?", f.PitakID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Date != nil {
		q = q.Where("assignment_date = ?", model.NormalizeDate(*f.Date))
	}
	if f.DateFrom != nil {
		q = q.Where("assignment_date >= ?", model.NormalizeDate(*f.DateFrom))
	}
	if f.DateTo != nil {
		q = q.Where("assignment_date <= ?", model.NormalizeDate(*f.DateTo))
	}
	return q
}

func (r *assignmentRepo) List(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, int64, error) {
	var total int64
	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.scoped(ctx, filter).
		Preload("Worker").
		Preload("Pitak").
		Preload("Pitak.Bukid").
		Order("assignment_date DESC, created_at ASC")
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}

	var assignments []model.Assignment
	if err := q.Find(&assignments).Error; err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

func (r *assignmentRepo) Count(ctx context.Context, filter AssignmentFilter) (int64, error) {
	var total int64
	err := r.scoped(ctx, filter).Count(&total).Error
	return total, err
}

func (r *assignmentRepo) FindActiveByWorkersAndPitak(ctx context.Context, workerIDs []string, pitakID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := conn(ctx, r.db).
		Where("worker_id IN ? AND pitak_id = ? AND status = ?", workerIDs, pitakID, model.AssignmentActive).
		Order("created_at ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) FindActiveByWorkersOnDate(ctx context.Context, workerIDs []string, date time.Time) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := conn(ctx, r.db).
		Where("worker_id IN ? AND assignment_date = ? AND status = ?", workerIDs, model.NormalizeDate(date), model.AssignmentActive).
		Order("created_at ASC").
		Find(&assignments).Error
	return assignments, err
}

// Create 冲突感知插入：命中唯一索引时不报错也不写入，以影响行数判断
func (r *assignmentRepo) Create(ctx context.Context, assignment *model.Assignment) error {
	return isolated(ctx, r.db, func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(assignment)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicateActive
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDuplicateActive
		}
		return nil
	})
}

// Update 乐观锁原地更新；改派或状态回写触发唯一冲突时返回 ErrDuplicateActive
func (r *assignmentRepo) Update(ctx context.Context, assignment *model.Assignment) error {
	oldVersion := assignment.Version
	return isolated(ctx, r.db, func(tx *gorm.DB) error {
		result := tx.
			Model(&model.Assignment{}).
			Where("assignment_id = ? AND version = ?", assignment.AssignmentID, oldVersion).
			Updates(map[string]interface{}{
				"worker_id":    assignment.WorkerID,
				"pitak_id":     assignment.PitakID,
				"luwang_count": assignment.LuwangCount,
				"status":       assignment.Status,
				"notes":        assignment.Notes,
				"updated_by":   assignment.UpdatedBy,
				"updated_at":   time.Now(),
				"version":      oldVersion + 1,
			})
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicateActive
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		assignment.Version = oldVersion + 1
		return nil
	})
}
