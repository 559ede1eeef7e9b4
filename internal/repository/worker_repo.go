package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
)

// WorkerRepository 工人数据访问接口（只读）
type WorkerRepository interface {
	GetByID(ctx context.Context, id string) (*model.Worker, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Worker, error)
}

type workerRepo struct {
	db *gorm.DB
}

// NewWorkerRepo 创建 WorkerRepository 实例
func NewWorkerRepo(db *gorm.DB) WorkerRepository {
	return &workerRepo{db: db}
}

func (r *workerRepo) GetByID(ctx context.Context, id string) (*model.Worker, error) {
	var worker model.Worker
	err := conn(ctx, r.db).
		Where("worker_id = ?", id).
		First(&worker).Error
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *workerRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Worker, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var workers []model.Worker
	err := conn(ctx, r.db).
		Where("worker_id IN ?", ids).
		Find(&workers).Error
	return workers, err
}

// PitakRepository 地块数据访问接口（只读）
type PitakRepository interface {
	GetByID(ctx context.Context, id string) (*model.Pitak, error)
}

type pitakRepo struct {
	db *gorm.DB
}

// NewPitakRepo 创建 PitakRepository 实例
func NewPitakRepo(db *gorm.DB) PitakRepository {
	return &pitakRepo{db: db}
}

func (r *pitakRepo) GetByID(ctx context.Context, id string) (*model.Pitak, error) {
	var pitak model.Pitak
	err := conn(ctx, r.db).
		Preload("Bukid").
		Where("pitak_id = ?", id).
		First(&pitak).Error
	if err != nil {
		return nil, err
	}
	return &pitak, nil
}
