package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Assignment  AssignmentRepository
	Worker      WorkerRepository
	Pitak       PitakRepository
	Session     SessionRepository
	ActivityLog ActivityLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Assignment:  NewAssignmentRepo(db),
		Worker:      NewWorkerRepo(db),
		Pitak:       NewPitakRepo(db),
		Session:     NewSessionRepo(db),
		ActivityLog: NewActivityLogRepo(db),
	}
}
