package service

import (
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Session      SessionService
	Availability AvailabilityValidator
	Quota        QuotaCalculator
	Activity     ActivityLogger
	Assignment   AssignmentService
	Lifecycle    LifecycleService
	Bulk         BulkService
	Import       ImportService
	Reconcile    ReconcileService
	Export       ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rec metrics.Recorder,
	logger *zap.Logger,
) *Service {
	if rec == nil {
		rec = metrics.NewNop()
	}
	availability := NewAvailabilityValidator(repo, logger)
	quota := NewQuotaCalculator(cfg.Assignment.RoundingPolicy)
	activity := NewActivityLogger(repo, logger)
	bulk := newBulkService(repo, availability, quota, activity, rec, logger, cfg.Assignment.MaxBatchSize)

	return &Service{
		Session:      NewSessionService(repo, logger),
		Availability: availability,
		Quota:        quota,
		Activity:     activity,
		Assignment:   NewAssignmentService(repo, availability, quota, activity, rec, logger),
		Lifecycle:    NewLifecycleService(repo, availability, activity, rec, logger),
		Bulk:         bulk,
		Import:       newImportService(bulk, cfg.Assignment.ImportColumns, logger),
		Reconcile:    NewReconcileService(repo, availability, activity, rec, logger),
		Export:       NewExportService(repo, logger),
	}
}
