package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// WorkerEligibility 工人资格校验结果
type WorkerEligibility struct {
	Valid    bool
	Missing  []string // 不存在的工人
	Inactive []string // 非在职的工人
	Message  string
	Workers  map[string]*model.Worker
}

// IneligibleIDs 全部不合格的工人 ID（先不存在，后非在职）
func (e *WorkerEligibility) IneligibleIDs() []string {
	return append(append([]string(nil), e.Missing...), e.Inactive...)
}

// Err 转换为带类别的错误；合格时返回 nil
func (e *WorkerEligibility) Err() error {
	if e.Valid {
		return nil
	}
	if len(e.Missing) > 0 && len(e.Inactive) == 0 {
		return pkgerrors.New(pkgerrors.KindNotFound, e.Message)
	}
	if len(e.Missing) == 0 && len(e.Inactive) == 0 {
		return pkgerrors.New(pkgerrors.KindValidation, e.Message)
	}
	return pkgerrors.New(pkgerrors.KindConflict, e.Message)
}

// PitakEligibility 地块资格校验结果
type PitakEligibility struct {
	Valid    bool
	NotFound bool
	Message  string
	Pitak    *model.Pitak
}

// Err 转换为带类别的错误；合格时返回 nil
func (e *PitakEligibility) Err() error {
	switch {
	case e.Valid:
		return nil
	case e.NotFound:
		return pkgerrors.New(pkgerrors.KindNotFound, e.Message)
	case e.Pitak == nil:
		return pkgerrors.New(pkgerrors.KindValidation, e.Message)
	default:
		return pkgerrors.New(pkgerrors.KindConflict, e.Message)
	}
}

// AvailabilityValidator 派工前置校验：工人、地块资格与 active 冲突查询
//
// 资格不合格体现在返回值中，只有存储层失败才返回 error。
type AvailabilityValidator interface {
	CheckWorkerEligibility(ctx context.Context, workerIDs []string) (*WorkerEligibility, error)
	CheckPitakEligibility(ctx context.Context, pitakID string) (*PitakEligibility, error)
	// FindConflictingActive 这些工人在该地块上已有的 active 记录
	FindConflictingActive(ctx context.Context, workerIDs []string, pitakID string) ([]model.Assignment, error)
	// FindActiveOnDate 这些工人在该日期已有的 active 记录（任意地块）
	FindActiveOnDate(ctx context.Context, workerIDs []string, date time.Time) ([]model.Assignment, error)
}

type availabilityValidator struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAvailabilityValidator 创建 AvailabilityValidator 实例
func NewAvailabilityValidator(repo *repository.Repository, logger *zap.Logger) AvailabilityValidator {
	return &availabilityValidator{repo: repo, logger: logger}
}

func (v *availabilityValidator) CheckWorkerEligibility(ctx context.Context, workerIDs []string) (*WorkerEligibility, error) {
	ids := uniqueIDs(workerIDs)
	if len(ids) == 0 {
		return &WorkerEligibility{Message: "at least one worker is required"}, nil
	}

	workers, err := v.repo.Worker.ListByIDs(ctx, ids)
	if err != nil {
		v.logger.Error("查询工人失败", zap.Strings("worker_ids", ids), zap.Error(err))
		return nil, pkgerrors.Persistence(err, "load workers")
	}

	result := &WorkerEligibility{Workers: make(map[string]*model.Worker, len(workers))}
	for i := range workers {
		result.Workers[workers[i].WorkerID] = &workers[i]
	}

	var reasons []string
	for _, id := range ids {
		w, ok := result.Workers[id]
		switch {
		case !ok:
			result.Missing = append(result.Missing, id)
			reasons = append(reasons, id+" (not found)")
		case w.Status != model.WorkerActive:
			result.Inactive = append(result.Inactive, id)
			reasons = append(reasons, id+" ("+w.Status+")")
		}
	}

	if len(reasons) == 0 {
		result.Valid = true
		return result, nil
	}
	result.Message = "Ineligible workers: " + strings.Join(reasons, ", ")
	return result, nil
}

func (v *availabilityValidator) CheckPitakEligibility(ctx context.Context, pitakID string) (*PitakEligibility, error) {
	if strings.TrimSpace(pitakID) == "" {
		return &PitakEligibility{Message: "pitak id is required"}, nil
	}

	pitak, err := v.repo.Pitak.GetByID(ctx, pitakID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &PitakEligibility{NotFound: true, Message: fmt.Sprintf("Pitak %s not found", pitakID)}, nil
		}
		v.logger.Error("查询地块失败", zap.String("pitak_id", pitakID), zap.Error(err))
		return nil, pkgerrors.Persistence(err, "load pitak %s", pitakID)
	}

	if !pitak.Open() {
		return &PitakEligibility{
			Pitak:   pitak,
			Message: fmt.Sprintf("Pitak %s is %s and cannot accept assignments", pitakID, pitak.Status),
		}, nil
	}
	return &PitakEligibility{Valid: true, Pitak: pitak}, nil
}

func (v *availabilityValidator) FindConflictingActive(ctx context.Context, workerIDs []string, pitakID string) ([]model.Assignment, error) {
	ids := uniqueIDs(workerIDs)
	if len(ids) == 0 || pitakID == "" {
		return nil, nil
	}
	list, err := v.repo.Assignment.FindActiveByWorkersAndPitak(ctx, ids, pitakID)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "look up active assignments on pitak %s", pitakID)
	}
	return list, nil
}

func (v *availabilityValidator) FindActiveOnDate(ctx context.Context, workerIDs []string, date time.Time) ([]model.Assignment, error) {
	ids := uniqueIDs(workerIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	list, err := v.repo.Assignment.FindActiveByWorkersOnDate(ctx, ids, date)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "look up active assignments on %s", date.Format(model.DateLayout))
	}
	return list, nil
}

// uniqueIDs 去空白、去重，保留首次出现顺序
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
