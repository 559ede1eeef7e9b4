package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/metrics"
)

// BulkService 批量派工：逐条校验、逐条写入，部分成功
type BulkService interface {
	// CreateBatch 全部条目校验失败时同时返回结果与 Validation 错误，
	// 调用方可把失败明细随错误一起返回
	CreateBatch(ctx context.Context, items []dto.BulkAssignmentItem, sessionID, actorID string) (*dto.BulkResult, error)
}

type bulkService struct {
	repo         *repository.Repository
	availability AvailabilityValidator
	quota        QuotaCalculator
	activity     ActivityLogger
	metrics      metrics.Recorder
	logger       *zap.Logger
	maxBatch     int
}

// NewBulkService 创建 BulkService 实例
func NewBulkService(
	repo *repository.Repository,
	availability AvailabilityValidator,
	quota QuotaCalculator,
	activity ActivityLogger,
	rec metrics.Recorder,
	logger *zap.Logger,
	maxBatch int,
) BulkService {
	return newBulkService(repo, availability, quota, activity, rec, logger, maxBatch)
}

func newBulkService(
	repo *repository.Repository,
	availability AvailabilityValidator,
	quota QuotaCalculator,
	activity ActivityLogger,
	rec metrics.Recorder,
	logger *zap.Logger,
	maxBatch int,
) *bulkService {
	return &bulkService{
		repo:         repo,
		availability: availability,
		quota:        quota,
		activity:     activity,
		metrics:      rec,
		logger:       logger,
		maxBatch:     maxBatch,
	}
}

// batchOptions 区分批量派工与文件导入
type batchOptions struct {
	path     string
	noteKind model.NoteKind
	action   string
}

// validItem 通过校验的条目
type validItem struct {
	index  int
	item   dto.BulkAssignmentItem
	date   time.Time
	worker *model.Worker
	pitak  *model.Pitak
}

func (s *bulkService) CreateBatch(ctx context.Context, items []dto.BulkAssignmentItem, sessionID, actorID string) (*dto.BulkResult, error) {
	return s.run(ctx, items, sessionID, actorID, batchOptions{
		path:     pathBulk,
		noteKind: model.NoteCreated,
		action:   ActionAssignmentBulk,
	})
}

// ═══════════════════════════════════════════════════════════
// run 批量流程
// ═══════════════════════════════════════════════════════════
//
//  1. 经营周期检查（整体失败）
//  2. 逐条校验：必填、日期、工作量、工人与地块资格 → failed
//  3. 逐条冲突检查后写入：已有 active 记录或写入冲突 → skipped
//  4. 汇总，记录操作日志

func (s *bulkService) run(ctx context.Context, items []dto.BulkAssignmentItem, sessionID, actorID string, opts batchOptions) (*dto.BulkResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, pkgerrors.Validationf("at least one assignment is required")
	}
	if s.maxBatch > 0 && len(items) > s.maxBatch {
		return nil, pkgerrors.Validationf("Batch of %d assignments exceeds the limit of %d", len(items), s.maxBatch)
	}

	result := &dto.BulkResult{
		Created: []dto.AssignmentResponse{},
		Skipped: []dto.BulkSkip{},
		Failed:  []dto.BulkFailure{},
	}

	// 2. 逐条校验
	valid := s.validate(ctx, items, result)
	if len(valid) == 0 {
		s.summarize(result, len(items), decimal.Zero, opts.path)
		return result, pkgerrors.Validationf("All %d assignment requests failed validation", len(items))
	}

	// 未指定工作量的条目按同一地块同一日期的人数平分
	groupSize := make(map[string]int)
	for _, v := range valid {
		if v.item.LuwangCount == nil {
			groupSize[groupKey(v.pitak.PitakID, v.date)]++
		}
	}

	// 3. 冲突检查 + 写入
	totalLuwang := decimal.Zero
	for _, v := range valid {
		if skip := s.checkConflict(ctx, v); skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}

		luwang := s.quota.Distribute(nil, v.pitak.TotalLuwang, groupSize[groupKey(v.pitak.PitakID, v.date)])
		if v.item.LuwangCount != nil {
			luwang = Round2(*v.item.LuwangCount)
		}

		a := &model.Assignment{
			WorkerID:       v.worker.WorkerID,
			PitakID:        v.pitak.PitakID,
			SessionID:      sessionID,
			LuwangCount:    luwang,
			AssignmentDate: v.date,
			Status:         model.AssignmentActive,
		}
		a.CreatedBy = &actorID
		a.UpdatedBy = &actorID
		a.AppendNote(model.NewNote(actorID, opts.noteKind, strings.TrimSpace(v.item.Notes), map[string]string{
			"session_id":  sessionID,
			"batch_index": strconv.Itoa(v.index),
		}))

		if err := s.repo.Assignment.Create(ctx, a); err != nil {
			reason := "Failed to persist assignment: " + err.Error()
			if errors.Is(err, repository.ErrDuplicateActive) {
				reason = fmt.Sprintf("Worker %s already has an active assignment on pitak %s or on %s",
					v.worker.WorkerID, v.pitak.PitakID, v.date.Format(model.DateLayout))
			} else {
				s.logger.Warn("批量派工写入失败", zap.Int("index", v.index), zap.Error(err))
			}
			result.Skipped = append(result.Skipped, dto.BulkSkip{Index: v.index, Reason: reason})
			continue
		}
		a.Worker = v.worker
		a.Pitak = v.pitak
		result.Created = append(result.Created, toAssignmentResponse(a))
		totalLuwang = totalLuwang.Add(luwang)
	}

	// 4. 汇总
	s.summarize(result, len(items), totalLuwang, opts.path)
	s.activity.Log(ctx, actorID, opts.action, fmt.Sprintf(
		"Batch of %d: created %d, skipped %d, failed %d",
		len(items), result.Summary.Created, result.Summary.Skipped, result.Summary.Failed))
	s.logger.Info("批量派工完成",
		zap.String("path", opts.path),
		zap.Int("total", len(items)),
		zap.Int("created", result.Summary.Created),
		zap.Int("skipped", result.Summary.Skipped),
		zap.Int("failed", result.Summary.Failed),
	)
	return result, nil
}

// validate 逐条校验；工人与地块的查询结果按 ID 缓存
func (s *bulkService) validate(ctx context.Context, items []dto.BulkAssignmentItem, result *dto.BulkResult) []validItem {
	workerCache := make(map[string]*WorkerEligibility)
	pitakCache := make(map[string]*PitakEligibility)

	valid := make([]validItem, 0, len(items))
	for i, item := range items {
		var reasons []string
		v := validItem{index: i, item: item}

		workerID := strings.TrimSpace(item.WorkerID)
		pitakID := strings.TrimSpace(item.PitakID)
		if workerID == "" {
			reasons = append(reasons, "worker id is required")
		}
		if pitakID == "" {
			reasons = append(reasons, "pitak id is required")
		}
		date, err := parseAssignmentDate(item.AssignmentDate)
		if err != nil {
			reasons = append(reasons, err.Error())
		}
		v.date = date
		if item.LuwangCount != nil && item.LuwangCount.IsNegative() {
			reasons = append(reasons, "Luwang count cannot be negative")
		}

		if workerID != "" {
			we, ok := workerCache[workerID]
			if !ok {
				if we, err = s.availability.CheckWorkerEligibility(ctx, []string{workerID}); err != nil {
					reasons = append(reasons, err.Error())
				} else {
					workerCache[workerID] = we
				}
			}
			if we != nil {
				if !we.Valid {
					reasons = append(reasons, we.Message)
				} else {
					v.worker = we.Workers[workerID]
				}
			}
		}

		if pitakID != "" {
			pe, ok := pitakCache[pitakID]
			if !ok {
				if pe, err = s.availability.CheckPitakEligibility(ctx, pitakID); err != nil {
					reasons = append(reasons, err.Error())
				} else {
					pitakCache[pitakID] = pe
				}
			}
			if pe != nil {
				if !pe.Valid {
					reasons = append(reasons, pe.Message)
				} else {
					v.pitak = pe.Pitak
				}
			}
		}

		if len(reasons) > 0 {
			result.Failed = append(result.Failed, dto.BulkFailure{Index: i, Reasons: reasons})
			continue
		}
		valid = append(valid, v)
	}
	return valid
}

// checkConflict 工人在该地块或该日期已有 active 记录时返回 skip 条目
func (s *bulkService) checkConflict(ctx context.Context, v validItem) *dto.BulkSkip {
	workerIDs := []string{v.worker.WorkerID}

	onPitak, err := s.availability.FindConflictingActive(ctx, workerIDs, v.pitak.PitakID)
	if err != nil {
		return &dto.BulkSkip{Index: v.index, Reason: err.Error()}
	}
	if len(onPitak) > 0 {
		return &dto.BulkSkip{
			Index:         v.index,
			Reason:        fmt.Sprintf("Worker %s already has active assignment on pitak %s", v.worker.WorkerID, v.pitak.PitakID),
			ConflictingID: onPitak[0].AssignmentID,
		}
	}

	onDate, err := s.availability.FindActiveOnDate(ctx, workerIDs, v.date)
	if err != nil {
		return &dto.BulkSkip{Index: v.index, Reason: err.Error()}
	}
	if len(onDate) > 0 {
		return &dto.BulkSkip{
			Index:         v.index,
			Reason:        fmt.Sprintf("Worker %s already has active assignment on %s", v.worker.WorkerID, v.date.Format(model.DateLayout)),
			ConflictingID: onDate[0].AssignmentID,
		}
	}
	return nil
}

func (s *bulkService) summarize(result *dto.BulkResult, total int, totalLuwang decimal.Decimal, path string) {
	result.Summary = dto.BulkSummary{
		Total:       total,
		Created:     len(result.Created),
		Skipped:     len(result.Skipped),
		Failed:      len(result.Failed),
		TotalLuwang: formatLuwang(totalLuwang),
	}
	s.metrics.AssignmentsCreated(path, result.Summary.Created)
	s.metrics.BatchItems(path, "created", result.Summary.Created)
	s.metrics.BatchItems(path, "skipped", result.Summary.Skipped)
	s.metrics.BatchItems(path, "failed", result.Summary.Failed)
}

func groupKey(pitakID string, date time.Time) string {
	return pitakID + "|" + date.Format(model.DateLayout)
}
