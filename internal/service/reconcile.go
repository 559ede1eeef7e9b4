package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/metrics"
)

// 冲突处理策略
const (
	ConflictSkip      = "skip"
	ConflictOverwrite = "overwrite"
	ConflictMerge     = "merge"
)

// 单条记录处理结果
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
	ActionFailed  = "failed"
)

// ReasonConflictSkipped skip 策略下命中已有 active 记录
const ReasonConflictSkipped = "conflict — skipped"

// ReconcileService 外部数据同步
//
// 以 (工人, 日期) 匹配已有 active 记录；单条记录失败不影响其余记录。
// dry run 时照常计算结果，但不写入派工表，也不记录操作日志。
type ReconcileService interface {
	Reconcile(ctx context.Context, req *dto.ReconcileRequest, sessionID, actorID string) (*dto.ReconcileResult, error)
}

type reconcileService struct {
	repo         *repository.Repository
	availability AvailabilityValidator
	activity     ActivityLogger
	metrics      metrics.Recorder
	logger       *zap.Logger
}

// NewReconcileService 创建 ReconcileService 实例
func NewReconcileService(
	repo *repository.Repository,
	availability AvailabilityValidator,
	activity ActivityLogger,
	rec metrics.Recorder,
	logger *zap.Logger,
) ReconcileService {
	return &reconcileService{
		repo:         repo,
		availability: availability,
		activity:     activity,
		metrics:      rec,
		logger:       logger,
	}
}

// syncRun 单次同步的上下文
type syncRun struct {
	sessionID string
	actorID   string
	sourceID  string
	policy    string
	dryRun    bool
	syncDate  string

	// dry run 中已"写入"的记录，按 assignment id 索引；order 保持写入顺序
	pending map[string]model.Assignment
	order   []string
}

// dry run 新建记录的临时 id 前缀，不出现在返回结果里
const dryRunIDPrefix = "dry-run:"

// stage dry run 时暂存本条记录处理后的状态，供后续记录的冲突判断使用
func (r *syncRun) stage(a *model.Assignment) {
	if !r.dryRun {
		return
	}
	if r.pending == nil {
		r.pending = make(map[string]model.Assignment)
	}
	if a.AssignmentID == "" {
		a.AssignmentID = fmt.Sprintf("%s%d", dryRunIDPrefix, len(r.order)+1)
	}
	if _, ok := r.pending[a.AssignmentID]; !ok {
		r.order = append(r.order, a.AssignmentID)
	}
	cp := *a
	cp.Notes = append(a.Notes[:0:0], a.Notes...)
	r.pending[a.AssignmentID] = cp
}

// overlay 把暂存的改动叠加到存储查询结果上，只保留仍满足 match 的 active 记录
func (r *syncRun) overlay(stored []model.Assignment, match func(*model.Assignment) bool) []model.Assignment {
	if len(r.pending) == 0 {
		return stored
	}
	out := make([]model.Assignment, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for _, a := range stored {
		seen[a.AssignmentID] = true
		if p, ok := r.pending[a.AssignmentID]; ok {
			a = p
		}
		if a.Status == model.AssignmentActive && match(&a) {
			out = append(out, a)
		}
	}
	for _, id := range r.order {
		if seen[id] {
			continue
		}
		p := r.pending[id]
		if p.Status == model.AssignmentActive && match(&p) {
			out = append(out, p)
		}
	}
	return out
}

// publicID dry run 的临时 id 对外置空
func publicID(id string) string {
	if strings.HasPrefix(id, dryRunIDPrefix) {
		return ""
	}
	return id
}

// activeOnDate 该工人在该日期的 active 记录（含 dry run 暂存）
func (s *reconcileService) activeOnDate(ctx context.Context, run *syncRun, workerID string, date time.Time) ([]model.Assignment, error) {
	stored, err := s.availability.FindActiveOnDate(ctx, []string{workerID}, date)
	if err != nil {
		return nil, err
	}
	day := date.Format(model.DateLayout)
	return run.overlay(stored, func(a *model.Assignment) bool {
		return a.WorkerID == workerID && a.AssignmentDate.Format(model.DateLayout) == day
	}), nil
}

// activeOnPitak 该工人在该地块的 active 记录（含 dry run 暂存）
func (s *reconcileService) activeOnPitak(ctx context.Context, run *syncRun, workerID, pitakID string) ([]model.Assignment, error) {
	stored, err := s.availability.FindConflictingActive(ctx, []string{workerID}, pitakID)
	if err != nil {
		return nil, err
	}
	return run.overlay(stored, func(a *model.Assignment) bool {
		return a.WorkerID == workerID && a.PitakID == pitakID
	}), nil
}

func (r *syncRun) provenance() map[string]string {
	return map[string]string{
		"source_id": r.sourceID,
		"sync_date": r.syncDate,
	}
}

// ═══════════════════════════════════════════════════════════
// Reconcile 外部同步
// ═══════════════════════════════════════════════════════════

func (s *reconcileService) Reconcile(ctx context.Context, req *dto.ReconcileRequest, sessionID, actorID string) (*dto.ReconcileResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}

	run := &syncRun{
		sessionID: sessionID,
		actorID:   actorID,
		sourceID:  strings.TrimSpace(req.SourceID),
		policy:    strings.TrimSpace(req.Options.ConflictResolution),
		dryRun:    req.Options.DryRun,
	}
	if run.sourceID == "" {
		return nil, pkgerrors.Validationf("source id is required")
	}
	switch run.policy {
	case "":
		run.policy = ConflictSkip
	case ConflictSkip, ConflictOverwrite, ConflictMerge:
	default:
		return nil, pkgerrors.Validationf("Invalid conflict resolution %q, expected skip, overwrite or merge", run.policy)
	}
	run.syncDate = time.Now().Format(model.DateLayout)
	if raw := strings.TrimSpace(req.Options.SyncDate); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return nil, pkgerrors.Validationf("Invalid sync date %q, expected %s", raw, model.DateLayout)
		}
		run.syncDate = d.Format(model.DateLayout)
	}

	result := &dto.ReconcileResult{Actions: make([]dto.RecordAction, 0, len(req.Records))}
	for i := range req.Records {
		action := s.processRecord(ctx, run, i, &req.Records[i])
		switch action.Action {
		case ActionCreated:
			result.Created++
		case ActionUpdated:
			result.Updated++
		case ActionSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		result.Actions = append(result.Actions, action)
	}

	total := len(req.Records)
	result.Summary = dto.ReconcileSummary{
		SourceID:           run.sourceID,
		Total:              total,
		Created:            result.Created,
		Updated:            result.Updated,
		Skipped:            result.Skipped,
		Failed:             result.Failed,
		SuccessRate:        successRate(total, result.Failed),
		ConflictResolution: run.policy,
		DryRun:             run.dryRun,
		SyncDate:           run.syncDate,
	}

	s.metrics.ReconcileRecords(run.policy, run.dryRun, ActionCreated, result.Created)
	s.metrics.ReconcileRecords(run.policy, run.dryRun, ActionUpdated, result.Updated)
	s.metrics.ReconcileRecords(run.policy, run.dryRun, ActionSkipped, result.Skipped)
	s.metrics.ReconcileRecords(run.policy, run.dryRun, ActionFailed, result.Failed)
	if !run.dryRun {
		s.metrics.AssignmentsCreated(pathSync, result.Created)
		s.activity.Log(ctx, actorID, ActionAssignmentSync, fmt.Sprintf(
			"Synced %d records from %s (%s): created %d, updated %d, skipped %d, failed %d",
			total, run.sourceID, run.policy, result.Created, result.Updated, result.Skipped, result.Failed))
	}
	s.logger.Info("外部同步完成",
		zap.String("source_id", run.sourceID),
		zap.String("policy", run.policy),
		zap.Bool("dry_run", run.dryRun),
		zap.Int("total", total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// processRecord 单条记录处理；任何错误或 panic 都只记为该条 failed
func (s *reconcileService) processRecord(ctx context.Context, run *syncRun, index int, rec *dto.ExternalRecord) (action dto.RecordAction) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("同步记录处理异常", zap.Int("index", index), zap.Any("panic", r))
			action = failedAction(index, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	// 1. 字段校验
	workerID := strings.TrimSpace(rec.WorkerID)
	pitakID := strings.TrimSpace(rec.PitakID)
	var reasons []string
	if workerID == "" {
		reasons = append(reasons, "worker id is required")
	}
	if pitakID == "" {
		reasons = append(reasons, "pitak id is required")
	}
	date, err := parseAssignmentDate(rec.Date)
	if err != nil {
		reasons = append(reasons, err.Error())
	}
	var status *model.AssignmentStatus
	if rec.Status != nil {
		st := model.AssignmentStatus(strings.ToLower(strings.TrimSpace(*rec.Status)))
		if !st.Valid() {
			reasons = append(reasons, fmt.Sprintf("Invalid status: %s", *rec.Status))
		}
		status = &st
	}
	if rec.LuwangCount != nil && rec.LuwangCount.IsNegative() {
		reasons = append(reasons, "Luwang count cannot be negative")
	}
	if len(reasons) > 0 {
		return failedAction(index, strings.Join(reasons, "; "))
	}

	// 2. 引用存在性
	if _, err := s.repo.Worker.GetByID(ctx, workerID); err != nil {
		return failedAction(index, lookupReason("Worker", workerID, err))
	}
	if _, err := s.repo.Pitak.GetByID(ctx, pitakID); err != nil {
		return failedAction(index, lookupReason("Pitak", pitakID, err))
	}

	// 3. 以 (工人, 日期) 匹配已有 active 记录
	existing, err := s.activeOnDate(ctx, run, workerID, date)
	if err != nil {
		return failedAction(index, err.Error())
	}
	if len(existing) == 0 {
		return s.createFromRecord(ctx, run, index, rec, workerID, pitakID, date, status)
	}

	current := existing[0]
	switch run.policy {
	case ConflictOverwrite:
		return s.overwrite(ctx, run, index, rec, &current, pitakID, status)
	case ConflictMerge:
		return s.merge(ctx, run, index, rec, &current, status)
	default:
		return dto.RecordAction{
			Index:        index,
			Action:       ActionSkipped,
			AssignmentID: publicID(current.AssignmentID),
			Reason:       ReasonConflictSkipped,
		}
	}
}

func (s *reconcileService) createFromRecord(
	ctx context.Context, run *syncRun, index int, rec *dto.ExternalRecord,
	workerID, pitakID string, date time.Time, status *model.AssignmentStatus,
) dto.RecordAction {
	if err := s.requireEligible(ctx, workerID, pitakID); err != nil {
		return failedAction(index, err.Error())
	}

	a := &model.Assignment{
		WorkerID:       workerID,
		PitakID:        pitakID,
		SessionID:      run.sessionID,
		AssignmentDate: date,
		Status:         model.AssignmentActive,
	}
	if rec.LuwangCount != nil {
		a.LuwangCount = Round2(*rec.LuwangCount)
	}
	if status != nil {
		a.Status = *status
	}

	// 新建 active 记录同样受同地块规则约束
	if a.Status == model.AssignmentActive {
		onPitak, err := s.activeOnPitak(ctx, run, workerID, pitakID)
		if err != nil {
			return failedAction(index, err.Error())
		}
		if len(onPitak) > 0 {
			return failedAction(index, fmt.Sprintf("Worker %s already has active assignment %s on pitak %s",
				workerID, onPitak[0].AssignmentID, pitakID))
		}
	}

	a.CreatedBy = &run.actorID
	a.UpdatedBy = &run.actorID
	a.AppendNote(model.NewNote(run.actorID, model.NoteSyncCreate, strings.TrimSpace(rec.Notes), run.provenance()))

	if run.dryRun {
		run.stage(a)
		return dto.RecordAction{Index: index, Action: ActionCreated}
	}
	if err := s.repo.Assignment.Create(ctx, a); err != nil {
		return failedAction(index, writeErr(err, "create assignment for worker %s", workerID).Error())
	}
	return dto.RecordAction{Index: index, Action: ActionCreated, AssignmentID: a.AssignmentID}
}

// overwrite 以外部记录整体替换地块、工作量与状态
func (s *reconcileService) overwrite(
	ctx context.Context, run *syncRun, index int, rec *dto.ExternalRecord,
	current *model.Assignment, pitakID string, status *model.AssignmentStatus,
) dto.RecordAction {
	if err := s.requireEligible(ctx, "", current.PitakID); err != nil {
		return failedAction(index, err.Error())
	}
	if pitakID != current.PitakID {
		if err := s.requireEligible(ctx, "", pitakID); err != nil {
			return failedAction(index, err.Error())
		}
	}

	payload := run.provenance()
	payload["previous_pitak_id"] = current.PitakID
	payload["previous_luwang"] = formatLuwang(current.LuwangCount)
	payload["previous_status"] = string(current.Status)

	current.PitakID = pitakID
	if rec.LuwangCount != nil {
		current.LuwangCount = Round2(*rec.LuwangCount)
	}
	if status != nil {
		current.Status = *status
	}

	if current.Status == model.AssignmentActive && pitakID != payload["previous_pitak_id"] {
		onPitak, err := s.activeOnPitak(ctx, run, current.WorkerID, pitakID)
		if err != nil {
			return failedAction(index, err.Error())
		}
		for _, other := range onPitak {
			if other.AssignmentID != current.AssignmentID {
				return failedAction(index, fmt.Sprintf("Worker %s already has active assignment %s on pitak %s",
					current.WorkerID, other.AssignmentID, pitakID))
			}
		}
	}

	current.AppendNote(model.NewNote(run.actorID, model.NoteSyncOverwrite, "", payload))
	return s.update(ctx, run, index, current)
}

// merge 只覆盖外部提供的工作量与状态，并把外部备注作为追加备注
func (s *reconcileService) merge(
	ctx context.Context, run *syncRun, index int, rec *dto.ExternalRecord,
	current *model.Assignment, status *model.AssignmentStatus,
) dto.RecordAction {
	if err := s.requireEligible(ctx, "", current.PitakID); err != nil {
		return failedAction(index, err.Error())
	}

	payload := run.provenance()
	var fields []string
	if rec.LuwangCount != nil {
		current.LuwangCount = Round2(*rec.LuwangCount)
		fields = append(fields, "luwang_count")
	}
	if status != nil {
		current.Status = *status
		fields = append(fields, "status")
	}
	payload["fields"] = strings.Join(fields, ",")

	current.AppendNote(model.NewNote(run.actorID, model.NoteSyncMerge, strings.TrimSpace(rec.Notes), payload))
	return s.update(ctx, run, index, current)
}

func (s *reconcileService) update(ctx context.Context, run *syncRun, index int, a *model.Assignment) dto.RecordAction {
	if run.dryRun {
		run.stage(a)
		return dto.RecordAction{Index: index, Action: ActionUpdated, AssignmentID: publicID(a.AssignmentID)}
	}
	a.UpdatedBy = &run.actorID
	if err := s.repo.Assignment.Update(ctx, a); err != nil {
		return failedAction(index, writeErr(err, "update assignment %s", a.AssignmentID).Error())
	}
	return dto.RecordAction{Index: index, Action: ActionUpdated, AssignmentID: a.AssignmentID}
}

// requireEligible workerID 为空时只校验地块
func (s *reconcileService) requireEligible(ctx context.Context, workerID, pitakID string) error {
	if workerID != "" {
		we, err := s.availability.CheckWorkerEligibility(ctx, []string{workerID})
		if err != nil {
			return err
		}
		if !we.Valid {
			return errors.New(we.Message)
		}
	}
	pe, err := s.availability.CheckPitakEligibility(ctx, pitakID)
	if err != nil {
		return err
	}
	if !pe.Valid {
		return errors.New(pe.Message)
	}
	return nil
}

func lookupReason(entity, id string, err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Sprintf("%s %s not found", entity, id)
	}
	return fmt.Sprintf("load %s %s: %v", strings.ToLower(entity), id, err)
}

func failedAction(index int, reason string) dto.RecordAction {
	return dto.RecordAction{Index: index, Action: ActionFailed, Reason: reason}
}

// successRate 非失败记录占比，百分数保留两位小数
func successRate(total, failed int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(total-failed)/float64(total)*10000) / 100
}
