package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/metrics"
)

// 写入路径（指标标签）
const (
	pathSingle = "single"
	pathBulk   = "bulk"
	pathImport = "import"
	pathSync   = "sync"
)

// AssignmentService 派工创建与查询
type AssignmentService interface {
	// Create 把一个地块在某日派给一到多名工人，工作量按 QuotaCalculator 分配；
	// 任何一名工人不合格或冲突时整体失败
	Create(ctx context.Context, req *dto.CreateAssignmentRequest, sessionID, actorID string) ([]dto.AssignmentResponse, error)
	GetByID(ctx context.Context, id string) (*dto.AssignmentResponse, error)
	List(ctx context.Context, req *dto.AssignmentListRequest) ([]dto.AssignmentResponse, int64, error)
	// ListNotes 按类型筛选备注；kind 为空时返回全部
	ListNotes(ctx context.Context, id, kind string) ([]dto.NoteResponse, error)
}

type assignmentService struct {
	repo         *repository.Repository
	availability AvailabilityValidator
	quota        QuotaCalculator
	activity     ActivityLogger
	metrics      metrics.Recorder
	logger       *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(
	repo *repository.Repository,
	availability AvailabilityValidator,
	quota QuotaCalculator,
	activity ActivityLogger,
	rec metrics.Recorder,
	logger *zap.Logger,
) AssignmentService {
	return &assignmentService{
		repo:         repo,
		availability: availability,
		quota:        quota,
		activity:     activity,
		metrics:      rec,
		logger:       logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Create 单次派工
// ═══════════════════════════════════════════════════════════

func (s *assignmentService) Create(ctx context.Context, req *dto.CreateAssignmentRequest, sessionID, actorID string) ([]dto.AssignmentResponse, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}

	// 1. 入参校验
	workerIDs, err := normalizeWorkerList(req.WorkerIDs)
	if err != nil {
		return nil, err
	}
	pitakID := strings.TrimSpace(req.PitakID)
	if pitakID == "" {
		return nil, pkgerrors.Validationf("pitak id is required")
	}
	date, err := parseAssignmentDate(req.AssignmentDate)
	if err != nil {
		return nil, err
	}
	if req.LuwangTotal != nil && req.LuwangTotal.IsNegative() {
		return nil, pkgerrors.Validationf("Luwang total cannot be negative")
	}

	// 2. 资格校验
	workers, err := s.availability.CheckWorkerEligibility(ctx, workerIDs)
	if err != nil {
		return nil, err
	}
	if err := workers.Err(); err != nil {
		return nil, err
	}
	pitak, err := s.availability.CheckPitakEligibility(ctx, pitakID)
	if err != nil {
		return nil, err
	}
	if err := pitak.Err(); err != nil {
		return nil, err
	}

	// 3. 冲突检查：同地块、同日期两条规则都要满足
	onPitak, err := s.availability.FindConflictingActive(ctx, workerIDs, pitakID)
	if err != nil {
		return nil, err
	}
	if len(onPitak) > 0 {
		return nil, pkgerrors.Conflictf("Workers already have active assignments on pitak %s: %s",
			pitakID, describeConflicts(onPitak))
	}
	onDate, err := s.availability.FindActiveOnDate(ctx, workerIDs, date)
	if err != nil {
		return nil, err
	}
	if len(onDate) > 0 {
		return nil, pkgerrors.Conflictf("Workers already have active assignments on %s: %s",
			date.Format(model.DateLayout), describeConflicts(onDate))
	}

	// 4. 分配工作量并逐条写入
	shares := s.quota.Shares(req.LuwangTotal, pitak.Pitak.TotalLuwang, len(workerIDs))
	note := strings.TrimSpace(req.Notes)
	out := make([]dto.AssignmentResponse, 0, len(workerIDs))
	for i, workerID := range workerIDs {
		a := &model.Assignment{
			WorkerID:       workerID,
			PitakID:        pitakID,
			SessionID:      sessionID,
			LuwangCount:    shares[i],
			AssignmentDate: date,
			Status:         model.AssignmentActive,
		}
		a.CreatedBy = &actorID
		a.UpdatedBy = &actorID
		a.AppendNote(model.NewNote(actorID, model.NoteCreated, note, map[string]string{
			"session_id": sessionID,
			"luwang":     shares[i].StringFixed(2),
		}))

		if err := s.repo.Assignment.Create(ctx, a); err != nil {
			s.logger.Warn("创建派工失败",
				zap.String("worker_id", workerID),
				zap.String("pitak_id", pitakID),
				zap.Error(err),
			)
			return nil, writeErr(err, "create assignment for worker %s", workerID)
		}
		a.Worker = workers.Workers[workerID]
		a.Pitak = pitak.Pitak
		out = append(out, toAssignmentResponse(a))
	}

	s.metrics.AssignmentsCreated(pathSingle, len(out))
	s.activity.Log(ctx, actorID, ActionAssignmentCreate, fmt.Sprintf(
		"Assigned %d worker(s) to pitak %s on %s", len(out), pitakID, date.Format(model.DateLayout)))
	s.logger.Info("派工创建成功",
		zap.String("pitak_id", pitakID),
		zap.Int("workers", len(out)),
		zap.String("actor_id", actorID),
	)
	return out, nil
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *assignmentService) GetByID(ctx context.Context, id string) (*dto.AssignmentResponse, error) {
	a, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	resp := toAssignmentResponse(a)
	return &resp, nil
}

func (s *assignmentService) List(ctx context.Context, req *dto.AssignmentListRequest) ([]dto.AssignmentResponse, int64, error) {
	filter := repository.AssignmentFilter{
		SessionID: req.SessionID,
		PitakID:   req.PitakID,
		Status:    model.AssignmentStatus(req.Status),
	}
	filter.Offset, filter.Limit = req.Window()
	if req.WorkerID != "" {
		filter.WorkerIDs = []string{req.WorkerID}
	}
	var err error
	if filter.DateFrom, err = parseOptionalDate("date_from", req.DateFrom); err != nil {
		return nil, 0, err
	}
	if filter.DateTo, err = parseOptionalDate("date_to", req.DateTo); err != nil {
		return nil, 0, err
	}

	list, total, err := s.repo.Assignment.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询派工列表失败", zap.Error(err))
		return nil, 0, pkgerrors.Persistence(err, "list assignments")
	}

	out := make([]dto.AssignmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAssignmentResponse(&list[i]))
	}
	return out, total, nil
}

func (s *assignmentService) ListNotes(ctx context.Context, id, kind string) ([]dto.NoteResponse, error) {
	a, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return toNoteResponses(model.FilterNotes(a.Notes, model.NoteKind(kind))), nil
}

// ── 共用辅助 ──

// loadAssignment 按 ID 加载派工，不存在时返回 NotFound
func loadAssignment(ctx context.Context, repo *repository.Repository, id string) (*model.Assignment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.Validationf("assignment id is required")
	}
	a, err := repo.Assignment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFoundf("Assignment %s not found", id)
		}
		return nil, pkgerrors.Persistence(err, "load assignment %s", id)
	}
	return a, nil
}

// writeErr 把写入失败映射为错误类别：唯一冲突与乐观锁冲突为 Conflict，其余为 Persistence
func writeErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, repository.ErrDuplicateActive) || errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return pkgerrors.Wrap(pkgerrors.KindConflict, err, msg+": "+err.Error())
	}
	return pkgerrors.Persistence(err, "%s", msg)
}

// normalizeWorkerList 去空白；空列表与重复 ID 视为校验失败
func normalizeWorkerList(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, pkgerrors.Validationf("worker id cannot be empty")
		}
		if seen[id] {
			return nil, pkgerrors.Validationf("Worker %s is listed more than once", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, pkgerrors.Validationf("at least one worker is required")
	}
	return out, nil
}

func parseAssignmentDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, pkgerrors.Validationf("assignment date is required")
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, pkgerrors.Validationf("Invalid assignment date %q, expected %s", s, model.DateLayout)
	}
	return t, nil
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := model.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, pkgerrors.Validationf("Invalid %s %q, expected %s", field, s, model.DateLayout)
	}
	return &t, nil
}

// describeConflicts "worker-1 (assignment a-1), ..."
func describeConflicts(list []model.Assignment) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		parts = append(parts, fmt.Sprintf("%s (assignment %s)", a.WorkerID, a.AssignmentID))
	}
	return strings.Join(parts, ", ")
}

func formatLuwang(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toAssignmentResponse(a *model.Assignment) dto.AssignmentResponse {
	resp := dto.AssignmentResponse{
		ID:             a.AssignmentID,
		WorkerID:       a.WorkerID,
		PitakID:        a.PitakID,
		SessionID:      a.SessionID,
		LuwangCount:    formatLuwang(a.LuwangCount),
		AssignmentDate: a.AssignmentDate.Format(model.DateLayout),
		Status:         string(a.Status),
		Notes:          toNoteResponses(a.Notes),
		NotesText:      model.RenderNotes(a.Notes),
		Version:        a.Version,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
	if a.Worker != nil {
		resp.WorkerName = a.Worker.Name
	}
	if a.Pitak != nil {
		resp.PitakLocation = a.Pitak.Location
	}
	return resp
}

func toNoteResponses(notes []model.NoteEntry) []dto.NoteResponse {
	out := make([]dto.NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, dto.NoteResponse{
			At:      n.At.Format(time.RFC3339),
			Actor:   n.Actor,
			Kind:    string(n.Kind),
			Message: n.Message,
			Payload: n.Payload,
		})
	}
	return out
}
