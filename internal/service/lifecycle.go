package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/metrics"
)

// allowedTransitions 状态只能前进：active → completed | cancelled
var allowedTransitions = map[model.AssignmentStatus]map[model.AssignmentStatus]bool{
	model.AssignmentActive: {
		model.AssignmentCompleted: true,
		model.AssignmentCancelled: true,
	},
}

// ValidateTransition 校验状态流转是否合法
func ValidateTransition(from, to model.AssignmentStatus) error {
	if !to.Valid() {
		return pkgerrors.Validationf("Invalid status: %s", to)
	}
	if from == to {
		return pkgerrors.Conflictf("Assignment is already %s", from)
	}
	if allowedTransitions[from][to] {
		return nil
	}
	switch from {
	case model.AssignmentCompleted:
		if to == model.AssignmentCancelled {
			return pkgerrors.Conflictf("Cannot cancel a completed assignment")
		}
		return pkgerrors.Conflictf("Cannot reactivate a completed assignment")
	case model.AssignmentCancelled:
		return pkgerrors.Conflictf("Cannot change status of a cancelled assignment")
	}
	return pkgerrors.Conflictf("Cannot change status from %s to %s", from, to)
}

// LifecycleService 已有派工的变更：状态、工作量、改派、备注
//
// 每次变更都追加一条备注并记录操作日志；所在地块已关闭时拒绝一切变更。
type LifecycleService interface {
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest, actorID string) (*dto.AssignmentResponse, error)
	UpdateLuwang(ctx context.Context, id string, req *dto.UpdateLuwangRequest, actorID string) (*dto.AssignmentResponse, error)
	Reassign(ctx context.Context, id string, req *dto.ReassignRequest, actorID string) (*dto.AssignmentResponse, error)
	AddNote(ctx context.Context, id string, req *dto.AddNoteRequest, actorID string) (*dto.AssignmentResponse, error)
}

type lifecycleService struct {
	repo         *repository.Repository
	availability AvailabilityValidator
	activity     ActivityLogger
	metrics      metrics.Recorder
	logger       *zap.Logger
}

// NewLifecycleService 创建 LifecycleService 实例
func NewLifecycleService(
	repo *repository.Repository,
	availability AvailabilityValidator,
	activity ActivityLogger,
	rec metrics.Recorder,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		repo:         repo,
		availability: availability,
		activity:     activity,
		metrics:      rec,
		logger:       logger,
	}
}

// requireOpenPitak 地块已关闭（或不存在）时拒绝修改其下派工
func (s *lifecycleService) requireOpenPitak(ctx context.Context, a *model.Assignment) error {
	pitak, err := s.availability.CheckPitakEligibility(ctx, a.PitakID)
	if err != nil {
		return err
	}
	if pitak.Valid {
		return nil
	}
	return pkgerrors.Conflictf("Assignment %s cannot be modified: %s", a.AssignmentID, pitak.Message)
}

func (s *lifecycleService) save(ctx context.Context, a *model.Assignment, actorID string) error {
	a.UpdatedBy = &actorID
	if err := s.repo.Assignment.Update(ctx, a); err != nil {
		s.logger.Warn("更新派工失败", zap.String("assignment_id", a.AssignmentID), zap.Error(err))
		return writeErr(err, "update assignment %s", a.AssignmentID)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// UpdateStatus 状态流转
// ═══════════════════════════════════════════════════════════

func (s *lifecycleService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest, actorID string) (*dto.AssignmentResponse, error) {
	a, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	from := a.Status
	to := model.AssignmentStatus(strings.TrimSpace(req.Status))
	if err := ValidateTransition(from, to); err != nil {
		return nil, err
	}
	if err := s.requireOpenPitak(ctx, a); err != nil {
		return nil, err
	}

	a.Status = to
	a.AppendNote(model.NewNote(actorID, model.NoteStatusChange, strings.TrimSpace(req.Note), map[string]string{
		"from": string(from),
		"to":   string(to),
	}))
	if err := s.save(ctx, a, actorID); err != nil {
		return nil, err
	}

	s.metrics.StatusTransition(string(from), string(to))
	s.activity.Log(ctx, actorID, ActionAssignmentStatus,
		fmt.Sprintf("Assignment %s status changed from %s to %s", a.AssignmentID, from, to))
	s.logger.Info("派工状态变更",
		zap.String("assignment_id", a.AssignmentID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	resp := toAssignmentResponse(a)
	return &resp, nil
}

// ═══════════════════════════════════════════════════════════
// UpdateLuwang 工作量调整
// ═══════════════════════════════════════════════════════════

func (s *lifecycleService) UpdateLuwang(ctx context.Context, id string, req *dto.UpdateLuwangRequest, actorID string) (*dto.AssignmentResponse, error) {
	if req.LuwangCount == nil {
		return nil, pkgerrors.Validationf("luwang count is required")
	}
	if req.LuwangCount.IsNegative() {
		return nil, pkgerrors.Validationf("Luwang count cannot be negative")
	}

	a, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AssignmentActive {
		return nil, pkgerrors.Conflictf("Cannot update luwang of a %s assignment", a.Status)
	}
	if err := s.requireOpenPitak(ctx, a); err != nil {
		return nil, err
	}

	previous := a.LuwangCount
	next := Round2(*req.LuwangCount)
	a.LuwangCount = next
	a.AppendNote(model.NewNote(actorID, model.NoteLuwangUpdate, strings.TrimSpace(req.Note), map[string]string{
		"previous": formatLuwang(previous),
		"new":      formatLuwang(next),
		"delta":    formatLuwang(next.Sub(previous)),
	}))
	if err := s.save(ctx, a, actorID); err != nil {
		return nil, err
	}

	s.activity.Log(ctx, actorID, ActionAssignmentLuwang,
		fmt.Sprintf("Assignment %s luwang changed from %s to %s", a.AssignmentID, formatLuwang(previous), formatLuwang(next)))

	resp := toAssignmentResponse(a)
	return &resp, nil
}

// ═══════════════════════════════════════════════════════════
// Reassign 改派
// ═══════════════════════════════════════════════════════════

func (s *lifecycleService) Reassign(ctx context.Context, id string, req *dto.ReassignRequest, actorID string) (*dto.AssignmentResponse, error) {
	newWorkerID := strings.TrimSpace(req.WorkerID)
	if newWorkerID == "" {
		return nil, pkgerrors.Validationf("new worker id is required")
	}

	a, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AssignmentActive {
		return nil, pkgerrors.Conflictf("Cannot reassign a %s assignment", a.Status)
	}
	if a.WorkerID == newWorkerID {
		return nil, pkgerrors.Validationf("Assignment %s is already assigned to worker %s", a.AssignmentID, newWorkerID)
	}
	if err := s.requireOpenPitak(ctx, a); err != nil {
		return nil, err
	}

	workers, err := s.availability.CheckWorkerEligibility(ctx, []string{newWorkerID})
	if err != nil {
		return nil, err
	}
	if err := workers.Err(); err != nil {
		return nil, err
	}

	onPitak, err := s.availability.FindConflictingActive(ctx, []string{newWorkerID}, a.PitakID)
	if err != nil {
		return nil, err
	}
	if len(onPitak) > 0 {
		return nil, pkgerrors.Conflictf("Worker %s already has active assignment %s on pitak %s",
			newWorkerID, onPitak[0].AssignmentID, a.PitakID)
	}
	onDate, err := s.availability.FindActiveOnDate(ctx, []string{newWorkerID}, a.AssignmentDate)
	if err != nil {
		return nil, err
	}
	if len(onDate) > 0 {
		return nil, pkgerrors.Conflictf("Worker %s already has active assignment %s on %s",
			newWorkerID, onDate[0].AssignmentID, a.AssignmentDate.Format(model.DateLayout))
	}

	oldWorkerID := a.WorkerID
	a.WorkerID = newWorkerID
	a.Worker = workers.Workers[newWorkerID]
	a.AppendNote(model.NewNote(actorID, model.NoteReassignment, strings.TrimSpace(req.Note), map[string]string{
		"old_worker_id": oldWorkerID,
		"new_worker_id": newWorkerID,
	}))
	if err := s.save(ctx, a, actorID); err != nil {
		return nil, err
	}

	s.activity.Log(ctx, actorID, ActionAssignmentReassign,
		fmt.Sprintf("Assignment %s reassigned from worker %s to worker %s", a.AssignmentID, oldWorkerID, newWorkerID))
	s.logger.Info("派工改派",
		zap.String("assignment_id", a.AssignmentID),
		zap.String("old_worker_id", oldWorkerID),
		zap.String("new_worker_id", newWorkerID),
	)

	resp := toAssignmentResponse(a)
	return &resp, nil
}

// ═══════════════════════════════════════════════════════════
// AddNote 追加备注
// ═══════════════════════════════════════════════════════════

func (s *lifecycleService) AddNote(ctx context.Context, id string, req *dto.AddNoteRequest, actorID string) (*dto.AssignmentResponse, error) {
	text := strings.TrimSpace(req.Note)
	if text == "" {
		return nil, pkgerrors.Validationf("note cannot be empty")
	}

	a, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, pkgerrors.Conflictf("Cannot add notes to a %s assignment", a.Status)
	}
	if err := s.requireOpenPitak(ctx, a); err != nil {
		return nil, err
	}

	a.AppendNote(model.NewNote(actorID, model.NoteRemark, text, nil))
	if err := s.save(ctx, a, actorID); err != nil {
		return nil, err
	}

	s.activity.Log(ctx, actorID, ActionAssignmentNote, fmt.Sprintf("Note added to assignment %s", a.AssignmentID))

	resp := toAssignmentResponse(a)
	return &resp, nil
}
