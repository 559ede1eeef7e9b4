package service

import (
	"context"
	"strings"
	"testing"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// ── Create 测试 ──

func TestAssignmentService_Create_SplitsParcelTotal(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	req := &dto.CreateAssignmentRequest{
		WorkerIDs:      []string{"w-1", "w-2", "w-3", "w-4"},
		PitakID:        "p-1",
		AssignmentDate: "2025-07-01",
		Notes:          "harvest",
	}
	result, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if len(result) != 4 {
		t.Fatalf("期望 4 条派工，实际 %d", len(result))
	}
	for _, r := range result {
		if r.LuwangCount != "25.00" {
			t.Errorf("期望每人 25.00，实际 %s", r.LuwangCount)
		}
		if r.Status != "active" || r.SessionID != testSession {
			t.Errorf("新派工应为 active 且属于当前周期: %+v", r)
		}
		if len(r.Notes) != 1 || r.Notes[0].Kind != string(model.NoteCreated) || r.Notes[0].Message != "harvest" {
			t.Errorf("应带一条 created 备注: %+v", r.Notes)
		}
	}
	if got := env.activity.actions(); len(got) != 1 || got[0] != ActionAssignmentCreate {
		t.Errorf("应记录一条操作日志，实际 %v", got)
	}
}

func TestAssignmentService_Create_ThreeWaySplitRoundsDown(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	req := &dto.CreateAssignmentRequest{
		WorkerIDs:      []string{"w-1", "w-2", "w-3"},
		PitakID:        "p-1",
		AssignmentDate: "2025-07-01",
	}
	result, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	for _, r := range result {
		if r.LuwangCount != "33.33" {
			t.Errorf("期望 33.33，实际 %s", r.LuwangCount)
		}
	}
}

func TestAssignmentService_Create_LastAbsorbsPolicy(t *testing.T) {
	env := setupTestService(t, config.RoundingLastAbsorbs)

	req := &dto.CreateAssignmentRequest{
		WorkerIDs:      []string{"w-1", "w-2", "w-3"},
		PitakID:        "p-1",
		AssignmentDate: "2025-07-01",
	}
	result, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result[2].LuwangCount != "33.34" {
		t.Errorf("最后一人应承担差额 33.34，实际 %s", result[2].LuwangCount)
	}
}

func TestAssignmentService_Create_NoSession(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}
	_, err := env.svc.Assignment.Create(context.Background(), req, "", "u-1")
	kindOf(t, err, pkgerrors.KindPrecondition)
	if env.assignments.writes != 0 {
		t.Error("无经营周期时不应写入")
	}
}

func TestAssignmentService_Create_InactiveWorkerRejectsWholeRequest(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1", "w-off"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}
	_, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	kindOf(t, err, pkgerrors.KindConflict)
	if !strings.Contains(err.Error(), "w-off") {
		t.Errorf("错误信息应列出不合格工人: %v", err)
	}
	if env.assignments.writes != 0 {
		t.Error("任一工人不合格时不应写入任何记录")
	}
}

func TestAssignmentService_Create_UnknownWorker(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"ghost"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}
	_, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	kindOf(t, err, pkgerrors.KindNotFound)
}

func TestAssignmentService_Create_ClosedPitak(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, PitakID: "p-closed", AssignmentDate: "2025-07-01"}
	_, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	kindOf(t, err, pkgerrors.KindConflict)
}

func TestAssignmentService_Create_ValidationErrors(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *dto.CreateAssignmentRequest
	}{
		{"空工人列表", &dto.CreateAssignmentRequest{PitakID: "p-1", AssignmentDate: "2025-07-01"}},
		{"重复工人", &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1", "w-1"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}},
		{"缺少地块", &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, AssignmentDate: "2025-07-01"}},
		{"日期格式错误", &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, PitakID: "p-1", AssignmentDate: "July 1st"}},
		{"负数总量", &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, PitakID: "p-1", AssignmentDate: "2025-07-01", LuwangTotal: dec("-1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Assignment.Create(ctx, tc.req, testSession, "u-1")
			kindOf(t, err, pkgerrors.KindValidation)
		})
	}
}

func TestAssignmentService_Create_SamePitakConflict(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	existing := env.seedActive("asg-old", "w-1", "p-1", "2025-06-20", 10)

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1", "w-2"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}
	_, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	kindOf(t, err, pkgerrors.KindConflict)
	if !strings.Contains(err.Error(), existing.AssignmentID) {
		t.Errorf("错误信息应包含冲突记录 ID: %v", err)
	}
}

func TestAssignmentService_Create_SameDateConflict(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	env.seedActive("asg-old", "w-1", "p-2", "2025-07-01", 10)

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}
	_, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1")
	kindOf(t, err, pkgerrors.KindConflict)
}

// ── 查询测试 ──

func TestAssignmentService_GetByID_NotFound(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	_, err := env.svc.Assignment.GetByID(context.Background(), "missing")
	kindOf(t, err, pkgerrors.KindNotFound)
}

func TestAssignmentService_List_FiltersAndPaginates(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	env.seedActive("asg-1", "w-1", "p-1", "2025-07-01", 10)
	env.seedActive("asg-2", "w-2", "p-1", "2025-07-02", 10)
	env.seedActive("asg-3", "w-3", "p-2", "2025-07-03", 10)

	req := &dto.AssignmentListRequest{PitakID: "p-1"}
	list, total, err := env.svc.Assignment.List(context.Background(), req)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("期望 2 条，实际 total=%d len=%d", total, len(list))
	}
	if list[0].ID != "asg-2" {
		t.Errorf("应按日期倒序，首条期望 asg-2，实际 %s", list[0].ID)
	}

	req = &dto.AssignmentListRequest{DateFrom: "2025-07-02", PaginationRequest: dto.PaginationRequest{Page: 1, PageSize: 1}}
	list, total, err = env.svc.Assignment.List(context.Background(), req)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 2 || len(list) != 1 {
		t.Errorf("期望 total=2 len=1，实际 total=%d len=%d", total, len(list))
	}

	_, _, err = env.svc.Assignment.List(context.Background(), &dto.AssignmentListRequest{DateTo: "bad"})
	kindOf(t, err, pkgerrors.KindValidation)
}

func TestAssignmentService_ListNotes_FilterByKind(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	a := env.seedActive("asg-1", "w-1", "p-1", "2025-07-01", 10)
	a.Notes = append(a.Notes,
		model.NewNote("u-1", model.NoteRemark, "first", nil),
		model.NewNote("u-1", model.NoteRemark, "second", nil),
	)

	notes, err := env.svc.Assignment.ListNotes(context.Background(), "asg-1", string(model.NoteRemark))
	if err != nil {
		t.Fatalf("ListNotes 应成功: %v", err)
	}
	if len(notes) != 2 || notes[0].Message != "first" || notes[1].Message != "second" {
		t.Errorf("应按追加顺序返回 2 条 note，实际 %+v", notes)
	}

	all, err := env.svc.Assignment.ListNotes(context.Background(), "asg-1", "")
	if err != nil {
		t.Fatalf("ListNotes 应成功: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("不筛选时应返回全部 3 条，实际 %d", len(all))
	}
}

// ── Session 测试 ──

func TestSessionService_Current(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)

	id, err := env.svc.Session.CurrentID(context.Background())
	if err != nil || id != testSession {
		t.Fatalf("期望当前周期 %s，实际 %q, %v", testSession, id, err)
	}

	env.sessions.sessions[testSession].IsActive = false
	_, err = env.svc.Session.CurrentID(context.Background())
	kindOf(t, err, pkgerrors.KindPrecondition)
}

// ── ActivityLogger 测试 ──

func TestActivityLogger_FailureIsSwallowed(t *testing.T) {
	env := setupTestService(t, config.RoundingUniform)
	env.activity.err = errBoom

	req := &dto.CreateAssignmentRequest{WorkerIDs: []string{"w-1"}, PitakID: "p-1", AssignmentDate: "2025-07-01"}
	if _, err := env.svc.Assignment.Create(context.Background(), req, testSession, "u-1"); err != nil {
		t.Fatalf("操作日志写入失败不应影响派工: %v", err)
	}
	if env.assignments.writes != 1 {
		t.Errorf("期望写入 1 条派工，实际 %d", env.assignments.writes)
	}
}
