package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// ── Mock AssignmentRepository ──
// 与数据库一致：两条 active 唯一规则 + 乐观锁

type mockAssignmentRepo struct {
	items  map[string]*model.Assignment
	seq    int
	writes int
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{items: make(map[string]*model.Assignment)}
}

func cloneAssignment(a *model.Assignment) *model.Assignment {
	c := *a
	c.Notes = append([]model.NoteEntry(nil), a.Notes...)
	return &c
}

func (m *mockAssignmentRepo) conflicts(a *model.Assignment) bool {
	if a.Status != model.AssignmentActive {
		return false
	}
	for _, other := range m.items {
		if other.AssignmentID == a.AssignmentID || other.Status != model.AssignmentActive || other.WorkerID != a.WorkerID {
			continue
		}
		if other.PitakID == a.PitakID || other.AssignmentDate.Equal(a.AssignmentDate) {
			return true
		}
	}
	return false
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	if a, ok := m.items[id]; ok {
		return cloneAssignment(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) match(a *model.Assignment, f repository.AssignmentFilter) bool {
	if f.SessionID != "" && a.SessionID != f.SessionID {
		return false
	}
	if len(f.WorkerIDs) > 0 {
		found := false
		for _, id := range f.WorkerIDs {
			if id == a.WorkerID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.PitakID != "" && a.PitakID != f.PitakID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Date != nil && !a.AssignmentDate.Equal(model.NormalizeDate(*f.Date)) {
		return false
	}
	if f.DateFrom != nil && a.AssignmentDate.Before(model.NormalizeDate(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && a.AssignmentDate.After(model.NormalizeDate(*f.DateTo)) {
		return false
	}
	return true
}

func (m *mockAssignmentRepo) List(_ context.Context, f repository.AssignmentFilter) ([]model.Assignment, int64, error) {
	var out []model.Assignment
	for _, a := range m.items {
		if m.match(a, f) {
			out = append(out, *cloneAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignmentDate.Equal(out[j].AssignmentDate) {
			return out[i].AssignmentDate.After(out[j].AssignmentDate)
		}
		return out[i].AssignmentID < out[j].AssignmentID
	})
	total := int64(len(out))
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, total, nil
		}
		end := f.Offset + f.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[f.Offset:end]
	}
	return out, total, nil
}

func (m *mockAssignmentRepo) Count(ctx context.Context, f repository.AssignmentFilter) (int64, error) {
	_, total, err := m.List(ctx, repository.AssignmentFilter{
		SessionID: f.SessionID, WorkerIDs: f.WorkerIDs, PitakID: f.PitakID, Status: f.Status,
		Date: f.Date, DateFrom: f.DateFrom, DateTo: f.DateTo,
	})
	return total, err
}

func (m *mockAssignmentRepo) findActive(pred func(a *model.Assignment) bool) []model.Assignment {
	var out []model.Assignment
	for _, a := range m.items {
		if a.Status == model.AssignmentActive && pred(a) {
			out = append(out, *cloneAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (m *mockAssignmentRepo) FindActiveByWorkersAndPitak(_ context.Context, workerIDs []string, pitakID string) ([]model.Assignment, error) {
	return m.findActive(func(a *model.Assignment) bool {
		return contains(workerIDs, a.WorkerID) && a.PitakID == pitakID
	}), nil
}

func (m *mockAssignmentRepo) FindActiveByWorkersOnDate(_ context.Context, workerIDs []string, date time.Time) ([]model.Assignment, error) {
	day := model.NormalizeDate(date)
	return m.findActive(func(a *model.Assignment) bool {
		return contains(workerIDs, a.WorkerID) && a.AssignmentDate.Equal(day)
	}), nil
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *model.Assignment) error {
	a.AssignmentDate = model.NormalizeDate(a.AssignmentDate)
	if a.Status == "" {
		a.Status = model.AssignmentActive
	}
	if m.conflicts(a) {
		return repository.ErrDuplicateActive
	}
	m.seq++
	if a.AssignmentID == "" {
		a.AssignmentID = fmt.Sprintf("asg-%03d", m.seq)
	}
	a.Version = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.AssignmentID] = cloneAssignment(a)
	m.writes++
	return nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, a *model.Assignment) error {
	stored, ok := m.items[a.AssignmentID]
	if !ok || stored.Version != a.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if m.conflicts(a) {
		return repository.ErrDuplicateActive
	}
	a.Version++
	a.UpdatedAt = time.Now()
	m.items[a.AssignmentID] = cloneAssignment(a)
	m.writes++
	return nil
}

// put 直接写入一条记录（不做约束检查）
func (m *mockAssignmentRepo) put(a model.Assignment) *model.Assignment {
	if a.Version == 0 {
		a.Version = 1
	}
	if a.Status == "" {
		a.Status = model.AssignmentActive
	}
	a.AssignmentDate = model.NormalizeDate(a.AssignmentDate)
	m.items[a.AssignmentID] = cloneAssignment(&a)
	return m.items[a.AssignmentID]
}

// ── Mock WorkerRepository ──

type mockWorkerRepo struct {
	workers map[string]*model.Worker
	err     error
}

func newMockWorkerRepo() *mockWorkerRepo {
	return &mockWorkerRepo{workers: make(map[string]*model.Worker)}
}

func (m *mockWorkerRepo) GetByID(_ context.Context, id string) (*model.Worker, error) {
	if m.err != nil {
		return nil, m.err
	}
	if w, ok := m.workers[id]; ok {
		c := *w
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkerRepo) ListByIDs(_ context.Context, ids []string) ([]model.Worker, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Worker
	for _, id := range ids {
		if w, ok := m.workers[id]; ok {
			out = append(out, *w)
		}
	}
	return out, nil
}

// ── Mock PitakRepository ──

type mockPitakRepo struct {
	pitaks map[string]*model.Pitak
}

func newMockPitakRepo() *mockPitakRepo {
	return &mockPitakRepo{pitaks: make(map[string]*model.Pitak)}
}

func (m *mockPitakRepo) GetByID(_ context.Context, id string) (*model.Pitak, error) {
	if p, ok := m.pitaks[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock SessionRepository ──

type mockSessionRepo struct {
	sessions map[string]*model.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) GetCurrent(_ context.Context) (*model.Session, error) {
	for _, s := range m.sessions {
		if s.IsActive {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ActivityLogRepository ──

type mockActivityLogRepo struct {
	logs []model.ActivityLog
	err  error
}

func (m *mockActivityLogRepo) Create(_ context.Context, log *model.ActivityLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockActivityLogRepo) actions() []string {
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

// ── 测试夹具 ──

const testSession = "session-1"

type testEnv struct {
	svc         *Service
	assignments *mockAssignmentRepo
	workers     *mockWorkerRepo
	pitaks      *mockPitakRepo
	sessions    *mockSessionRepo
	activity    *mockActivityLogRepo
}

// setupTestService 4 名在职工人 + 1 名离职工人；p-1(100)、p-2(60) 开放，p-closed 已关闭
func setupTestService(t *testing.T, policy string) *testEnv {
	t.Helper()

	env := &testEnv{
		assignments: newMockAssignmentRepo(),
		workers:     newMockWorkerRepo(),
		pitaks:      newMockPitakRepo(),
		sessions:    newMockSessionRepo(),
		activity:    &mockActivityLogRepo{},
	}
	for _, id := range []string{"w-1", "w-2", "w-3", "w-4"} {
		env.workers.workers[id] = &model.Worker{WorkerID: id, Name: "Worker " + id, Status: model.WorkerActive}
	}
	env.workers.workers["w-off"] = &model.Worker{WorkerID: "w-off", Name: "Retired", Status: model.WorkerInactive}

	env.pitaks.pitaks["p-1"] = &model.Pitak{PitakID: "p-1", Location: "North", TotalLuwang: decimal.NewFromInt(100), Status: model.PitakActive}
	env.pitaks.pitaks["p-2"] = &model.Pitak{PitakID: "p-2", Location: "East", TotalLuwang: decimal.NewFromInt(60), Status: model.PitakActive}
	env.pitaks.pitaks["p-closed"] = &model.Pitak{PitakID: "p-closed", Location: "South", TotalLuwang: decimal.NewFromInt(40), Status: model.PitakCompleted}

	env.sessions.sessions[testSession] = &model.Session{
		SessionID: testSession,
		Name:      "Wet Season",
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local),
		EndDate:   time.Date(2025, 11, 30, 0, 0, 0, 0, time.Local),
		IsActive:  true,
	}

	repo := &repository.Repository{
		Assignment:  env.assignments,
		Worker:      env.workers,
		Pitak:       env.pitaks,
		Session:     env.sessions,
		ActivityLog: env.activity,
	}
	cfg := &config.Config{Assignment: config.AssignmentConfig{
		RoundingPolicy: policy,
		MaxBatchSize:   100,
		ImportColumns:  config.DefaultImportColumns(),
	}}
	env.svc = NewService(cfg, repo, nil, zap.NewNop())
	return env
}

// seedActive 直接写入一条 active 派工
func (e *testEnv) seedActive(id, workerID, pitakID, date string, luwang int64) *model.Assignment {
	d, err := model.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return e.assignments.put(model.Assignment{
		AssignmentID:   id,
		WorkerID:       workerID,
		PitakID:        pitakID,
		SessionID:      testSession,
		LuwangCount:    decimal.NewFromInt(luwang),
		AssignmentDate: d,
		Status:         model.AssignmentActive,
		Notes:          []model.NoteEntry{model.NewNote("seed", model.NoteCreated, "", nil)},
	})
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

func kindOf(t *testing.T, err error, want pkgerrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("期望 %s 错误，实际为 nil", want)
	}
	if got := pkgerrors.KindOf(err); got != want {
		t.Fatalf("期望 %s 错误，实际 %s: %v", want, got, err)
	}
}

var errBoom = errors.New("boom")
