package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/testutil"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// AssignmentRepoTestSuite 基于内存 SQLite 验证存储层约束
type AssignmentRepoTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo *Repository
	txm  TxManager
	fx   *testutil.Fixture
	ctx  context.Context
}

func TestAssignmentRepoTestSuite(t *testing.T) {
	suite.Run(t, new(AssignmentRepoTestSuite))
}

func (s *AssignmentRepoTestSuite) SetupTest() {
	s.db = testutil.NewSQLiteDB(s.T())
	s.fx = testutil.Seed(s.T(), s.db)
	s.repo = NewRepository(s.db)
	s.txm = NewTxManager(s.db)
	s.ctx = context.Background()
}

func (s *AssignmentRepoTestSuite) newAssignment(workerID, pitakID string, day int) *model.Assignment {
	return &model.Assignment{
		WorkerID:       workerID,
		PitakID:        pitakID,
		SessionID:      s.fx.Session.SessionID,
		LuwangCount:    decimal.RequireFromString("33.33"),
		AssignmentDate: testutil.Day(2025, 7, day),
		Status:         model.AssignmentActive,
		Notes:          []model.NoteEntry{model.NewNote("u-1", model.NoteCreated, "created", nil)},
	}
}

func (s *AssignmentRepoTestSuite) TestCreate_RoundTrip() {
	a := s.newAssignment("worker-1", "pitak-1", 1)
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, a))
	s.NotEmpty(a.AssignmentID)

	got, err := s.repo.Assignment.GetByID(s.ctx, a.AssignmentID)
	s.Require().NoError(err)
	s.True(got.LuwangCount.Equal(decimal.RequireFromString("33.33")), "luwang 应保留两位小数: %s", got.LuwangCount)
	s.Equal(1, got.Version)
	s.Require().Len(got.Notes, 1)
	s.Equal(model.NoteCreated, got.Notes[0].Kind)
	s.Require().NotNil(got.Worker)
	s.Equal("Juan", got.Worker.Name)
	s.Require().NotNil(got.Pitak)
	s.Require().NotNil(got.Pitak.Bukid)
	s.Equal("Bukid San Roque", got.Pitak.Bukid.Name)
}

func (s *AssignmentRepoTestSuite) TestCreate_SameWorkerSamePitakRejected() {
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-1", 1)))

	err := s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-1", 2))
	s.True(errors.Is(err, ErrDuplicateActive), "不同日期同地块也应冲突，实际: %v", err)

	n, err := s.repo.Assignment.Count(s.ctx, AssignmentFilter{Status: model.AssignmentActive})
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *AssignmentRepoTestSuite) TestCreate_SameWorkerSameDateRejected() {
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-1", 1)))

	err := s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-2", 1))
	s.True(errors.Is(err, ErrDuplicateActive), "同日期不同地块也应冲突，实际: %v", err)
}

func (s *AssignmentRepoTestSuite) TestCreate_AllowedAfterCompletion() {
	first := s.newAssignment("worker-1", "pitak-1", 1)
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, first))

	first.Status = model.AssignmentCompleted
	s.Require().NoError(s.repo.Assignment.Update(s.ctx, first))
	s.Equal(2, first.Version)

	s.NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-1", 1)),
		"终态记录不参与唯一约束")
}

func (s *AssignmentRepoTestSuite) TestUpdate_StaleVersion() {
	a := s.newAssignment("worker-1", "pitak-1", 1)
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, a))

	stale := *a
	a.LuwangCount = decimal.NewFromInt(10)
	s.Require().NoError(s.repo.Assignment.Update(s.ctx, a))

	stale.LuwangCount = decimal.NewFromInt(20)
	err := s.repo.Assignment.Update(s.ctx, &stale)
	s.True(errors.Is(err, pkgerrors.ErrOptimisticLock), "旧版本更新应失败，实际: %v", err)
}

func (s *AssignmentRepoTestSuite) TestUpdate_ReassignIntoConflict() {
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-1", 1)))
	other := s.newAssignment("worker-2", "pitak-1", 2)
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, other))

	other.WorkerID = "worker-1"
	err := s.repo.Assignment.Update(s.ctx, other)
	s.True(errors.Is(err, ErrDuplicateActive), "改派到已有同地块记录的工人应冲突，实际: %v", err)
}

func (s *AssignmentRepoTestSuite) TestFindActive() {
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-1", "pitak-1", 1)))
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment("worker-2", "pitak-2", 1)))
	done := s.newAssignment("worker-3", "pitak-1", 3)
	s.Require().NoError(s.repo.Assignment.Create(s.ctx, done))
	done.Status = model.AssignmentCancelled
	s.Require().NoError(s.repo.Assignment.Update(s.ctx, done))

	byPitak, err := s.repo.Assignment.FindActiveByWorkersAndPitak(s.ctx, []string{"worker-1", "worker-2", "worker-3"}, "pitak-1")
	s.Require().NoError(err)
	s.Require().Len(byPitak, 1)
	s.Equal("worker-1", byPitak[0].WorkerID)

	onDate, err := s.repo.Assignment.FindActiveByWorkersOnDate(s.ctx, []string{"worker-1", "worker-2"}, testutil.Day(2025, 7, 1))
	s.Require().NoError(err)
	s.Len(onDate, 2)

	none, err := s.repo.Assignment.FindActiveByWorkersOnDate(s.ctx, []string{"worker-1"}, testutil.Day(2025, 7, 2))
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *AssignmentRepoTestSuite) TestList_FilterAndPaginate() {
	for i, w := range []string{"worker-1", "worker-2", "worker-3"} {
		s.Require().NoError(s.repo.Assignment.Create(s.ctx, s.newAssignment(w, "pitak-1", i+1)))
	}

	list, total, err := s.repo.Assignment.List(s.ctx, AssignmentFilter{PitakID: "pitak-1", Limit: 2})
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(list, 2)
	s.Equal("worker-3", list[0].WorkerID, "按日期倒序")

	from := testutil.Day(2025, 7, 2)
	list, total, err = s.repo.Assignment.List(s.ctx, AssignmentFilter{DateFrom: &from})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Len(list, 2)
}

func (s *AssignmentRepoTestSuite) TestTx_FailedItemDoesNotPoisonTransaction() {
	err := s.txm.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.repo.Assignment.Create(ctx, s.newAssignment("worker-1", "pitak-1", 1)))
		dupErr := s.repo.Assignment.Create(ctx, s.newAssignment("worker-1", "pitak-1", 2))
		s.True(errors.Is(dupErr, ErrDuplicateActive))
		return s.repo.Assignment.Create(ctx, s.newAssignment("worker-2", "pitak-1", 1))
	})
	s.Require().NoError(err)

	n, err := s.repo.Assignment.Count(s.ctx, AssignmentFilter{})
	s.Require().NoError(err)
	s.EqualValues(2, n)
}

func (s *AssignmentRepoTestSuite) TestTx_RollbackOnError() {
	boom := errors.New("boom")
	err := s.txm.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.repo.Assignment.Create(ctx, s.newAssignment("worker-1", "pitak-1", 1)))
		s.Require().NoError(s.repo.ActivityLog.Create(ctx, &model.ActivityLog{ActorID: "u-1", Action: "create", Description: "x"}))
		return boom
	})
	s.True(errors.Is(err, boom))

	n, err := s.repo.Assignment.Count(s.ctx, AssignmentFilter{})
	s.Require().NoError(err)
	s.EqualValues(0, n, "事务回滚后不应留下记录")

	var logs int64
	s.Require().NoError(s.db.Model(&model.ActivityLog{}).Count(&logs).Error)
	s.EqualValues(0, logs)
}

func (s *AssignmentRepoTestSuite) TestReferenceLookups() {
	current, err := s.repo.Session.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Equal("session-1", current.SessionID)

	workers, err := s.repo.Worker.ListByIDs(s.ctx, []string{"worker-1", "worker-off", "ghost"})
	s.Require().NoError(err)
	s.Len(workers, 2)

	_, err = s.repo.Pitak.GetByID(s.ctx, "ghost")
	s.True(errors.Is(err, gorm.ErrRecordNotFound))

	pitak, err := s.repo.Pitak.GetByID(s.ctx, "pitak-closed")
	s.Require().NoError(err)
	s.False(pitak.Open())
}
