// Package testutil 提供测试用的内存数据库与种子数据，只应被 _test.go 引用
package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/model"
)

// NewSQLiteDB 创建内存 SQLite 并迁移全部表
//
// 部分唯一索引与 ON CONFLICT 在 SQLite 中同样生效，足以覆盖存储层约束。
// 内存库按连接隔离，因此连接池固定为 1。
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   gormlogger.Discard,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Bukid{},
		&model.Worker{},
		&model.Pitak{},
		&model.Session{},
		&model.Assignment{},
		&model.ActivityLog{},
	); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Fixture 种子数据
type Fixture struct {
	Session model.Session
	Bukid   model.Bukid
	Pitaks  []model.Pitak
	Workers []model.Worker
}

// Seed 写入 1 个经营周期、1 个农场、2 个开放地块、1 个已关闭地块、
// 3 个在职工人与 1 个离职工人
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{
		Session: model.Session{
			SessionID: "session-1",
			Name:      "2025 Wet Season",
			StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local),
			EndDate:   time.Date(2025, 11, 30, 0, 0, 0, 0, time.Local),
			IsActive:  true,
		},
		Bukid: model.Bukid{BukidID: "bukid-1", Name: "Bukid San Roque", Status: "active"},
	}
	bukidID := f.Bukid.BukidID
	f.Pitaks = []model.Pitak{
		{PitakID: "pitak-1", BukidID: &bukidID, Location: "North 1", TotalLuwang: decimal.NewFromInt(100), Status: model.PitakActive},
		{PitakID: "pitak-2", BukidID: &bukidID, Location: "North 2", TotalLuwang: decimal.NewFromInt(60), Status: model.PitakActive},
		{PitakID: "pitak-closed", BukidID: &bukidID, Location: "South", TotalLuwang: decimal.NewFromInt(40), Status: model.PitakCompleted},
	}
	f.Workers = []model.Worker{
		{WorkerID: "worker-1", Name: "Juan", Status: model.WorkerActive},
		{WorkerID: "worker-2", Name: "Maria", Status: model.WorkerActive},
		{WorkerID: "worker-3", Name: "Pedro", Status: model.WorkerActive},
		{WorkerID: "worker-off", Name: "Jose", Status: model.WorkerInactive},
	}

	if err := db.Create(&f.Session).Error; err != nil {
		t.Fatalf("写入 session 失败: %v", err)
	}
	if err := db.Create(&f.Bukid).Error; err != nil {
		t.Fatalf("写入 bukid 失败: %v", err)
	}
	if err := db.Create(&f.Pitaks).Error; err != nil {
		t.Fatalf("写入 pitak 失败: %v", err)
	}
	if err := db.Create(&f.Workers).Error; err != nil {
		t.Fatalf("写入 worker 失败: %v", err)
	}
	return f
}

// Day 本地时区的日历日
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}
