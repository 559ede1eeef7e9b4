package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager 事务边界由调用方（接口层）持有，业务组件只通过 ctx 共享同一事务
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewTxManager 创建 TxManager 实例
func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

// RunInTx fn 返回错误或 panic 时回滚；已在事务中时退化为 SAVEPOINT
func (m *gormTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return conn(ctx, m.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn 优先使用 ctx 中的事务
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// isolated 单条写入：在外层事务中用 SAVEPOINT 包裹，
// 这样单条失败（唯一冲突等）不会让 PostgreSQL 把整个事务标记为 aborted
func isolated(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx).Transaction(fn)
	}
	return fn(db.WithContext(ctx))
}
