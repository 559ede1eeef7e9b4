package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("record was modified by another operation, reload and retry")

// Kind 错误类别，调用方据此区分失败原因
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPrecondition
	KindPersistence
)

// String 返回类别名称（同时用作响应体中的 kind 字段）
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建指定类别的错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 以指定类别包装底层错误
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ── 快捷构造 ──

func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func Preconditionf(format string, args ...interface{}) *Error {
	return New(KindPrecondition, fmt.Sprintf(format, args...))
}

// Persistence 包装存储层失败，消息中保留上下文
func Persistence(err error, format string, args ...interface{}) *Error {
	return Wrap(KindPersistence, err, fmt.Sprintf(format, args...)+": "+err.Error())
}

// KindOf 提取错误类别；非 *Error 的错误视为 Persistence，乐观锁冲突视为 Conflict
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrOptimisticLock) {
		return KindConflict
	}
	return KindPersistence
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
