package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
//
// 核心层对外只暴露这几类错误，API 层据此翻译为响应码：
//   - NotFound            订单/商户/核销码不存在
//   - InvalidTransition   状态机中不存在当前状态到目标状态的边
//   - InvalidState        操作在当前订单状态下不合法（如重复核销、非退款中审批）
//   - Validation          缺少必填字段或入参格式非法
//   - ConcurrencyConflict 并发竞争中输掉了针对同一订单的原子更新
//   - ExternalIO          数据库或文件系统等外部依赖失败
type Kind string

const (
	NotFound            Kind = "not_found"
	InvalidTransition   Kind = "invalid_transition"
	InvalidState        Kind = "invalid_state"
	Validation          Kind = "validation"
	ConcurrencyConflict Kind = "concurrency_conflict"
	ExternalIO          Kind = "external_io"
)

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error // 底层原因，仅用于日志
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误，默认为外部依赖失败
func Wrap(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: ExternalIO, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFoundErr(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func InvalidTransitionErr(format string, args ...interface{}) *Error {
	return New(InvalidTransition, format, args...)
}

func InvalidStateErr(format string, args ...interface{}) *Error {
	return New(InvalidState, format, args...)
}

func ValidationErr(format string, args ...interface{}) *Error {
	return New(Validation, format, args...)
}

func ConflictErr(format string, args ...interface{}) *Error {
	return New(ConcurrencyConflict, format, args...)
}

// As 提取业务错误
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	if ae, ok := As(err); ok {
		return ae.Kind == kind
	}
	return false
}

// KindOf 返回错误类别，非业务错误一律视为外部依赖失败
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return ExternalIO
}
