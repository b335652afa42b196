package apperror

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind 业务错误类别
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotEligible
	KindNotFound
	KindForbidden
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotEligible:
		return "not_eligible"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error 带类别的业务错误，Message 可直接展示给用户
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别的错误视为相等，便于 errors.Is(err, apperror.ErrNotEligible)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// 哨兵错误，仅用于 errors.Is 判断类别
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotEligible = &Error{Kind: KindNotEligible}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrForbidden   = &Error{Kind: KindForbidden}
	ErrPersistence = &Error{Kind: KindPersistence}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotEligible(msg string) error {
	return &Error{Kind: KindNotEligible, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// Persistence 包装存储层错误。已经是业务错误的直接返回，记录不存在转为 NotFound
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: op + ": record not found", Err: err}
	}
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// KindOf 返回错误类别，非业务错误视为 KindUnknown
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}
