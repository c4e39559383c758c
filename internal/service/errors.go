package service

import (
	"errors"
	"fmt"
)

// Виды ошибок домена. Сравнивать через errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrPolicy     = errors.New("policy violation")
	ErrSettlement = errors.New("settlement failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// Error ошибка домена с конкретной причиной для вызывающего
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is позволяет errors.Is(err, ErrConflict)
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

func conflictError(format string, args ...interface{}) error {
	return &Error{Kind: ErrConflict, Reason: fmt.Sprintf(format, args...)}
}

func policyError(format string, args ...interface{}) error {
	return &Error{Kind: ErrPolicy, Reason: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Reason: fmt.Sprintf(format, args...)}
}

func forbiddenError(format string, args ...interface{}) error {
	return &Error{Kind: ErrForbidden, Reason: fmt.Sprintf(format, args...)}
}

// Reason возвращает причину ошибки домена или текст ошибки
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
