package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/printworks_backend/config"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "VALIDATION"
	KindBusinessRule ErrorKind = "BUSINESS_RULE"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindConcurrency  ErrorKind = "CONCURRENCY_CONFLICT"
	KindPersistence  ErrorKind = "PERSISTENCE"
)

// Sentinels for errors.Is; every *Error matches the sentinel of its kind.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrBusinessRule        = &Error{Kind: KindBusinessRule}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrency}
	ErrPersistence         = &Error{Kind: KindPersistence}
)

// Error is the typed error every model operation returns.
// Rule is a stable machine-readable name of the violated rule.
type Error struct {
	Kind    ErrorKind
	Rule    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Rule != "" {
		return fmt.Sprintf("%s (%s): %s", strings.ToLower(string(e.Kind)), e.Rule, msg)
	}
	return fmt.Sprintf("%s: %s", strings.ToLower(string(e.Kind)), msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Rule == "" || t.Rule == e.Rule
}

func NewValidationError(rule string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func NewBusinessRuleError(rule string, format string, args ...any) error {
	return &Error{Kind: KindBusinessRule, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(entity string, id any) error {
	return &Error{Kind: KindNotFound, Rule: strings.ToLower(entity) + "_not_found", Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// RuleOf returns the rule name carried by a typed error, or "".
func RuleOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Rule
	}
	return ""
}

// KindOf returns the kind of a typed error; untyped errors are persistence failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// IsRetryable reports whether the whole operation may be run again from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// MySQL server error numbers treated as lock contention.
const (
	mysqlErrDupEntry        = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrLockDeadlock    = 1213
)

// ClassifyDBError maps a store error into the taxonomy. Typed errors pass through.
func ClassifyDBError(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Rule: "record_not_found", Message: "record not found", Err: err}
	}
	if errors.Is(err, config.ErrHardDelete) {
		return &Error{Kind: KindBusinessRule, Rule: "hard_delete_forbidden", Message: err.Error(), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindConcurrency, Rule: "lock_timeout", Message: "operation timed out waiting for the store", Err: err}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrLockWaitTimeout:
			return &Error{Kind: KindConcurrency, Rule: "lock_timeout", Message: myErr.Message, Err: err}
		case mysqlErrLockDeadlock:
			return &Error{Kind: KindConcurrency, Rule: "deadlock", Message: myErr.Message, Err: err}
		case mysqlErrDupEntry:
			return &Error{Kind: KindConcurrency, Rule: "duplicate_key", Message: myErr.Message, Err: err}
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return &Error{Kind: KindConcurrency, Rule: "lock_timeout", Message: err.Error(), Err: err}
	}
	if strings.Contains(msg, "unique constraint failed") {
		return &Error{Kind: KindConcurrency, Rule: "duplicate_key", Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindPersistence, Rule: "store_failure", Message: err.Error(), Err: err}
}
