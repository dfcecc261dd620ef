// Package errors classifies database errors returned by gorm, MySQL and sqlite.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DatabaseErrorType represents the type of database error.
type DatabaseErrorType int

const (
	ErrorTypeUnknown DatabaseErrorType = iota
	// ErrorTypeDuplicateKey is a unique constraint violation (MySQL 1062, sqlite UNIQUE).
	ErrorTypeDuplicateKey
	// ErrorTypeConstraintViolation is a foreign key, not-null or check violation.
	ErrorTypeConstraintViolation
	// ErrorTypeDataTooLong is MySQL 1406.
	ErrorTypeDataTooLong
	ErrorTypeNotFound
	// ErrorTypeDeadlock is MySQL 1213 or a busy sqlite database.
	ErrorTypeDeadlock
	ErrorTypeConnectionError
	ErrorTypeInvalidValue
)

var typeNames = map[DatabaseErrorType]string{
	ErrorTypeUnknown:             "unknown",
	ErrorTypeDuplicateKey:        "duplicate_key",
	ErrorTypeConstraintViolation: "constraint_violation",
	ErrorTypeDataTooLong:         "data_too_long",
	ErrorTypeNotFound:            "not_found",
	ErrorTypeDeadlock:            "deadlock",
	ErrorTypeConnectionError:     "connection",
	ErrorTypeInvalidValue:        "invalid_value",
}

// String returns the snake_case name used as the error.type metric attribute.
func (t DatabaseErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsIntegrityViolation reports whether the type is a data integrity problem
// caused by the written values rather than by the database itself.
func (t DatabaseErrorType) IsIntegrityViolation() bool {
	switch t {
	case ErrorTypeDuplicateKey, ErrorTypeConstraintViolation, ErrorTypeDataTooLong, ErrorTypeInvalidValue:
		return true
	}
	return false
}

// DatabaseError wraps a database error with classification information.
type DatabaseError struct {
	Type         DatabaseErrorType
	OriginalErr  error
	MySQLErrCode uint16
	Message      string
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.MySQLErrCode > 0 {
		return fmt.Sprintf("%s (MySQL error %d): %v", e.Message, e.MySQLErrCode, e.OriginalErr)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

type mysqlClass struct {
	typ     DatabaseErrorType
	message string
}

var mysqlCodes = map[uint16]mysqlClass{
	1062: {ErrorTypeDuplicateKey, "duplicate key constraint violation"},
	1406: {ErrorTypeDataTooLong, "data too long for column"},
	1452: {ErrorTypeConstraintViolation, "foreign key constraint violation"},
	1451: {ErrorTypeConstraintViolation, "cannot delete/update record due to foreign key constraint"},
	3819: {ErrorTypeConstraintViolation, "check constraint violation"},
	1213: {ErrorTypeDeadlock, "deadlock detected"},
	1048: {ErrorTypeInvalidValue, "column cannot be null"},
	1265: {ErrorTypeInvalidValue, "invalid or truncated value"},
	1366: {ErrorTypeInvalidValue, "invalid or truncated value"},
}

var sqliteMessages = []struct {
	fragment string
	class    mysqlClass
}{
	{"unique constraint failed", mysqlClass{ErrorTypeDuplicateKey, "duplicate key constraint violation"}},
	{"foreign key constraint failed", mysqlClass{ErrorTypeConstraintViolation, "foreign key constraint violation"}},
	{"not null constraint failed", mysqlClass{ErrorTypeInvalidValue, "column cannot be null"}},
	{"check constraint failed", mysqlClass{ErrorTypeConstraintViolation, "check constraint violation"}},
	{"database is locked", mysqlClass{ErrorTypeDeadlock, "database is locked"}},
}

var connectionKeywords = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"connection lost",
	"can't connect",
	"dial tcp",
	"bad connection",
}

// ClassifyDBError classifies a database error. It returns nil for a nil error.
//
//	if dbErr := errors.ClassifyDBError(err); dbErr.Type == errors.ErrorTypeDuplicateKey {
//	    return kerrors.BadRequest("CUSTOMER_ALREADY_EXISTS", "...")
//	}
func ClassifyDBError(err error) *DatabaseError {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &DatabaseError{Type: ErrorTypeNotFound, OriginalErr: err, Message: "record not found"}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &DatabaseError{Type: ErrorTypeDuplicateKey, OriginalErr: err, Message: "duplicate key constraint violation"}
	}

	if errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return &DatabaseError{Type: ErrorTypeConstraintViolation, OriginalErr: err, Message: "constraint violation"}
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		class, ok := mysqlCodes[mysqlErr.Number]
		if !ok {
			class = mysqlClass{ErrorTypeUnknown, "MySQL error"}
		}
		return &DatabaseError{Type: class.typ, OriginalErr: err, MySQLErrCode: mysqlErr.Number, Message: class.message}
	}

	errMsg := strings.ToLower(err.Error())
	for _, m := range sqliteMessages {
		if strings.Contains(errMsg, m.fragment) {
			return &DatabaseError{Type: m.class.typ, OriginalErr: err, Message: m.class.message}
		}
	}

	for _, keyword := range connectionKeywords {
		if strings.Contains(errMsg, keyword) {
			return &DatabaseError{Type: ErrorTypeConnectionError, OriginalErr: err, Message: "database connection error"}
		}
	}

	return &DatabaseError{Type: ErrorTypeUnknown, OriginalErr: err, Message: "unknown database error"}
}

// IsDuplicateKeyError checks if the error is a duplicate key constraint violation.
func IsDuplicateKeyError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeDuplicateKey
}

// IsNotFoundError checks if the error is a record not found error.
func IsNotFoundError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeNotFound
}

// IsIntegrityViolation checks if the error violates a schema constraint.
func IsIntegrityViolation(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type.IsIntegrityViolation()
}
