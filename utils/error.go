package utils

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrDuplicateKey     = errors.New("duplicate key")
)

const mysqlDuplicateEntry = 1062

// IsDuplicateKey reports unique-index violations from MySQL, gorm's translated
// error, or an already-wrapped ErrDuplicateKey.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// NormalizeDbError maps gorm's not-found and MySQL duplicate-key errors onto the sentinels above.
func NormalizeDbError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrorRecordNotFound
	case IsDuplicateKey(err):
		return ErrDuplicateKey
	default:
		return err
	}
}
