package db

import (
	"errors"

	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"gorm.io/gorm"
)

// IsDuplicateKey reports whether err is a unique-constraint violation,
// covering both GORM's translated error and the raw driver errors.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return pkgerrors.IsUniqueViolation(err)
}
