package postgres

import (
	"errors"
	"fmt"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/repository"

	"github.com/lib/pq"
)

const (
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeExclusionViolation   pq.ErrorCode = "23P01"
	codeCheckViolation       pq.ErrorCode = "23514"
)

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// classify maps constraint violations onto domain errors. Serialization failures are left as
// *pq.Error so the retry loop can see them.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeExclusionViolation:
		return fmt.Errorf("%w: %s", domain.ErrSlotConflict, pqErr.Message)
	case codeCheckViolation:
		return fmt.Errorf("%w: violates %s", domain.ErrValidation, pqErr.Constraint)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", repository.ErrDuplicateKey, pqErr.Constraint)
	}
	return err
}
