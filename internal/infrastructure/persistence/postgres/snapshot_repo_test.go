package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rokstats/rokstats/internal/domain/shared"
)

func TestAppendError_UniqueViolationIsConflict(t *testing.T) {
	err := appendError(fmt.Errorf("insert batch: %w", &pgconn.PgError{Code: "23505"}))

	assert.True(t, shared.IsConflict(err))
	assert.False(t, shared.IsStoreUnavailable(err))
	assert.False(t, shared.IsRetryable(err))
}

func TestAppendError_OtherFailuresAreStoreUnavailable(t *testing.T) {
	tests := []error{
		errors.New("dial tcp: connection refused"),
		&pgconn.PgError{Code: "57P01"},
	}

	for _, in := range tests {
		err := appendError(in)
		assert.True(t, shared.IsStoreUnavailable(err), in.Error())
		assert.False(t, shared.IsConflict(err))
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
}
