package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThroughDomainErrors(t *testing.T) {
	err := NewGuardViolation("no", nil)
	mapped := ToDomainError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeGuardViolation, mapped.Code)
	assert.Equal(t, http.StatusConflict, mapped.HTTPStatus)
}

func TestToDomainErrorMapsMissingRowsToNotFound(t *testing.T) {
	for _, err := range []error{
		pgx.ErrNoRows,
		sql.ErrNoRows,
		fmt.Errorf("load user: %w", pgx.ErrNoRows),
	} {
		mapped := ToDomainError(err)
		require.NotNil(t, mapped)
		assert.Equal(t, CodeNotFound, mapped.Code, "input: %v", err)
		assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
	}
}

func TestToDomainErrorWrapsUnknownAsInternal(t *testing.T) {
	cause := errors.New("connection reset")
	mapped := ToDomainError(cause)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeInternal, mapped.Code)
	assert.ErrorIs(t, mapped, cause)
	assert.Nil(t, ToDomainError(nil))
}
