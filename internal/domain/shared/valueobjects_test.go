package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestWindow_Validate(t *testing.T) {
	assert.NoError(t, Unbounded().Validate())
	assert.NoError(t, Window{Start: ts("2024-01-01T00:00:00Z")}.Validate())
	assert.NoError(t, Window{Start: ts("2024-01-01T00:00:00Z"), End: ts("2024-01-01T00:00:00Z")}.Validate())

	err := Window{Start: ts("2024-02-01T00:00:00Z"), End: ts("2024-01-01T00:00:00Z")}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
	assert.True(t, IsValidation(err))
}

func TestWindow_ContainsInclusive(t *testing.T) {
	w := Window{Start: ts("2024-01-01T00:00:00Z"), End: ts("2024-01-31T00:00:00Z")}

	assert.True(t, w.Contains(*ts("2024-01-01T00:00:00Z")))
	assert.True(t, w.Contains(*ts("2024-01-31T00:00:00Z")))
	assert.False(t, w.Contains(*ts("2023-12-31T23:59:59Z")))
	assert.False(t, w.Contains(*ts("2024-01-31T00:00:01Z")))
	assert.True(t, Unbounded().Contains(time.Unix(0, 0)))
}

func TestParseWindowBound(t *testing.T) {
	got, err := ParseWindowBound("", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseWindowBound("2024-03-05", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T00:00:00Z", got.Format(time.RFC3339))

	got, err = ParseWindowBound("2024-03-05", true)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T23:59:59.999999999Z", got.Format(time.RFC3339Nano))

	got, err = ParseWindowBound("2024-03-05T10:00:00+02:00", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T08:00:00Z", got.Format(time.RFC3339))

	_, err = ParseWindowBound("yesterday", false)
	assert.True(t, IsValidation(err))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 25, 100)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 25, p.PageSize)

	p = NewPagination(3, 500, 25, 100)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.Offset())

	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(100))
	assert.Equal(t, 2, p.TotalPages(101))
}

func TestStoreUnavailable_IsRetryable(t *testing.T) {
	err := StoreUnavailable("ListByGroup", errors.New("connection refused"))

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, IsStoreUnavailable(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "connection refused")
}
