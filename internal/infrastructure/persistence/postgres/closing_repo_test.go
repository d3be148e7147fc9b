package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

func TestRectificationInsertError(t *testing.T) {
	assert.NoError(t, rectificationInsertError(nil))

	err := rectificationInsertError(&pgconn.PgError{Code: "23503", ConstraintName: "closing_rectifications_closing_id_fkey"})
	assert.ErrorIs(t, err, shared.ErrClosingNotFound)
	assert.True(t, shared.IsNotFound(err))

	err = rectificationInsertError(errors.New("connection reset"))
	assert.EqualError(t, err, "insert rectification: connection reset")
	assert.False(t, shared.IsNotFound(err))
}
