package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/analysis-api/internal/platform/postgres"
)

func TestActivityStore_Append(t *testing.T) {
	t.Parallel()

	t.Run("inserts a usage record", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := postgres.NewPostgresActivityStore(db)
		userID := uuid.New()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_activity")).
			WithArgs(userID, 1234, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, s.Append(context.Background(), userID, 1234))
	})

	t.Run("propagates database errors", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := postgres.NewPostgresActivityStore(db)
		userID := uuid.New()

		dbErr := errors.New("connection reset")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_activity")).
			WithArgs(userID, 10, sqlmock.AnyArg()).
			WillReturnError(dbErr)

		err := s.Append(context.Background(), userID, 10)
		assert.ErrorIs(t, err, dbErr)
	})
}
