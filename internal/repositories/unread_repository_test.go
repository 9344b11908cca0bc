package repositories

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestIncrementUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUnreadCounterRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_unread_counts")).
		WithArgs(5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Increment(context.Background(), 5, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeltaFloorsAtZero(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUnreadCounterRepo(db)

	// the floor lives in the statement itself, so a large negative delta
	// must still be sent through unchanged
	mock.ExpectExec(regexp.QuoteMeta("GREATEST(chat_unread_counts.unread + $3, 0)")).
		WithArgs(5, 2, -10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ApplyDelta(context.Background(), 5, 2, -10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalUnreadSumsParticipatingChats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUnreadCounterRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(u.unread), 0)")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))

	total, err := repo.TotalUnread(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}
