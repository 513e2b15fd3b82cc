package repository_test

import (
	"context"
	"testing"
	"time"

	"taskboard/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCommentRepository_ListByTask_Chronological(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	commentRepo := repository.NewCommentRepository(gormDB)

	taskID := uuid.New()
	author := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "comments" WHERE task_id = \$1 ORDER BY created_at ASC`).
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "user_id", "content", "created_at"}).
			AddRow(uuid.New(), taskID, author, "first", now.Add(-time.Minute)).
			AddRow(uuid.New(), taskID, author, "second", now))

	// Act
	comments, err := commentRepo.ListByTask(context.Background(), taskID)

	// Assert
	assert.NoError(t, err)
	assert.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Delete_NotFound(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	commentRepo := repository.NewCommentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "comments" WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// Act
	err := commentRepo.Delete(context.Background(), uuid.New())

	// Assert
	assert.ErrorIs(t, err, repository.ErrCommentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
