package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-core/internal/models"
)

func newStoreMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func sectionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "course_id", "section_code", "semester", "year", "capacity", "enrolled_count", "is_active", "course_code", "course_name", "course_active"}).
		AddRow("sec-1", "course-1", "01", "fall", 2024, 30, 29, true, "CS201", "Data Structures", true)
}

func TestEnrollmentStoreWithinTxCommits(t *testing.T) {
	db, mock := newStoreMock(t)
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF cs")).WithArgs("sec-1").WillReturnRows(sectionRows())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET enrolled_count = enrolled_count + $2")).
		WithArgs("sec-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var created *models.Enrollment
	err := store.WithinTx(context.Background(), func(tx EnrollmentTx) error {
		section, err := tx.LockSection(context.Background(), "sec-1")
		if err != nil {
			return err
		}
		assert.Equal(t, 29, section.EnrolledCount)
		affected, err := tx.ConditionalIncrement(context.Background(), section.ID, 1)
		if err != nil {
			return err
		}
		assert.EqualValues(t, 1, affected)
		created = &models.Enrollment{StudentID: "stu-1", SectionID: section.ID}
		return tx.CreateEnrollment(context.Background(), created)
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, created.Status)
	assert.False(t, created.EnrollmentDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentStoreWithinTxRollsBackOnError(t *testing.T) {
	db, mock := newStoreMock(t)
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET enrolled_count")).
		WithArgs("sec-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	errFull := errors.New("full")
	err := store.WithinTx(context.Background(), func(tx EnrollmentTx) error {
		affected, err := tx.ConditionalIncrement(context.Background(), "sec-1", 1)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errFull
		}
		return nil
	})
	require.ErrorIs(t, err, errFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentQueriesFindStudentSectionNoRows(t *testing.T) {
	db, mock := newStoreMock(t)
	reader := NewEnrollmentStore(db).Reader()

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND section_id = $2")).
		WithArgs("stu-1", "sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	enrollment, err := reader.FindStudentSection(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	assert.Nil(t, enrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentQueriesHasPriorAttempt(t *testing.T) {
	db, mock := newStoreMock(t)
	reader := NewEnrollmentStore(db).Reader()

	mock.ExpectQuery(regexp.QuoteMeta("e.status IN ($3, $4)")).
		WithArgs("stu-1", "course-1", models.EnrollmentStatusCompleted, models.EnrollmentStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	repeat, err := reader.HasPriorAttempt(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.True(t, repeat)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentQueriesUpdateStateMissingRow(t *testing.T) {
	db, mock := newStoreMock(t)
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	dropped := time.Now()
	err := store.WithinTx(context.Background(), func(tx EnrollmentTx) error {
		return tx.UpdateEnrollmentState(context.Background(), &models.Enrollment{ID: "enr-x", Status: models.EnrollmentStatusDropped, DropDate: &dropped})
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentQueriesLockStudent(t *testing.T) {
	db, mock := newStoreMock(t)
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("stu-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx EnrollmentTx) error {
		require.NoError(t, tx.LockStudent(context.Background(), "stu-1"))
		return tx.LockStudent(context.Background(), "ghost")
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
