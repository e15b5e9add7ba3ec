package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

func TestStudentRepositoryFindForEnrollment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	suspended := models.Student{StudentNumber: "S-100", Name: "Ada", Email: "ada@example.edu", Status: models.StudentStatusSuspended}
	require.NoError(t, db.Create(&suspended).Error)

	student, err := repo.FindForEnrollment(ctx, suspended.ID)
	require.NoError(t, err)
	require.Equal(t, suspended.ID, student.ID)
	require.Equal(t, "S-100", student.StudentNumber)
	require.Equal(t, models.StudentStatusSuspended, student.Status)
	require.False(t, student.CanEnroll())
	require.Empty(t, student.Email)

	_, err = repo.FindForEnrollment(ctx, suspended.ID+1)
	require.ErrorIs(t, err, ErrStudentNotFound)
}
