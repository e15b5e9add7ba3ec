package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// AcademicHistoryRepository reads posted final grades.
type AcademicHistoryRepository interface {
	ListByStudent(ctx context.Context, studentID uint) ([]models.CompletedCourse, error)
}

type academicHistoryRepository struct {
	db *gorm.DB
}

// NewAcademicHistoryRepository constructs the history repository.
func NewAcademicHistoryRepository(db *gorm.DB) AcademicHistoryRepository {
	return &academicHistoryRepository{db: db}
}

func (r *academicHistoryRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.CompletedCourse, error) {
	var history []models.CompletedCourse
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("academic_year ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}

	return history, nil
}
