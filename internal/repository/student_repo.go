package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// ErrStudentNotFound is returned when no student record matches the id.
var ErrStudentNotFound = errors.New("student not found")

// eligibilityColumns are the student fields an enrollment decision reads.
var eligibilityColumns = []string{"id", "student_number", "status"}

// StudentRepository reads the registrar's student records for enrollment checks.
type StudentRepository interface {
	// FindForEnrollment loads the identity and registration status of a student.
	FindForEnrollment(ctx context.Context, id uint) (models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) FindForEnrollment(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Select(eligibilityColumns).
		Where("id = ?", id).
		Take(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Student{}, ErrStudentNotFound
	}
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}
