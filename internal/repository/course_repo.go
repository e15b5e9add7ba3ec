package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// CourseRepository provides read access to catalog courses.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetByCode(ctx context.Context, code string) (models.Course, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a GORM-backed course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Prerequisites", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&course, id).Error
	if err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) GetByCode(ctx context.Context, code string) (models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Prerequisites", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("UPPER(code) = ?", models.NormalizeCourseCode(code)).
		First(&course).Error
	if err != nil {
		return models.Course{}, err
	}

	return course, nil
}
