package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// EquivalencyRepository reads transfer equivalency tables.
type EquivalencyRepository interface {
	ListByExternal(ctx context.Context, institutionCode, courseCode string) ([]models.Equivalency, error)
}

type equivalencyRepository struct {
	db *gorm.DB
}

// NewEquivalencyRepository constructs the equivalency repository.
func NewEquivalencyRepository(db *gorm.DB) EquivalencyRepository {
	return &equivalencyRepository{db: db}
}

func (r *equivalencyRepository) ListByExternal(ctx context.Context, institutionCode, courseCode string) ([]models.Equivalency, error) {
	var records []models.Equivalency
	err := r.db.WithContext(ctx).
		Where("UPPER(institution_code) = ? AND UPPER(external_course_code) = ?",
			strings.ToUpper(strings.TrimSpace(institutionCode)),
			models.NormalizeCourseCode(courseCode)).
		Order("effective_date DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}
