package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// CourseAnalyticsRepository supplies historical enrollment data for course analytics.
type CourseAnalyticsRepository interface {
	ListEnrollmentsSince(ctx context.Context, courseID uint, fromYear int) ([]models.Enrollment, error)
	ListGradedEnrollments(ctx context.Context, courseID uint) ([]models.Enrollment, error)
	ListTermEnrollments(ctx context.Context, courseID uint, academicYear int, semester string) ([]models.Enrollment, error)
	ListSnapshotsSince(ctx context.Context, courseID uint, fromYear int) ([]models.CapacitySnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.CapacitySnapshot) error
}

type courseAnalyticsRepository struct {
	db *gorm.DB
}

// NewCourseAnalyticsRepository constructs the analytics repository.
func NewCourseAnalyticsRepository(db *gorm.DB) CourseAnalyticsRepository {
	return &courseAnalyticsRepository{db: db}
}

func (r *courseAnalyticsRepository) ListEnrollmentsSince(ctx context.Context, courseID uint, fromYear int) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND academic_year >= ?", courseID, fromYear).
		Order("academic_year ASC, id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *courseAnalyticsRepository) ListGradedEnrollments(ctx context.Context, courseID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND final_grade <> ''", courseID).
		Order("academic_year ASC, id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *courseAnalyticsRepository) ListTermEnrollments(ctx context.Context, courseID uint, academicYear int, semester string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND academic_year = ? AND LOWER(semester) = LOWER(?)", courseID, academicYear, semester).
		Order("id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *courseAnalyticsRepository) ListSnapshotsSince(ctx context.Context, courseID uint, fromYear int) ([]models.CapacitySnapshot, error) {
	var snapshots []models.CapacitySnapshot
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND academic_year >= ?", courseID, fromYear).
		Order("academic_year ASC, id ASC").
		Find(&snapshots).Error
	return snapshots, err
}

// SaveSnapshot inserts or replaces the snapshot for the snapshot's term.
func (r *courseAnalyticsRepository) SaveSnapshot(ctx context.Context, snapshot *models.CapacitySnapshot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "academic_year"}, {Name: "semester"}},
			DoUpdates: clause.AssignmentColumns([]string{"max_capacity", "final_enrollment", "peak_waitlist_size"}),
		}).
		Create(snapshot).Error
}
