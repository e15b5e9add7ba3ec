package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// OfferingState is the persisted seat and waitlist picture of one course.
type OfferingState struct {
	Offering models.CourseOffering
	Waitlist []models.WaitlistEntry
}

// SeatChange is written atomically. Offering.Version must hold the version
// that was read; the write fails with ErrConcurrencyConflict otherwise.
type SeatChange struct {
	Offering    models.CourseOffering
	Waitlist    []models.WaitlistEntry
	Enrollments []*models.Enrollment
}

// OfferingRepository persists capacity state, waitlists and enrollment rows.
type OfferingRepository interface {
	LoadState(ctx context.Context, courseID uint) (OfferingState, error)
	CreateOffering(ctx context.Context, offering *models.CourseOffering) error
	CountEnrolled(ctx context.Context, courseID uint) (int64, error)
	FindActiveEnrollment(ctx context.Context, studentID, courseID uint) (models.Enrollment, error)
	ApplySeatChange(ctx context.Context, change SeatChange) error
}

type offeringRepository struct {
	db *gorm.DB
}

// NewOfferingRepository constructs the offering repository.
func NewOfferingRepository(db *gorm.DB) OfferingRepository {
	return &offeringRepository{db: db}
}

func (r *offeringRepository) LoadState(ctx context.Context, courseID uint) (OfferingState, error) {
	var offering models.CourseOffering
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).First(&offering).Error; err != nil {
		return OfferingState{}, err
	}

	var waitlist []models.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&waitlist).Error
	if err != nil {
		return OfferingState{}, err
	}

	return OfferingState{Offering: offering, Waitlist: waitlist}, nil
}

// CreateOffering inserts the offering row unless another writer created it first.
func (r *offeringRepository) CreateOffering(ctx context.Context, offering *models.CourseOffering) error {
	if offering.Version == 0 {
		offering.Version = 1
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(offering).Error
}

func (r *offeringRepository) CountEnrolled(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("course_id = ? AND status = ?", courseID, models.EnrollmentStatusEnrolled).
		Count(&count).Error
	return count, err
}

func (r *offeringRepository) FindActiveEnrollment(ctx context.Context, studentID, courseID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND status IN ?", studentID, courseID,
			[]models.EnrollmentStatus{models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted}).
		Order("id DESC").
		First(&enrollment).Error
	if err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *offeringRepository) ApplySeatChange(ctx context.Context, change SeatChange) error {
	courseID := change.Offering.CourseID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CourseOffering{}).
			Where("course_id = ? AND version = ?", courseID, change.Offering.Version).
			Updates(map[string]interface{}{
				"max_capacity":       change.Offering.MaxCapacity,
				"current_enrollment": change.Offering.CurrentEnrollment,
				"peak_waitlist":      change.Offering.PeakWaitlist,
				"version":            gorm.Expr("version + 1"),
				"updated_at":         time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrencyConflict
		}

		if err := tx.Where("course_id = ?", courseID).Delete(&models.WaitlistEntry{}).Error; err != nil {
			return err
		}

		if len(change.Waitlist) > 0 {
			entries := make([]models.WaitlistEntry, 0, len(change.Waitlist))
			for _, entry := range change.Waitlist {
				entry.ID = 0
				entry.CourseID = courseID
				entries = append(entries, entry)
			}
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}

		for _, enrollment := range change.Enrollments {
			if enrollment == nil {
				continue
			}
			if enrollment.ID == 0 {
				if err := tx.Create(enrollment).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Save(enrollment).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
