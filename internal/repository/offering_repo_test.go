package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.PrerequisiteTerm{},
		&models.Enrollment{},
		&models.WaitlistEntry{},
		&models.CourseOffering{},
		&models.CapacitySnapshot{},
		&models.Equivalency{},
	))
	return db
}

func TestOfferingRepositoryApplySeatChange(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOfferingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateOffering(ctx, &models.CourseOffering{CourseID: 1, MaxCapacity: 1}))
	require.NoError(t, repo.CreateOffering(ctx, &models.CourseOffering{CourseID: 1, MaxCapacity: 99}))

	state, err := repo.LoadState(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, state.Offering.MaxCapacity)
	require.Equal(t, uint(1), state.Offering.Version)

	enrolled := &models.Enrollment{StudentID: 10, CourseID: 1, Status: models.EnrollmentStatusEnrolled, EnrolledAt: time.Now()}
	waiting := &models.Enrollment{StudentID: 11, CourseID: 1, Status: models.EnrollmentStatusWaitlisted, EnrolledAt: time.Now()}
	err = repo.ApplySeatChange(ctx, SeatChange{
		Offering:    models.CourseOffering{CourseID: 1, MaxCapacity: 1, CurrentEnrollment: 1, PeakWaitlist: 1, Version: 1},
		Waitlist:    []models.WaitlistEntry{{StudentID: 11, Position: 1, AddedAt: time.Now()}},
		Enrollments: []*models.Enrollment{enrolled, waiting},
	})
	require.NoError(t, err)
	require.NotZero(t, enrolled.ID)
	require.NotZero(t, waiting.ID)

	state, err = repo.LoadState(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint(2), state.Offering.Version)
	require.Equal(t, 1, state.Offering.CurrentEnrollment)
	require.Len(t, state.Waitlist, 1)
	require.Equal(t, uint(11), state.Waitlist[0].StudentID)

	count, err := repo.CountEnrolled(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	active, err := repo.FindActiveEnrollment(ctx, 11, 1)
	require.NoError(t, err)
	require.Equal(t, waiting.ID, active.ID)
}

func TestOfferingRepositoryRejectsStaleVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOfferingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateOffering(ctx, &models.CourseOffering{CourseID: 2, MaxCapacity: 5}))

	stale := SeatChange{
		Offering:    models.CourseOffering{CourseID: 2, MaxCapacity: 5, CurrentEnrollment: 1, Version: 7},
		Enrollments: []*models.Enrollment{{StudentID: 1, CourseID: 2, Status: models.EnrollmentStatusEnrolled}},
	}
	require.ErrorIs(t, repo.ApplySeatChange(ctx, stale), ErrConcurrencyConflict)

	count, err := repo.CountEnrolled(ctx, 2)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = repo.FindActiveEnrollment(ctx, 1, 2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCourseRepositoryLoadsPrerequisites(t *testing.T) {
	db := setupTestDB(t)
	course := models.Course{
		Code:          "CS 301",
		Title:         "Algorithms",
		MaxEnrollment: 30,
		Prerequisites: []models.PrerequisiteTerm{
			{RequiredCode: "CS201", Logic: models.PrerequisiteRequired},
			{RequiredCode: "MATH201", Logic: models.PrerequisiteOr, OrGroup: "math"},
		},
	}
	require.NoError(t, db.Create(&course).Error)

	repo := NewCourseRepository(db)
	loaded, err := repo.GetByID(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Prerequisites, 2)
	require.Equal(t, "CS201", loaded.Prerequisites[0].RequiredCode)

	byCode, err := repo.GetByCode(context.Background(), "cs  301")
	require.NoError(t, err)
	require.Equal(t, course.ID, byCode.ID)
}

func TestCourseAnalyticsRepositorySaveSnapshotReplacesTerm(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseAnalyticsRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveSnapshot(ctx, &models.CapacitySnapshot{CourseID: 1, AcademicYear: 2025, Semester: "fall", MaxCapacity: 30, FinalEnrollment: 10}))
	require.NoError(t, repo.SaveSnapshot(ctx, &models.CapacitySnapshot{CourseID: 1, AcademicYear: 2025, Semester: "fall", MaxCapacity: 30, FinalEnrollment: 25}))
	require.NoError(t, repo.SaveSnapshot(ctx, &models.CapacitySnapshot{CourseID: 1, AcademicYear: 2021, Semester: "fall", MaxCapacity: 30, FinalEnrollment: 5}))

	snapshots, err := repo.ListSnapshotsSince(ctx, 1, 2023)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, 25, snapshots[0].FinalEnrollment)
}

func TestEquivalencyRepositoryMatchesNormalisedCodes(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Equivalency{
		InstitutionCode:    "STATE",
		ExternalCourseCode: "CS 101",
		Kind:               models.EquivalencyDirect,
		CreditsAwarded:     3,
		EffectiveDate:      time.Now().AddDate(-1, 0, 0),
	}).Error)

	repo := NewEquivalencyRepository(db)
	records, err := repo.ListByExternal(context.Background(), "state", "cs 101")
	require.NoError(t, err)
	require.Len(t, records, 1)
}
