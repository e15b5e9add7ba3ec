package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

func TestCourseAnalyticsServiceCachesHistoricalReports(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	db := setupTestDB(t)
	course := seedCourse(t, db, "CS210", 20)
	for i, grade := range []string{"A", "B", "F", "W"} {
		require.NoError(t, db.Create(&models.Enrollment{
			StudentID:    uint(i + 1),
			CourseID:     course.ID,
			Status:       models.EnrollmentStatusCompleted,
			FinalGrade:   grade,
			AcademicYear: 2025,
			Semester:     "fall",
		}).Error)
	}

	courses := repository.NewCourseRepository(db)
	capacity := NewCapacityService(courses, repository.NewOfferingRepository(db), nil, nil, testLogger())
	activity := &recordingActivity{}
	svc := NewCourseAnalyticsService(
		repository.NewCourseAnalyticsRepository(db),
		capacity,
		activity,
		DefaultAnalyticsPolicy(),
		client,
		time.Minute,
		validator.New(),
		testLogger(),
	).(*courseAnalyticsService)
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	rates, err := svc.SuccessRates(ctx, course.ID)
	require.NoError(t, err)
	require.False(t, rates.CacheHit)
	require.Equal(t, 4, rates.GradedEnrollments)
	require.Equal(t, 50.0, rates.SuccessRate)

	rates, err = svc.SuccessRates(ctx, course.ID)
	require.NoError(t, err)
	require.True(t, rates.CacheHit)
	require.Equal(t, 50.0, rates.SuccessRate)

	trends, err := svc.EnrollmentTrends(ctx, course.ID, 0)
	require.NoError(t, err)
	require.Equal(t, defaultLookbackYears, trends.LookbackYears)
	require.Len(t, trends.Terms, 1)
	require.True(t, server.Exists("course-analytics:1:trends:5"))

	utilization, err := svc.CapacityUtilization(ctx, course.ID, 3)
	require.NoError(t, err)
	require.Zero(t, utilization.TermsAnalyzed)

	snapshot, err := svc.RecordCapacitySnapshot(ctx, ActivityActor{ID: 9, Role: "registrar"}, course.ID, dto.CapacitySnapshotRequest{
		AcademicYear: 2026,
		Semester:     "Spring",
	})
	require.NoError(t, err)
	require.Equal(t, "spring", snapshot.Semester)
	require.Equal(t, 20, snapshot.MaxCapacity)
	require.Equal(t, []string{ActivitySnapshotRecorded}, activity.actions())

	utilization, err = svc.CapacityUtilization(ctx, course.ID, 3)
	require.NoError(t, err)
	require.False(t, utilization.CacheHit)
	require.Equal(t, 1, utilization.TermsAnalyzed)
	require.Zero(t, utilization.AverageUtilizationPercent)
}

func TestCourseAnalyticsServiceAtRiskUsesEarlierAttempts(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourse(t, db, "CS220", 20)

	records := []models.Enrollment{
		{StudentID: 1, CourseID: course.ID, Status: models.EnrollmentStatusCompleted, FinalGrade: "F", AcademicYear: 2025, Semester: "fall"},
		{StudentID: 1, CourseID: course.ID, Status: models.EnrollmentStatusEnrolled, MidtermGrade: "D", AcademicYear: 2026, Semester: "spring"},
		{StudentID: 2, CourseID: course.ID, Status: models.EnrollmentStatusEnrolled, MidtermGrade: "A", AcademicYear: 2026, Semester: "spring"},
	}
	for i := range records {
		require.NoError(t, db.Create(&records[i]).Error)
	}

	svc := NewCourseAnalyticsService(
		repository.NewCourseAnalyticsRepository(db),
		nil,
		nil,
		DefaultAnalyticsPolicy(),
		nil,
		0,
		nil,
		testLogger(),
	)

	report, err := svc.AtRiskStudents(context.Background(), course.ID, 2026, "SPRING")
	require.NoError(t, err)
	require.Equal(t, "spring", report.Semester)
	require.Equal(t, "C-", report.Threshold)
	require.Len(t, report.Students, 1)
	require.Equal(t, uint(1), report.Students[0].StudentID)
	require.Len(t, report.Students[0].RiskFactors, 2)

	_, err = svc.AtRiskStudents(context.Background(), course.ID, 0, "spring")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCourseAnalyticsServiceSnapshotPeakCoversOneTerm(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourse(t, db, "CS230", 1)
	offerings := repository.NewOfferingRepository(db)
	capacity := NewCapacityService(repository.NewCourseRepository(db), offerings, nil, nil, testLogger())
	svc := NewCourseAnalyticsService(
		repository.NewCourseAnalyticsRepository(db),
		capacity,
		&recordingActivity{},
		DefaultAnalyticsPolicy(),
		nil,
		0,
		validator.New(),
		testLogger(),
	)
	ctx := context.Background()
	actor := ActivityActor{ID: 9, Role: "registrar"}

	for _, studentID := range []uint{1, 2, 3} {
		_, err := capacity.RequestSeat(ctx, SeatRequest{CourseID: course.ID, StudentID: studentID, AcademicYear: 2025, Semester: "fall"})
		require.NoError(t, err)
	}
	for _, studentID := range []uint{2, 3} {
		_, err := capacity.ReleaseSeat(ctx, course.ID, studentID)
		require.NoError(t, err)
	}

	fall, err := svc.RecordCapacitySnapshot(ctx, actor, course.ID, dto.CapacitySnapshotRequest{AcademicYear: 2025, Semester: "fall"})
	require.NoError(t, err)
	require.Equal(t, 2, fall.PeakWaitlistSize)
	require.Equal(t, 1, fall.FinalEnrollment)

	state, err := offerings.LoadState(ctx, course.ID)
	require.NoError(t, err)
	require.Zero(t, state.Offering.PeakWaitlist)

	_, err = capacity.ReleaseSeat(ctx, course.ID, 1)
	require.NoError(t, err)
	_, err = capacity.RequestSeat(ctx, SeatRequest{CourseID: course.ID, StudentID: 9, AcademicYear: 2026, Semester: "spring"})
	require.NoError(t, err)

	spring, err := svc.RecordCapacitySnapshot(ctx, actor, course.ID, dto.CapacitySnapshotRequest{AcademicYear: 2026, Semester: "spring"})
	require.NoError(t, err)
	require.Zero(t, spring.PeakWaitlistSize)
	require.Equal(t, 1, spring.FinalEnrollment)
}
