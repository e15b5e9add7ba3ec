package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

// conflictingOfferings fails the first n writes with a version conflict.
type conflictingOfferings struct {
	repository.OfferingRepository
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (c *conflictingOfferings) ApplySeatChange(ctx context.Context, change repository.SeatChange) error {
	c.mu.Lock()
	c.calls++
	fail := c.calls <= c.conflicts
	c.mu.Unlock()
	if fail {
		return repository.ErrConcurrencyConflict
	}
	return c.OfferingRepository.ApplySeatChange(ctx, change)
}

func newCapacityFixture(t *testing.T, capacity int) (CapacityService, repository.OfferingRepository, *recordingNotifier, models.Course) {
	t.Helper()
	db := setupTestDB(t)
	course := seedCourse(t, db, "CS201", capacity)

	offerings := repository.NewOfferingRepository(db)
	notifier := &recordingNotifier{}
	svc := NewCapacityService(repository.NewCourseRepository(db), offerings, nil, notifier, testLogger())
	return svc, offerings, notifier, course
}

func seat(courseID, studentID uint) SeatRequest {
	return SeatRequest{CourseID: courseID, StudentID: studentID, AcademicYear: 2026, Semester: "fall"}
}

func TestCapacityServiceFillsSeatsThenWaitlists(t *testing.T) {
	svc, _, _, course := newCapacityFixture(t, 2)
	ctx := context.Background()

	for _, studentID := range []uint{1, 2} {
		result, err := svc.RequestSeat(ctx, seat(course.ID, studentID))
		require.NoError(t, err)
		require.Equal(t, SeatApproved, result.Decision.Outcome)
		require.Equal(t, models.EnrollmentStatusEnrolled, result.Enrollment.Status)
		require.NotZero(t, result.Enrollment.ID)
	}

	for i, studentID := range []uint{3, 4} {
		result, err := svc.RequestSeat(ctx, seat(course.ID, studentID))
		require.NoError(t, err)
		require.Equal(t, SeatWaitlisted, result.Decision.Outcome)
		require.Equal(t, i+1, result.Decision.Position)
		require.Equal(t, models.EnrollmentStatusWaitlisted, result.Enrollment.Status)
	}

	status, err := svc.GetAvailability(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, 2, status.MaxCapacity)
	require.Equal(t, 2, status.CurrentEnrollment)
	require.True(t, status.IsFull)
	require.Equal(t, 2, status.WaitlistCount)

	offering, err := svc.GetOffering(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, 2, offering.PeakWaitlist)
}

func TestCapacityServiceReportsAlreadyActive(t *testing.T) {
	svc, _, _, course := newCapacityFixture(t, 1)
	ctx := context.Background()

	first, err := svc.RequestSeat(ctx, seat(course.ID, 1))
	require.NoError(t, err)

	again, err := svc.RequestSeat(ctx, seat(course.ID, 1))
	require.NoError(t, err)
	require.NotNil(t, again.AlreadyActive)
	require.Equal(t, first.Enrollment.ID, again.AlreadyActive.ID)

	status, err := svc.GetAvailability(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, 1, status.CurrentEnrollment)
	require.Zero(t, status.WaitlistCount)
}

func TestCapacityServiceReleasePromotesWaitlistHead(t *testing.T) {
	svc, offerings, notifier, course := newCapacityFixture(t, 1)
	ctx := context.Background()

	for _, studentID := range []uint{1, 2, 3} {
		_, err := svc.RequestSeat(ctx, seat(course.ID, studentID))
		require.NoError(t, err)
	}

	released, err := svc.ReleaseSeat(ctx, course.ID, 1)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusEnrolled, released.PreviousStatus)
	require.Equal(t, models.EnrollmentStatusDropped, released.Dropped.Status)
	require.NotNil(t, released.Dropped.DroppedAt)
	require.NotNil(t, released.Promoted)
	require.Equal(t, uint(2), released.Promoted.StudentID)
	require.Equal(t, 1, released.Availability.CurrentEnrollment)
	require.Equal(t, 1, released.Availability.WaitlistCount)

	promoted, err := offerings.FindActiveEnrollment(ctx, 2, course.ID)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusEnrolled, promoted.Status)
	require.Equal(t, released.Promoted.ID, promoted.ID)

	state, err := offerings.LoadState(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, state.Waitlist, 1)
	require.Equal(t, uint(3), state.Waitlist[0].StudentID)
	require.Equal(t, 1, state.Waitlist[0].Position)

	require.Len(t, notifier.events, 1)
	require.Equal(t, uint(2), notifier.events[0].StudentID)
	require.Equal(t, "CS201", notifier.events[0].CourseCode)
}

func TestCapacityServiceDroppingWaitlistedStudentKeepsSeats(t *testing.T) {
	svc, offerings, notifier, course := newCapacityFixture(t, 1)
	ctx := context.Background()

	for _, studentID := range []uint{1, 2, 3} {
		_, err := svc.RequestSeat(ctx, seat(course.ID, studentID))
		require.NoError(t, err)
	}

	released, err := svc.ReleaseSeat(ctx, course.ID, 2)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusWaitlisted, released.PreviousStatus)
	require.Nil(t, released.Promoted)
	require.Equal(t, 1, released.Availability.CurrentEnrollment)
	require.Empty(t, notifier.events)

	state, err := offerings.LoadState(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, state.Waitlist, 1)
	require.Equal(t, uint(3), state.Waitlist[0].StudentID)
	require.Equal(t, 1, state.Waitlist[0].Position)
}

func TestCapacityServiceReleaseWithoutEnrollment(t *testing.T) {
	svc, _, _, course := newCapacityFixture(t, 1)

	_, err := svc.ReleaseSeat(context.Background(), course.ID, 42)
	require.ErrorIs(t, err, ErrEnrollmentNotFound)

	_, err = svc.GetAvailability(context.Background(), course.ID+100)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCapacityServiceRetriesOneConflict(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourse(t, db, "CS301", 1)
	offerings := &conflictingOfferings{OfferingRepository: repository.NewOfferingRepository(db), conflicts: 1}
	svc := NewCapacityService(repository.NewCourseRepository(db), offerings, nil, nil, testLogger())

	result, err := svc.RequestSeat(context.Background(), seat(course.ID, 1))
	require.NoError(t, err)
	require.Equal(t, SeatApproved, result.Decision.Outcome)
	require.Equal(t, 2, offerings.calls)
}

func TestCapacityServiceSurfacesRepeatedConflict(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourse(t, db, "CS302", 1)
	offerings := &conflictingOfferings{OfferingRepository: repository.NewOfferingRepository(db), conflicts: 2}
	svc := NewCapacityService(repository.NewCourseRepository(db), offerings, nil, nil, testLogger())

	_, err := svc.RequestSeat(context.Background(), seat(course.ID, 1))
	require.ErrorIs(t, err, ErrConcurrencyConflict)
	require.True(t, IsRetryable(err))

	status, err := svc.GetAvailability(context.Background(), course.ID)
	require.NoError(t, err)
	require.Zero(t, status.CurrentEnrollment)
}

func TestCapacityServiceConcurrentRequestsNeverOverbook(t *testing.T) {
	svc, offerings, _, course := newCapacityFixture(t, 3)
	ctx := context.Background()

	const students = 10
	type outcome struct {
		result SeatResult
		err    error
	}
	results := make(chan outcome, students)

	var wg sync.WaitGroup
	for i := 1; i <= students; i++ {
		wg.Add(1)
		go func(studentID uint) {
			defer wg.Done()
			result, err := svc.RequestSeat(ctx, seat(course.ID, studentID))
			results <- outcome{result: result, err: err}
		}(uint(i))
	}
	wg.Wait()
	close(results)

	approved := 0
	positions := make(map[int]bool)
	for out := range results {
		require.NoError(t, out.err)
		if out.result.Decision.Outcome == SeatApproved {
			approved++
			continue
		}
		require.False(t, positions[out.result.Decision.Position], "duplicate waitlist position")
		positions[out.result.Decision.Position] = true
	}
	require.Equal(t, 3, approved)
	require.Len(t, positions, students-3)
	for position := 1; position <= students-3; position++ {
		require.True(t, positions[position])
	}

	state, err := offerings.LoadState(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, 3, state.Offering.CurrentEnrollment)
	require.Len(t, state.Waitlist, students-3)
}

func TestCapacityServiceAvailabilityIsStableBetweenChanges(t *testing.T) {
	svc, offerings, _, course := newCapacityFixture(t, 1)
	ctx := context.Background()

	steps := []struct {
		name   string
		mutate func(t *testing.T)
		want   dto.SeatStatus
	}{
		{
			name:   "fresh offering",
			mutate: func(*testing.T) {},
			want:   dto.SeatStatus{CourseID: course.ID, MaxCapacity: 1, AvailableSeats: 1},
		},
		{
			name: "full with waitlist",
			mutate: func(t *testing.T) {
				for _, studentID := range []uint{1, 2} {
					_, err := svc.RequestSeat(ctx, seat(course.ID, studentID))
					require.NoError(t, err)
				}
			},
			want: dto.SeatStatus{CourseID: course.ID, MaxCapacity: 1, CurrentEnrollment: 1, IsFull: true, WaitlistCount: 1},
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			step.mutate(t)

			first, err := svc.GetAvailability(ctx, course.ID)
			require.NoError(t, err)
			require.Equal(t, step.want, first)
			before, err := offerings.LoadState(ctx, course.ID)
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				again, err := svc.GetAvailability(ctx, course.ID)
				require.NoError(t, err)
				require.Equal(t, first, again)
			}

			after, err := offerings.LoadState(ctx, course.ID)
			require.NoError(t, err)
			require.Equal(t, before.Offering.Version, after.Offering.Version)
			require.Len(t, after.Waitlist, first.WaitlistCount)
		})
	}
}
