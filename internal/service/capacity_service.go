package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/observability"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

// SeatRequest asks an offering for a seat on behalf of a student.
type SeatRequest struct {
	CourseID     uint
	StudentID    uint
	AcademicYear int
	Semester     string
}

// SeatResult is the persisted outcome of a seat request. AlreadyActive is set,
// and nothing is written, when the student already holds a seat or waitlist spot.
type SeatResult struct {
	Decision      SeatDecision
	Enrollment    models.Enrollment
	AlreadyActive *models.Enrollment
	Availability  dto.SeatStatus
}

// ReleaseResult is the persisted outcome of a drop.
type ReleaseResult struct {
	Dropped        models.Enrollment
	PreviousStatus models.EnrollmentStatus
	Promoted       *models.Enrollment
	Availability   dto.SeatStatus
}

// PromotionEvent announces that a waitlisted student was moved into a seat.
type PromotionEvent struct {
	CourseID     uint      `json:"course_id"`
	CourseCode   string    `json:"course_code"`
	StudentID    uint      `json:"student_id"`
	EnrollmentID uint      `json:"enrollment_id"`
	PromotedAt   time.Time `json:"promoted_at"`
}

// PromotionNotifier hands promotion events to the notification collaborator.
type PromotionNotifier interface {
	NotifyPromotion(ctx context.Context, event PromotionEvent) error
}

// CapacityService manages seats and waitlists. RequestSeat and ReleaseSeat on
// the same course never interleave.
type CapacityService interface {
	GetAvailability(ctx context.Context, courseID uint) (dto.SeatStatus, error)
	GetOffering(ctx context.Context, courseID uint) (models.CourseOffering, error)
	RequestSeat(ctx context.Context, request SeatRequest) (SeatResult, error)
	ReleaseSeat(ctx context.Context, courseID, studentID uint) (ReleaseResult, error)
	// CloseTerm returns the offering as it stood at the end of a term and
	// restarts its peak waitlist from the current waitlist length.
	CloseTerm(ctx context.Context, courseID uint) (models.CourseOffering, error)
}

type capacityService struct {
	courses   repository.CourseRepository
	offerings repository.OfferingRepository
	locker    OfferingLocker
	notifier  PromotionNotifier
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// errNoChange aborts a mutation without writing anything.
var errNoChange = errors.New("no seat change")

// NewCapacityService constructs the capacity and waitlist manager. A nil locker
// falls back to in-process locking; a nil notifier drops promotion events.
func NewCapacityService(courses repository.CourseRepository, offerings repository.OfferingRepository, locker OfferingLocker, notifier PromotionNotifier, logger zerolog.Logger) CapacityService {
	if locker == nil {
		locker = NewLocalOfferingLocker()
	}
	return &capacityService{
		courses:   courses,
		offerings: offerings,
		locker:    locker,
		notifier:  notifier,
		logger:    logger.With().Str("component", "capacity_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-enrollment-api/internal/service/capacity"),
		now:       time.Now,
	}
}

func (s *capacityService) GetAvailability(ctx context.Context, courseID uint) (dto.SeatStatus, error) {
	if courseID == 0 {
		return dto.SeatStatus{}, invalidArgument("course_id", "is required")
	}

	state, err := s.loadState(ctx, courseID)
	if err != nil {
		return dto.SeatStatus{}, err
	}
	offering, err := NewOffering(courseID, state.Offering.MaxCapacity, state.Offering.CurrentEnrollment, state.Waitlist)
	if err != nil {
		return dto.SeatStatus{}, err
	}
	return offering.Availability(), nil
}

func (s *capacityService) GetOffering(ctx context.Context, courseID uint) (models.CourseOffering, error) {
	if courseID == 0 {
		return models.CourseOffering{}, invalidArgument("course_id", "is required")
	}
	state, err := s.loadState(ctx, courseID)
	if err != nil {
		return models.CourseOffering{}, err
	}
	return state.Offering, nil
}

func (s *capacityService) CloseTerm(ctx context.Context, courseID uint) (models.CourseOffering, error) {
	if courseID == 0 {
		return models.CourseOffering{}, invalidArgument("course_id", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "capacity.close_term", trace.WithAttributes(
		attribute.Int64("capacity.course_id", int64(courseID)),
	))
	defer span.End()

	var closed models.CourseOffering
	err := s.mutate(ctx, courseID, func(offering *Offering, _ *repository.SeatChange) error {
		closed = models.CourseOffering{
			CourseID:          courseID,
			MaxCapacity:       offering.MaxCapacity,
			CurrentEnrollment: offering.CurrentEnrollment,
			PeakWaitlist:      offering.PeakWaitlist,
		}
		offering.PeakWaitlist = len(offering.Waitlist)
		return nil
	}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close_term_failed")
		return models.CourseOffering{}, err
	}
	return closed, nil
}

func (s *capacityService) RequestSeat(ctx context.Context, request SeatRequest) (SeatResult, error) {
	if request.CourseID == 0 {
		return SeatResult{}, invalidArgument("course_id", "is required")
	}
	if request.StudentID == 0 {
		return SeatResult{}, invalidArgument("student_id", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "capacity.request_seat", trace.WithAttributes(
		attribute.Int64("capacity.course_id", int64(request.CourseID)),
		attribute.Int64("capacity.student_id", int64(request.StudentID)),
	))
	defer span.End()

	var result SeatResult
	err := s.mutate(ctx, request.CourseID, func(offering *Offering, change *repository.SeatChange) error {
		result = SeatResult{}

		existing, err := s.offerings.FindActiveEnrollment(ctx, request.StudentID, request.CourseID)
		switch {
		case err == nil:
			result.AlreadyActive = &existing
			result.Availability = offering.Availability()
			return errNoChange
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		now := s.now().UTC()
		decision := offering.RequestSeat(request.StudentID, now)
		status := models.EnrollmentStatusEnrolled
		if decision.Outcome == SeatWaitlisted {
			status = models.EnrollmentStatusWaitlisted
		}

		enrollment := &models.Enrollment{
			StudentID:    request.StudentID,
			CourseID:     request.CourseID,
			Status:       status,
			AcademicYear: request.AcademicYear,
			Semester:     request.Semester,
			EnrolledAt:   now,
		}
		change.Enrollments = []*models.Enrollment{enrollment}

		result.Decision = decision
		result.Availability = offering.Availability()
		result.Enrollment = *enrollment
		return nil
	}, func(change repository.SeatChange) {
		result.Enrollment = *change.Enrollments[0]
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request_seat_failed")
		return SeatResult{}, err
	}

	span.SetAttributes(attribute.String("capacity.outcome", string(result.Decision.Outcome)))
	return result, nil
}

func (s *capacityService) ReleaseSeat(ctx context.Context, courseID, studentID uint) (ReleaseResult, error) {
	if courseID == 0 {
		return ReleaseResult{}, invalidArgument("course_id", "is required")
	}
	if studentID == 0 {
		return ReleaseResult{}, invalidArgument("student_id", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "capacity.release_seat", trace.WithAttributes(
		attribute.Int64("capacity.course_id", int64(courseID)),
		attribute.Int64("capacity.student_id", int64(studentID)),
	))
	defer span.End()

	var result ReleaseResult
	err := s.mutate(ctx, courseID, func(offering *Offering, change *repository.SeatChange) error {
		result = ReleaseResult{}

		enrollment, err := s.offerings.FindActiveEnrollment(ctx, studentID, courseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEnrollmentNotFound
			}
			return err
		}

		now := s.now().UTC()
		result.PreviousStatus = enrollment.Status

		var promoted *models.Enrollment
		if enrollment.Status == models.EnrollmentStatusEnrolled {
			entry, ok := offering.ReleaseSeat()
			if ok {
				promoted, err = s.promotedEnrollment(ctx, entry, enrollment, now)
				if err != nil {
					return err
				}
			}
		} else {
			offering.LeaveWaitlist(studentID)
		}

		enrollment.Status = models.EnrollmentStatusDropped
		enrollment.DroppedAt = &now

		change.Enrollments = []*models.Enrollment{&enrollment}
		if promoted != nil {
			change.Enrollments = append(change.Enrollments, promoted)
		}

		result.Dropped = enrollment
		result.Promoted = promoted
		result.Availability = offering.Availability()
		return nil
	}, func(change repository.SeatChange) {
		if len(change.Enrollments) > 1 {
			promoted := *change.Enrollments[1]
			result.Promoted = &promoted
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release_seat_failed")
		return ReleaseResult{}, err
	}

	if result.Promoted != nil {
		span.SetAttributes(attribute.Int64("capacity.promoted_student_id", int64(result.Promoted.StudentID)))
		observability.WaitlistPromotions().Inc()
		s.emitPromotion(ctx, *result.Promoted)
	}

	return result, nil
}

// promotedEnrollment returns the enrollment row to flip to ENROLLED for the
// waitlist head, creating one if the waitlist entry has no matching row.
func (s *capacityService) promotedEnrollment(ctx context.Context, entry models.WaitlistEntry, dropped models.Enrollment, now time.Time) (*models.Enrollment, error) {
	waiting, err := s.offerings.FindActiveEnrollment(ctx, entry.StudentID, entry.CourseID)
	switch {
	case err == nil:
		waiting.Status = models.EnrollmentStatusEnrolled
		waiting.EnrolledAt = now
		return &waiting, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Warn().
			Uint("course_id", entry.CourseID).
			Uint("student_id", entry.StudentID).
			Msg("waitlist entry had no enrollment row, creating one on promotion")
		return &models.Enrollment{
			StudentID:    entry.StudentID,
			CourseID:     entry.CourseID,
			Status:       models.EnrollmentStatusEnrolled,
			AcademicYear: dropped.AcademicYear,
			Semester:     dropped.Semester,
			EnrolledAt:   now,
		}, nil
	default:
		return nil, err
	}
}

func (s *capacityService) emitPromotion(ctx context.Context, promoted models.Enrollment) {
	if s.notifier == nil {
		return
	}

	event := PromotionEvent{
		CourseID:     promoted.CourseID,
		StudentID:    promoted.StudentID,
		EnrollmentID: promoted.ID,
		PromotedAt:   promoted.EnrolledAt,
	}
	if course, err := s.courses.GetByID(ctx, promoted.CourseID); err == nil {
		event.CourseCode = course.Code
	}

	if err := s.notifier.NotifyPromotion(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Uint("course_id", event.CourseID).
			Uint("student_id", event.StudentID).
			Msg("failed to deliver waitlist promotion event")
	}
}

// mutate runs apply against freshly loaded state under the offering lock and
// persists the result. A version conflict is retried once with re-read state.
func (s *capacityService) mutate(ctx context.Context, courseID uint, apply func(*Offering, *repository.SeatChange) error, committed func(repository.SeatChange)) error {
	unlock, err := s.locker.Lock(ctx, courseID)
	if err != nil {
		return err
	}
	defer unlock()

	for attempt := 1; attempt <= 2; attempt++ {
		state, err := s.loadState(ctx, courseID)
		if err != nil {
			return err
		}

		offering, err := NewOffering(courseID, state.Offering.MaxCapacity, state.Offering.CurrentEnrollment, state.Waitlist)
		if err != nil {
			return err
		}
		if state.Offering.PeakWaitlist > offering.PeakWaitlist {
			offering.PeakWaitlist = state.Offering.PeakWaitlist
		}

		change := repository.SeatChange{}
		if err := apply(offering, &change); err != nil {
			if errors.Is(err, errNoChange) {
				return nil
			}
			return err
		}

		change.Offering = models.CourseOffering{
			CourseID:          courseID,
			MaxCapacity:       offering.MaxCapacity,
			CurrentEnrollment: offering.CurrentEnrollment,
			PeakWaitlist:      offering.PeakWaitlist,
			Version:           state.Offering.Version,
		}
		change.Waitlist = offering.Waitlist

		err = s.offerings.ApplySeatChange(ctx, change)
		if err == nil {
			if committed != nil {
				committed(change)
			}
			return nil
		}
		if !errors.Is(err, repository.ErrConcurrencyConflict) {
			return err
		}

		observability.OfferingConflicts().Inc()
		s.logger.Warn().Uint("course_id", courseID).Int("attempt", attempt).Msg("offering version conflict")
	}

	return ErrConcurrencyConflict
}

// loadState reads the offering, creating it from the catalog on first use.
func (s *capacityService) loadState(ctx context.Context, courseID uint) (repository.OfferingState, error) {
	state, err := s.offerings.LoadState(ctx, courseID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.OfferingState{}, err
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.OfferingState{}, ErrCourseNotFound
		}
		return repository.OfferingState{}, err
	}
	if course.MaxEnrollment < 0 {
		return repository.OfferingState{}, invalidArgument("max_enrollment", "course %s has negative capacity %d", course.Code, course.MaxEnrollment)
	}

	enrolled, err := s.offerings.CountEnrolled(ctx, courseID)
	if err != nil {
		return repository.OfferingState{}, err
	}
	current := int(enrolled)
	if current > course.MaxEnrollment {
		current = course.MaxEnrollment
	}

	offering := models.CourseOffering{
		CourseID:          courseID,
		MaxCapacity:       course.MaxEnrollment,
		CurrentEnrollment: current,
		Version:           1,
	}
	if err := s.offerings.CreateOffering(ctx, &offering); err != nil {
		return repository.OfferingState{}, err
	}

	return s.offerings.LoadState(ctx, courseID)
}
