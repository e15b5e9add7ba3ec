package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
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

// EnrollmentService runs an enrollment request end to end: prerequisites,
// seat allocation and the resulting enrollment record.
type EnrollmentService interface {
	ProcessEnrollmentRequest(ctx context.Context, actor ActivityActor, request dto.EnrollmentRequest) (dto.EnrollmentResult, error)
	DropEnrollment(ctx context.Context, actor ActivityActor, studentID, courseID uint) (dto.DropResult, error)
	CheckEligibility(ctx context.Context, studentID, courseID uint) (dto.EligibilityResponse, error)
}

type enrollmentService struct {
	students  repository.StudentRepository
	courses   repository.CourseRepository
	history   repository.AcademicHistoryRepository
	capacity  CapacityService
	activity  ActivityRecorder
	policy    PrerequisitePolicy
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEnrollmentService wires the orchestrator. activity may be nil.
func NewEnrollmentService(
	students repository.StudentRepository,
	courses repository.CourseRepository,
	history repository.AcademicHistoryRepository,
	capacity CapacityService,
	activity ActivityRecorder,
	policy PrerequisitePolicy,
	validate *validator.Validate,
	logger zerolog.Logger,
) EnrollmentService {
	return &enrollmentService{
		students:  students,
		courses:   courses,
		history:   history,
		capacity:  capacity,
		activity:  activity,
		policy:    policy,
		validator: validate,
		logger:    logger.With().Str("component", "enrollment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-enrollment-api/internal/service/enrollment"),
	}
}

func (s *enrollmentService) ProcessEnrollmentRequest(ctx context.Context, actor ActivityActor, request dto.EnrollmentRequest) (dto.EnrollmentResult, error) {
	request.Semester = strings.ToLower(strings.TrimSpace(request.Semester))
	if s.validator != nil {
		if err := s.validator.Struct(request); err != nil {
			return dto.EnrollmentResult{}, &InvalidArgumentError{Msg: err.Error()}
		}
	}

	ctx, span := s.tracer.Start(ctx, "enrollment.process", trace.WithAttributes(
		attribute.Int64("enrollment.student_id", int64(request.StudentID)),
		attribute.Int64("enrollment.course_id", int64(request.CourseID)),
	))
	defer span.End()

	result, err := s.process(ctx, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrollment_failed")
		return dto.EnrollmentResult{}, err
	}

	span.SetAttributes(attribute.String("enrollment.status", string(result.Status)))
	observability.EnrollmentDecisions().WithLabelValues(string(result.Status)).Inc()
	s.record(ctx, actor, ActivityEntry{
		Action:     ActivityEnrollmentDecided,
		EntityType: ActivityEntityCourse,
		EntityID:   &request.CourseID,
		Metadata: map[string]interface{}{
			"student_id":    request.StudentID,
			"status":        string(result.Status),
			"message":       result.Message,
			"academic_year": request.AcademicYear,
			"semester":      request.Semester,
		},
	})

	s.logger.Info().
		Uint("student_id", request.StudentID).
		Uint("course_id", request.CourseID).
		Str("status", string(result.Status)).
		Msg("enrollment request processed")

	return result, nil
}

func (s *enrollmentService) process(ctx context.Context, request dto.EnrollmentRequest) (dto.EnrollmentResult, error) {
	student, err := s.students.FindForEnrollment(ctx, request.StudentID)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return dto.EnrollmentResult{}, ErrStudentNotFound
		}
		return dto.EnrollmentResult{}, err
	}
	if !student.CanEnroll() {
		return dto.EnrollmentResult{
			Status:  dto.EnrollmentRejected,
			Message: fmt.Sprintf("student status %s does not permit enrollment", student.Status),
		}, nil
	}

	course, validation, err := s.validate(ctx, request.StudentID, request.CourseID)
	if err != nil {
		return dto.EnrollmentResult{}, err
	}
	if !validation.IsValid {
		return dto.EnrollmentResult{
			Status:     dto.EnrollmentRejected,
			Message:    "prerequisites not met for " + course.Code + ": " + validation.Reason(),
			Validation: &validation,
		}, nil
	}

	seat, err := s.capacity.RequestSeat(ctx, SeatRequest{
		CourseID:     request.CourseID,
		StudentID:    request.StudentID,
		AcademicYear: request.AcademicYear,
		Semester:     request.Semester,
	})
	if err != nil {
		return dto.EnrollmentResult{}, err
	}

	if seat.AlreadyActive != nil {
		message := "already enrolled in " + course.Code
		if seat.AlreadyActive.Status == models.EnrollmentStatusWaitlisted {
			message = "already waitlisted for " + course.Code
		}
		id := seat.AlreadyActive.ID
		return dto.EnrollmentResult{
			Status:       dto.EnrollmentRejected,
			Message:      message,
			EnrollmentID: &id,
		}, nil
	}

	id := seat.Enrollment.ID
	if seat.Decision.Outcome == SeatWaitlisted {
		position := seat.Decision.Position
		return dto.EnrollmentResult{
			Status:           dto.EnrollmentWaitlisted,
			Message:          fmt.Sprintf("%s is full; added to waitlist at position %d", course.Code, position),
			WaitlistPosition: &position,
			EnrollmentID:     &id,
		}, nil
	}

	return dto.EnrollmentResult{
		Status:       dto.EnrollmentApproved,
		Message:      "enrolled in " + course.Code,
		EnrollmentID: &id,
	}, nil
}

func (s *enrollmentService) DropEnrollment(ctx context.Context, actor ActivityActor, studentID, courseID uint) (dto.DropResult, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.drop", trace.WithAttributes(
		attribute.Int64("enrollment.student_id", int64(studentID)),
		attribute.Int64("enrollment.course_id", int64(courseID)),
	))
	defer span.End()

	released, err := s.capacity.ReleaseSeat(ctx, courseID, studentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "drop_failed")
		return dto.DropResult{}, err
	}

	result := dto.DropResult{
		CourseID:       courseID,
		StudentID:      studentID,
		PreviousStatus: string(released.PreviousStatus),
		Availability:   released.Availability,
	}
	if released.Dropped.DroppedAt != nil {
		result.DroppedAt = *released.Dropped.DroppedAt
	}

	metadata := map[string]interface{}{
		"student_id":      studentID,
		"previous_status": string(released.PreviousStatus),
	}
	if released.Promoted != nil {
		promoted := released.Promoted.StudentID
		result.PromotedStudent = &promoted
		metadata["promoted_student_id"] = promoted

		s.record(ctx, actor, ActivityEntry{
			Action:     ActivityWaitlistPromoted,
			EntityType: ActivityEntityCourse,
			EntityID:   &courseID,
			Metadata: map[string]interface{}{
				"student_id":    promoted,
				"enrollment_id": released.Promoted.ID,
			},
		})
	}

	s.record(ctx, actor, ActivityEntry{
		Action:     ActivityEnrollmentDropped,
		EntityType: ActivityEntityCourse,
		EntityID:   &courseID,
		Metadata:   metadata,
	})

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("course_id", courseID).
		Bool("promoted", released.Promoted != nil).
		Msg("enrollment dropped")

	return result, nil
}

func (s *enrollmentService) CheckEligibility(ctx context.Context, studentID, courseID uint) (dto.EligibilityResponse, error) {
	if studentID == 0 {
		return dto.EligibilityResponse{}, invalidArgument("student_id", "is required")
	}
	if courseID == 0 {
		return dto.EligibilityResponse{}, invalidArgument("course_id", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "enrollment.check_eligibility")
	defer span.End()

	course, validation, err := s.validate(ctx, studentID, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "eligibility_failed")
		return dto.EligibilityResponse{}, err
	}

	return dto.EligibilityResponse{
		StudentID:  studentID,
		CourseID:   courseID,
		CourseCode: course.Code,
		Eligible:   validation.IsValid,
		Reason:     validation.Reason(),
		Validation: validation,
	}, nil
}

func (s *enrollmentService) validate(ctx context.Context, studentID, courseID uint) (models.Course, dto.ValidationResult, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, dto.ValidationResult{}, ErrCourseNotFound
		}
		return models.Course{}, dto.ValidationResult{}, err
	}

	history, err := s.history.ListByStudent(ctx, studentID)
	if err != nil {
		return models.Course{}, dto.ValidationResult{}, fmt.Errorf("load academic history: %w", err)
	}

	validation, err := ValidatePrerequisites(history, course.Prerequisites, s.policy)
	if err != nil {
		return models.Course{}, dto.ValidationResult{}, err
	}

	return course, validation, nil
}

func (s *enrollmentService) record(ctx context.Context, actor ActivityActor, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	entry.ActorID = actor.ID
	entry.ActorRole = actor.Role
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record enrollment activity")
	}
}
