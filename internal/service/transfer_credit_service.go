package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/observability"
)

// Condition notes attached to transfer dispositions.
const (
	noteNoEquivalency = "No equivalency found"
	noteNoLocalMatch  = "no local equivalent"
)

// TransferCreditService evaluates externally earned courses against the transfer policy.
type TransferCreditService interface {
	Evaluate(ctx context.Context, request dto.TransferEvaluationRequest, policy TransferPolicy) (dto.TransferEvaluationResponse, error)
}

type transferCreditService struct {
	resolver  EquivalencyResolver
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTransferCreditService constructs the transfer credit evaluator.
func NewTransferCreditService(resolver EquivalencyResolver, validate *validator.Validate, logger zerolog.Logger) TransferCreditService {
	return &transferCreditService{
		resolver:  resolver,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "transfer_credit_service").Logger(),
		now:       time.Now,
	}
}

func (s *transferCreditService) Evaluate(ctx context.Context, request dto.TransferEvaluationRequest, policy TransferPolicy) (dto.TransferEvaluationResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-enrollment-api/internal/service/transfer_credit")
	ctx, span := tracer.Start(ctx, "transfer.evaluate")
	span.SetAttributes(
		attribute.Int64("transfer.student_id", int64(request.StudentID)),
		attribute.Int("transfer.course_count", len(request.Courses)),
	)
	defer span.End()

	if s.validator != nil {
		if err := s.validator.Struct(request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation_failed")
			return dto.TransferEvaluationResponse{}, &InvalidArgumentError{Msg: err.Error()}
		}
	}

	dispositions, err := EvaluateTransferCredits(ctx, request, policy, s.resolver, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_failed")
		return dto.TransferEvaluationResponse{}, err
	}

	total := 0.0
	for i := range dispositions {
		s.sanitize(&dispositions[i])
		total += dispositions[i].CreditsAwarded
		observability.TransferDispositions().WithLabelValues(string(dispositions[i].Status)).Inc()
	}

	s.logger.Info().
		Uint("student_id", request.StudentID).
		Int("courses", len(dispositions)).
		Float64("credits_awarded", total).
		Msg("transfer credits evaluated")
	span.SetAttributes(attribute.Float64("transfer.credits_awarded", total))

	return dto.TransferEvaluationResponse{
		StudentID:           request.StudentID,
		Dispositions:        dispositions,
		TotalCreditsAwarded: total,
		MaxTransferCredits:  policy.MaxTransferCredits,
	}, nil
}

// sanitize strips markup from administrator-entered equivalency conditions.
func (s *transferCreditService) sanitize(disposition *dto.TransferCreditDisposition) {
	for i, note := range disposition.Conditions {
		disposition.Conditions[i] = strings.TrimSpace(s.sanitizer.Sanitize(note))
	}
	if disposition.Equivalency != nil {
		disposition.Equivalency.Conditions = strings.TrimSpace(s.sanitizer.Sanitize(disposition.Equivalency.Conditions))
	}
}

// EvaluateTransferCredits produces one disposition per external course, in
// batch order. The credit cap is applied first-come: the course that crosses
// MaxTransferCredits keeps only the remaining headroom and every later
// approved course is awarded nothing. Capping never changes a status.
func EvaluateTransferCredits(ctx context.Context, request dto.TransferEvaluationRequest, policy TransferPolicy, resolver EquivalencyResolver, now time.Time) ([]dto.TransferCreditDisposition, error) {
	if err := checkTransferInput(request, policy, now); err != nil {
		return nil, err
	}

	dispositions := make([]dto.TransferCreditDisposition, 0, len(request.Courses))
	awarded := 0.0
	capNote := fmt.Sprintf("transfer credit cap of %s reached", formatCredits(policy.MaxTransferCredits))

	for _, course := range request.Courses {
		disposition, err := evaluateExternalCourse(ctx, course, policy, resolver, now)
		if err != nil {
			return nil, err
		}

		if disposition.Status == dto.DispositionApproved || disposition.Status == dto.DispositionConditionalApproval {
			headroom := policy.MaxTransferCredits - awarded
			switch {
			case headroom <= 0:
				disposition.CreditsAwarded = 0
				disposition.CreditsCapped = true
				disposition.Conditions = append(disposition.Conditions, capNote)
			case disposition.CreditsAwarded > headroom:
				disposition.CreditsAwarded = headroom
				disposition.CreditsCapped = true
				disposition.Conditions = append(disposition.Conditions, capNote)
			}
			awarded += disposition.CreditsAwarded
		}

		dispositions = append(dispositions, disposition)
	}

	return dispositions, nil
}

func evaluateExternalCourse(ctx context.Context, course models.ExternalCourse, policy TransferPolicy, resolver EquivalencyResolver, now time.Time) (dto.TransferCreditDisposition, error) {
	disposition := dto.TransferCreditDisposition{
		ExternalCourse: course,
		Conditions:     []string{},
	}

	scale := policy.scaleFor(course.InstitutionCode)
	grade := models.NormalizeGrade(course.Grade)
	rejected := false

	if course.CompletedAt.AddDate(policy.MaxCourseAgeYears, 0, 0).Before(now) {
		rejected = true
		disposition.Conditions = append(disposition.Conditions,
			fmt.Sprintf("course age exceeds policy (%d years)", policy.MaxCourseAgeYears))
	}

	recognized := scale.Contains(grade)
	if recognized && policy.MinimumGrade != "" && scale.Below(grade, policy.MinimumGrade) {
		rejected = true
		disposition.Conditions = append(disposition.Conditions,
			fmt.Sprintf("grade below minimum (%s < %s)", grade, models.NormalizeGrade(policy.MinimumGrade)))
	}
	if !recognized {
		disposition.Conditions = append(disposition.Conditions,
			fmt.Sprintf("grade %s not recognized on institution grade scale", grade))
	}

	switch {
	case rejected:
		disposition.Status = dto.DispositionRejected
		return disposition, nil
	case !recognized:
		disposition.Status = dto.DispositionPendingReview
		return disposition, nil
	}

	record, found, err := resolver.Resolve(ctx, course)
	if err != nil {
		return dto.TransferCreditDisposition{}, fmt.Errorf("resolve equivalency for %s %s: %w", course.InstitutionCode, course.CourseCode, err)
	}
	if !found {
		disposition.Status = dto.DispositionPendingReview
		disposition.Conditions = append(disposition.Conditions, noteNoEquivalency)
		return disposition, nil
	}

	disposition.Equivalency = &record
	conditions := strings.TrimSpace(record.Conditions)

	switch record.Kind {
	case models.EquivalencyDirect:
		disposition.Status = dto.DispositionApproved
		disposition.CreditsAwarded = record.CreditsAwarded
	case models.EquivalencyPartial, models.EquivalencyConditional:
		disposition.Status = dto.DispositionConditionalApproval
		disposition.CreditsAwarded = record.CreditsAwarded
		if conditions == "" {
			conditions = strings.ToLower(string(record.Kind)) + " equivalency"
		}
		disposition.Conditions = append(disposition.Conditions, conditions)
	case models.EquivalencyNoEquivalent:
		disposition.Status = dto.DispositionRejected
		disposition.Conditions = append(disposition.Conditions, noteNoLocalMatch)
		if conditions != "" {
			disposition.Conditions = append(disposition.Conditions, conditions)
		}
	default:
		disposition.Status = dto.DispositionPendingReview
		disposition.Conditions = append(disposition.Conditions,
			fmt.Sprintf("equivalency kind %q requires manual review", record.Kind))
	}

	return disposition, nil
}

func checkTransferInput(request dto.TransferEvaluationRequest, policy TransferPolicy, now time.Time) error {
	if request.StudentID == 0 {
		return invalidArgument("student_id", "is required")
	}
	if len(request.Courses) == 0 {
		return invalidArgument("courses", "must contain at least one external course")
	}
	if policy.MaxCourseAgeYears < 0 {
		return invalidArgument("max_course_age_years", "must not be negative")
	}
	if policy.MaxTransferCredits < 0 {
		return invalidArgument("max_transfer_credits", "must not be negative")
	}

	for i, course := range request.Courses {
		switch {
		case strings.TrimSpace(course.InstitutionCode) == "":
			return invalidArgument("courses", "course %d has no institution code", i+1)
		case strings.TrimSpace(course.CourseCode) == "":
			return invalidArgument("courses", "course %d has no course code", i+1)
		case strings.TrimSpace(course.Grade) == "":
			return invalidArgument("courses", "course %s has no grade", course.CourseCode)
		case course.CreditHours < 0:
			return invalidArgument("courses", "course %s has negative credit hours", course.CourseCode)
		case course.CompletedAt.IsZero():
			return invalidArgument("courses", "course %s has no completion date", course.CourseCode)
		case course.CompletedAt.After(now):
			return invalidArgument("courses", "course %s completion date is in the future", course.CourseCode)
		}
		if policy.MinimumGrade != "" && !policy.scaleFor(course.InstitutionCode).Contains(policy.MinimumGrade) {
			return invalidArgument("minimum_grade", "%q is not on the grade scale of %s", policy.MinimumGrade, course.InstitutionCode)
		}
	}

	return nil
}

func formatCredits(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
