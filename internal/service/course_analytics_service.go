package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

const defaultLookbackYears = 5

// CourseAnalyticsService serves course analytics reports, caching the
// historical ones in Redis.
type CourseAnalyticsService interface {
	EnrollmentTrends(ctx context.Context, courseID uint, lookbackYears int) (dto.EnrollmentTrendReport, error)
	SuccessRates(ctx context.Context, courseID uint) (dto.SuccessRateReport, error)
	AtRiskStudents(ctx context.Context, courseID uint, academicYear int, semester string) (dto.AtRiskReport, error)
	CapacityUtilization(ctx context.Context, courseID uint, lookbackYears int) (dto.CapacityUtilizationReport, error)
	RecordCapacitySnapshot(ctx context.Context, actor ActivityActor, courseID uint, request dto.CapacitySnapshotRequest) (dto.CapacitySnapshotResponse, error)
}

type courseAnalyticsService struct {
	repo      repository.CourseAnalyticsRepository
	capacity  CapacityService
	activity  ActivityRecorder
	policy    AnalyticsPolicy
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewCourseAnalyticsService constructs the analytics service. cache may be nil.
func NewCourseAnalyticsService(
	repo repository.CourseAnalyticsRepository,
	capacity CapacityService,
	activity ActivityRecorder,
	policy AnalyticsPolicy,
	cache *redis.Client,
	ttl time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) CourseAnalyticsService {
	return &courseAnalyticsService{
		repo:      repo,
		capacity:  capacity,
		activity:  activity,
		policy:    policy,
		cache:     cache,
		cacheTTL:  ttl,
		validator: validate,
		logger:    logger.With().Str("component", "course_analytics_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-enrollment-api/internal/service/course_analytics"),
		now:       time.Now,
	}
}

func (s *courseAnalyticsService) EnrollmentTrends(ctx context.Context, courseID uint, lookbackYears int) (dto.EnrollmentTrendReport, error) {
	if courseID == 0 {
		return dto.EnrollmentTrendReport{}, invalidArgument("course_id", "is required")
	}
	if lookbackYears == 0 {
		lookbackYears = defaultLookbackYears
	}
	if lookbackYears < 0 {
		return dto.EnrollmentTrendReport{}, invalidArgument("lookback_years", "must be positive (got %d)", lookbackYears)
	}

	ctx, span := s.tracer.Start(ctx, "analytics.enrollment_trends", trace.WithAttributes(
		attribute.Int64("analytics.course_id", int64(courseID)),
		attribute.Int("analytics.lookback_years", lookbackYears),
	))
	defer span.End()

	key := fmt.Sprintf("course-analytics:%d:trends:%d", courseID, lookbackYears)
	var report dto.EnrollmentTrendReport
	if s.readCache(ctx, key, &report) {
		report.CacheHit = true
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return report, nil
	}

	currentYear := s.now().Year()
	records, err := s.repo.ListEnrollmentsSince(ctx, courseID, currentYear-lookbackYears+1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_enrollments_failed")
		return dto.EnrollmentTrendReport{}, err
	}

	report, err = EnrollmentTrends(records, currentYear, lookbackYears, s.policy)
	if err != nil {
		return dto.EnrollmentTrendReport{}, err
	}
	report.CourseID = courseID
	report.GeneratedAt = s.now().UTC()

	s.writeCache(ctx, key, report)
	return report, nil
}

func (s *courseAnalyticsService) SuccessRates(ctx context.Context, courseID uint) (dto.SuccessRateReport, error) {
	if courseID == 0 {
		return dto.SuccessRateReport{}, invalidArgument("course_id", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "analytics.success_rates", trace.WithAttributes(
		attribute.Int64("analytics.course_id", int64(courseID)),
	))
	defer span.End()

	key := fmt.Sprintf("course-analytics:%d:success-rates", courseID)
	var report dto.SuccessRateReport
	if s.readCache(ctx, key, &report) {
		report.CacheHit = true
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return report, nil
	}

	records, err := s.repo.ListGradedEnrollments(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_graded_failed")
		return dto.SuccessRateReport{}, err
	}

	report, err = SuccessRates(records, s.policy)
	if err != nil {
		return dto.SuccessRateReport{}, err
	}
	report.CourseID = courseID
	report.GeneratedAt = s.now().UTC()

	s.writeCache(ctx, key, report)
	return report, nil
}

// AtRiskStudents is not cached: midterm grades change during the term.
func (s *courseAnalyticsService) AtRiskStudents(ctx context.Context, courseID uint, academicYear int, semester string) (dto.AtRiskReport, error) {
	if courseID == 0 {
		return dto.AtRiskReport{}, invalidArgument("course_id", "is required")
	}
	semester = strings.ToLower(strings.TrimSpace(semester))
	if academicYear <= 0 {
		return dto.AtRiskReport{}, invalidArgument("academic_year", "is required")
	}
	if semester == "" {
		return dto.AtRiskReport{}, invalidArgument("semester", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "analytics.at_risk", trace.WithAttributes(
		attribute.Int64("analytics.course_id", int64(courseID)),
		attribute.Int("analytics.academic_year", academicYear),
		attribute.String("analytics.semester", semester),
	))
	defer span.End()

	current, err := s.repo.ListTermEnrollments(ctx, courseID, academicYear, semester)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_term_failed")
		return dto.AtRiskReport{}, err
	}

	graded, err := s.repo.ListGradedEnrollments(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_graded_failed")
		return dto.AtRiskReport{}, err
	}
	previous := make([]models.Enrollment, 0, len(graded))
	for _, record := range graded {
		if record.AcademicYear == academicYear && strings.EqualFold(record.Semester, semester) {
			continue
		}
		previous = append(previous, record)
	}

	students, err := AtRiskStudents(current, previous, s.policy)
	if err != nil {
		return dto.AtRiskReport{}, err
	}
	span.SetAttributes(attribute.Int("analytics.at_risk_count", len(students)))

	return dto.AtRiskReport{
		CourseID:     courseID,
		AcademicYear: academicYear,
		Semester:     semester,
		Threshold:    models.NormalizeGrade(s.policy.AtRiskThreshold),
		Students:     students,
		GeneratedAt:  s.now().UTC(),
	}, nil
}

func (s *courseAnalyticsService) CapacityUtilization(ctx context.Context, courseID uint, lookbackYears int) (dto.CapacityUtilizationReport, error) {
	if courseID == 0 {
		return dto.CapacityUtilizationReport{}, invalidArgument("course_id", "is required")
	}
	if lookbackYears == 0 {
		lookbackYears = defaultLookbackYears
	}
	if lookbackYears < 0 {
		return dto.CapacityUtilizationReport{}, invalidArgument("lookback_years", "must be positive (got %d)", lookbackYears)
	}

	ctx, span := s.tracer.Start(ctx, "analytics.capacity_utilization", trace.WithAttributes(
		attribute.Int64("analytics.course_id", int64(courseID)),
		attribute.Int("analytics.lookback_years", lookbackYears),
	))
	defer span.End()

	key := fmt.Sprintf("course-analytics:%d:capacity:%d", courseID, lookbackYears)
	var report dto.CapacityUtilizationReport
	if s.readCache(ctx, key, &report) {
		report.CacheHit = true
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return report, nil
	}

	snapshots, err := s.repo.ListSnapshotsSince(ctx, courseID, s.now().Year()-lookbackYears+1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_snapshots_failed")
		return dto.CapacityUtilizationReport{}, err
	}

	report, err = CapacityUtilization(snapshots, s.policy)
	if err != nil {
		return dto.CapacityUtilizationReport{}, err
	}
	report.CourseID = courseID
	report.LookbackYears = lookbackYears
	report.GeneratedAt = s.now().UTC()

	s.writeCache(ctx, key, report)
	return report, nil
}

func (s *courseAnalyticsService) RecordCapacitySnapshot(ctx context.Context, actor ActivityActor, courseID uint, request dto.CapacitySnapshotRequest) (dto.CapacitySnapshotResponse, error) {
	if courseID == 0 {
		return dto.CapacitySnapshotResponse{}, invalidArgument("course_id", "is required")
	}
	request.Semester = strings.ToLower(strings.TrimSpace(request.Semester))
	if s.validator != nil {
		if err := s.validator.Struct(request); err != nil {
			return dto.CapacitySnapshotResponse{}, &InvalidArgumentError{Msg: err.Error()}
		}
	}

	ctx, span := s.tracer.Start(ctx, "analytics.record_snapshot", trace.WithAttributes(
		attribute.Int64("analytics.course_id", int64(courseID)),
	))
	defer span.End()

	// Each snapshot covers one term, so the peak restarts once it is taken.
	offering, err := s.capacity.CloseTerm(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "close_term_failed")
		return dto.CapacitySnapshotResponse{}, err
	}

	snapshot := models.CapacitySnapshot{
		CourseID:         courseID,
		AcademicYear:     request.AcademicYear,
		Semester:         request.Semester,
		MaxCapacity:      offering.MaxCapacity,
		FinalEnrollment:  offering.CurrentEnrollment,
		PeakWaitlistSize: offering.PeakWaitlist,
	}
	if err := s.repo.SaveSnapshot(ctx, &snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save_snapshot_failed")
		return dto.CapacitySnapshotResponse{}, err
	}

	s.invalidate(ctx, courseID)

	if s.activity != nil {
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     ActivitySnapshotRecorded,
			EntityType: ActivityEntityCourse,
			EntityID:   &courseID,
			Metadata: map[string]interface{}{
				"academic_year":      snapshot.AcademicYear,
				"semester":           snapshot.Semester,
				"max_capacity":       snapshot.MaxCapacity,
				"final_enrollment":   snapshot.FinalEnrollment,
				"peak_waitlist_size": snapshot.PeakWaitlistSize,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record snapshot activity")
		}
	}

	return dto.CapacitySnapshotResponse{
		ID:               snapshot.ID,
		CourseID:         snapshot.CourseID,
		AcademicYear:     snapshot.AcademicYear,
		Semester:         snapshot.Semester,
		MaxCapacity:      snapshot.MaxCapacity,
		FinalEnrollment:  snapshot.FinalEnrollment,
		PeakWaitlistSize: snapshot.PeakWaitlistSize,
		CreatedAt:        snapshot.CreatedAt,
	}, nil
}

func (s *courseAnalyticsService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}
	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read analytics cache")
		}
		return false
	}
	if err := json.Unmarshal([]byte(cached), target); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed analytics cache entry")
		return false
	}
	return true
}

func (s *courseAnalyticsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store analytics cache")
	}
}

// invalidate drops cached capacity reports after a new snapshot lands.
func (s *courseAnalyticsService) invalidate(ctx context.Context, courseID uint) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("course-analytics:%d:capacity:*", courseID)
	iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan analytics cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate analytics cache")
	}
}
