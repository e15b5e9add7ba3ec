package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

// EquivalencyResolver maps an external course onto at most one local equivalency.
type EquivalencyResolver interface {
	// Resolve returns false when no active equivalency exists. That is an
	// expected outcome, not an error.
	Resolve(ctx context.Context, external models.ExternalCourse) (models.Equivalency, bool, error)
}

type equivalencyResolver struct {
	repo   repository.EquivalencyRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewEquivalencyResolver constructs the resolver.
func NewEquivalencyResolver(repo repository.EquivalencyRepository, logger zerolog.Logger) EquivalencyResolver {
	return &equivalencyResolver{
		repo:   repo,
		logger: logger.With().Str("component", "equivalency_resolver").Logger(),
		now:    time.Now,
	}
}

func (r *equivalencyResolver) Resolve(ctx context.Context, external models.ExternalCourse) (models.Equivalency, bool, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-enrollment-api/internal/service/equivalency")
	ctx, span := tracer.Start(ctx, "equivalency.resolve")
	span.SetAttributes(
		attribute.String("equivalency.institution", external.InstitutionCode),
		attribute.String("equivalency.course_code", external.CourseCode),
	)
	defer span.End()

	candidates, err := r.repo.ListByExternal(ctx, external.InstitutionCode, external.CourseCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "equivalency_lookup_failed")
		return models.Equivalency{}, false, err
	}

	record, found := ResolveEquivalency(candidates, external, r.now())
	span.SetAttributes(attribute.Bool("equivalency.found", found))
	if found {
		r.logger.Debug().
			Uint("equivalency_id", record.ID).
			Str("kind", string(record.Kind)).
			Msg("equivalency resolved")
	}

	return record, found, nil
}

// ResolveEquivalency picks the winning record for an external course. Only
// records keyed by the same institution and course code that are active and
// already effective at now qualify; the latest effective date wins, then the
// highest id.
func ResolveEquivalency(candidates []models.Equivalency, external models.ExternalCourse, now time.Time) (models.Equivalency, bool) {
	institution := strings.ToUpper(strings.TrimSpace(external.InstitutionCode))
	code := models.NormalizeCourseCode(external.CourseCode)

	var (
		best  models.Equivalency
		found bool
	)
	for _, candidate := range candidates {
		if strings.ToUpper(strings.TrimSpace(candidate.InstitutionCode)) != institution {
			continue
		}
		if models.NormalizeCourseCode(candidate.ExternalCourseCode) != code {
			continue
		}
		if !candidate.IsActive(now) || candidate.EffectiveDate.After(now) {
			continue
		}
		if !found ||
			candidate.EffectiveDate.After(best.EffectiveDate) ||
			(candidate.EffectiveDate.Equal(best.EffectiveDate) && candidate.ID > best.ID) {
			best = candidate
			found = true
		}
	}

	return best, found
}
