package service

import (
	"strings"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// PrerequisitePolicy decides which posted grades satisfy a prerequisite.
type PrerequisitePolicy struct {
	FailingGrades []string
	MinimumGrade  string
	Scale         models.GradeScale
}

// TransferPolicy is the institutional transfer-credit policy.
type TransferPolicy struct {
	MaxCourseAgeYears  int
	MinimumGrade       string
	MaxTransferCredits float64
	Scale              models.GradeScale
	InstitutionScales  map[string]models.GradeScale
}

// AnalyticsPolicy carries thresholds and advisory text for course analytics.
type AnalyticsPolicy struct {
	SuccessThreshold      string
	AtRiskThreshold       string
	FailingGrade          string
	LowUtilizationPercent float64
	SemesterOrder         []string
	RiskActions           []string
	EscalationActions     []string
	Scale                 models.GradeScale
}

// DefaultPrerequisitePolicy treats F, W and I as not satisfying a prerequisite.
func DefaultPrerequisitePolicy() PrerequisitePolicy {
	return PrerequisitePolicy{
		FailingGrades: []string{"F", models.GradeWithdrawal, models.GradeIncomplete},
		Scale:         models.DefaultGradeScale,
	}
}

// DefaultTransferPolicy mirrors the registrar's published transfer rules.
func DefaultTransferPolicy() TransferPolicy {
	return TransferPolicy{
		MaxCourseAgeYears:  7,
		MinimumGrade:       "C",
		MaxTransferCredits: 60,
		Scale:              models.DefaultGradeScale,
	}
}

// DefaultAnalyticsPolicy returns the advising office's default thresholds.
func DefaultAnalyticsPolicy() AnalyticsPolicy {
	return AnalyticsPolicy{
		SuccessThreshold:      "C",
		AtRiskThreshold:       "C-",
		FailingGrade:          "F",
		LowUtilizationPercent: 50,
		SemesterOrder:         []string{"spring", "summer", "fall", "winter"},
		RiskActions: []string{
			"Schedule a meeting with the academic advisor",
			"Refer the student to tutoring services",
			"Share instructor office hours and study group options",
		},
		EscalationActions: []string{
			"Notify the instructor and the student's advisor of the failing midterm",
			"Review late-drop and withdrawal deadlines with the student",
		},
		Scale: models.DefaultGradeScale,
	}
}

// scaleFor returns the grade scale used for an institution.
func (p TransferPolicy) scaleFor(institution string) models.GradeScale {
	if scale, ok := p.InstitutionScales[strings.ToUpper(strings.TrimSpace(institution))]; ok && len(scale) > 0 {
		return scale
	}
	if len(p.Scale) > 0 {
		return p.Scale
	}
	return models.DefaultGradeScale
}

func (p PrerequisitePolicy) scale() models.GradeScale {
	if len(p.Scale) > 0 {
		return p.Scale
	}
	return models.DefaultGradeScale
}

func (p AnalyticsPolicy) scale() models.GradeScale {
	if len(p.Scale) > 0 {
		return p.Scale
	}
	return models.DefaultGradeScale
}

func (p PrerequisitePolicy) isFailing(grade string) bool {
	for _, failing := range p.FailingGrades {
		if models.NormalizeGrade(failing) == grade {
			return true
		}
	}
	return false
}
