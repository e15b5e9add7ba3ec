package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

func completed(code, grade string) models.CompletedCourse {
	return models.CompletedCourse{StudentID: 1, CourseCode: code, FinalGrade: grade}
}

func TestValidatePrerequisitesRequiredAndOrGroup(t *testing.T) {
	terms := []models.PrerequisiteTerm{
		{RequiredCode: "CS101", Logic: models.PrerequisiteRequired},
		{RequiredCode: "MATH101", Logic: models.PrerequisiteOr, OrGroup: "math"},
		{RequiredCode: "MATH102", Logic: models.PrerequisiteOr, OrGroup: "math"},
	}
	history := []models.CompletedCourse{completed("CS101", "B"), completed("MATH102", "C")}

	result, err := ValidatePrerequisites(history, terms, DefaultPrerequisitePolicy())
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.Empty(t, result.MissingRequired)
	require.Empty(t, result.UnsatisfiedOrGroups)
	require.Equal(t, "all prerequisites satisfied", result.Reason())
}

func TestValidatePrerequisitesFailingGradeDoesNotSatisfy(t *testing.T) {
	terms := []models.PrerequisiteTerm{{RequiredCode: "CS101", Logic: models.PrerequisiteRequired}}

	for _, grade := range []string{"F", "W", "I", ""} {
		result, err := ValidatePrerequisites([]models.CompletedCourse{completed("CS101", grade)}, terms, DefaultPrerequisitePolicy())
		require.NoError(t, err)
		require.False(t, result.IsValid, "grade %q should not satisfy", grade)
		require.Equal(t, []string{"CS101"}, result.MissingRequired)
	}
}

func TestValidatePrerequisitesUnsatisfiedOrGroupListsOptions(t *testing.T) {
	terms := []models.PrerequisiteTerm{
		{RequiredCode: "CS101"},
		{RequiredCode: "MATH101", Logic: models.PrerequisiteOr, OrGroup: "math"},
		{RequiredCode: "MATH102", Logic: models.PrerequisiteOr, OrGroup: "math"},
	}

	result, err := ValidatePrerequisites(nil, terms, DefaultPrerequisitePolicy())
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Equal(t, []string{"CS101"}, result.MissingRequired)
	require.Equal(t, []string{"math"}, result.UnsatisfiedOrGroups)
	require.Equal(t, []string{"MATH101", "MATH102"}, result.OrGroupOptions["math"])
	require.Equal(t, "missing required courses: CS101; requires one of: MATH101, MATH102", result.Reason())
}

func TestValidatePrerequisitesRetakeCounts(t *testing.T) {
	terms := []models.PrerequisiteTerm{{RequiredCode: "CS101", Logic: models.PrerequisiteRequired}}
	history := []models.CompletedCourse{completed("CS101", "F"), completed("cs101", "b")}

	result, err := ValidatePrerequisites(history, terms, DefaultPrerequisitePolicy())
	require.NoError(t, err)
	require.True(t, result.IsValid)
}

func TestValidatePrerequisitesMinimumGrades(t *testing.T) {
	terms := []models.PrerequisiteTerm{{RequiredCode: "CS101", Logic: models.PrerequisiteRequired, MinimumGrade: "B"}}

	result, err := ValidatePrerequisites([]models.CompletedCourse{completed("CS101", "C")}, terms, DefaultPrerequisitePolicy())
	require.NoError(t, err)
	require.False(t, result.IsValid)

	result, err = ValidatePrerequisites([]models.CompletedCourse{completed("CS101", "B+")}, terms, DefaultPrerequisitePolicy())
	require.NoError(t, err)
	require.True(t, result.IsValid)

	policy := DefaultPrerequisitePolicy()
	policy.MinimumGrade = "C"
	plain := []models.PrerequisiteTerm{{RequiredCode: "CS101"}}
	result, err = ValidatePrerequisites([]models.CompletedCourse{completed("CS101", "D")}, plain, policy)
	require.NoError(t, err)
	require.False(t, result.IsValid)
}

func TestValidatePrerequisitesEmptyTermsAlwaysValid(t *testing.T) {
	result, err := ValidatePrerequisites(nil, nil, DefaultPrerequisitePolicy())
	require.NoError(t, err)
	require.True(t, result.IsValid)
}

func TestValidatePrerequisitesRejectsMalformedTerms(t *testing.T) {
	cases := map[string][]models.PrerequisiteTerm{
		"or without group": {{RequiredCode: "CS101", Logic: models.PrerequisiteOr}},
		"missing code":     {{RequiredCode: "  "}},
		"unknown logic":    {{RequiredCode: "CS101", Logic: "XOR"}},
		"unranked minimum": {{RequiredCode: "CS101", MinimumGrade: "Z"}},
	}

	for name, terms := range cases {
		_, err := ValidatePrerequisites(nil, terms, DefaultPrerequisitePolicy())
		require.ErrorIs(t, err, ErrInvalidArgument, name)
	}
}
