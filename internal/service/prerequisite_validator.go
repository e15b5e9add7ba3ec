package service

import (
	"strings"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

type orGroup struct {
	id        string
	members   []string
	satisfied bool
}

// ValidatePrerequisites checks a course's prerequisite terms against a student's
// posted grades. Every REQUIRED term and at least one member of every OR group
// must be satisfied by a passing grade. It has no side effects.
func ValidatePrerequisites(history []models.CompletedCourse, terms []models.PrerequisiteTerm, policy PrerequisitePolicy) (dto.ValidationResult, error) {
	result := dto.ValidationResult{
		IsValid:             true,
		MissingRequired:     []string{},
		UnsatisfiedOrGroups: []string{},
	}

	scale := policy.scale()
	if policy.MinimumGrade != "" && !scale.Contains(policy.MinimumGrade) {
		return dto.ValidationResult{}, invalidArgument("minimum_grade", "%q is not on the grade scale", policy.MinimumGrade)
	}
	if err := checkPrerequisiteTerms(terms, scale); err != nil {
		return dto.ValidationResult{}, err
	}
	if len(terms) == 0 {
		return result, nil
	}

	grades := make(map[string][]string, len(history))
	for _, completion := range history {
		code := models.NormalizeCourseCode(completion.CourseCode)
		grades[code] = append(grades[code], models.NormalizeGrade(completion.FinalGrade))
	}

	passed := func(term models.PrerequisiteTerm) bool {
		for _, grade := range grades[models.NormalizeCourseCode(term.RequiredCode)] {
			if grade == "" || policy.isFailing(grade) {
				continue
			}
			if policy.MinimumGrade != "" && !scale.AtLeast(grade, policy.MinimumGrade) {
				continue
			}
			if term.MinimumGrade != "" && !scale.AtLeast(grade, term.MinimumGrade) {
				continue
			}
			return true
		}
		return false
	}

	missing := make(map[string]struct{})
	groups := make([]*orGroup, 0)
	groupIndex := make(map[string]*orGroup)

	for _, term := range terms {
		code := models.NormalizeCourseCode(term.RequiredCode)
		ok := passed(term)

		if logicOf(term) == models.PrerequisiteRequired {
			if ok {
				continue
			}
			if _, seen := missing[code]; !seen {
				missing[code] = struct{}{}
				result.MissingRequired = append(result.MissingRequired, code)
			}
			continue
		}

		groupID := strings.TrimSpace(term.OrGroup)
		group, exists := groupIndex[groupID]
		if !exists {
			group = &orGroup{id: groupID}
			groupIndex[groupID] = group
			groups = append(groups, group)
		}
		if !containsString(group.members, code) {
			group.members = append(group.members, code)
		}
		group.satisfied = group.satisfied || ok
	}

	for _, group := range groups {
		if group.satisfied {
			continue
		}
		if result.OrGroupOptions == nil {
			result.OrGroupOptions = make(map[string][]string)
		}
		result.UnsatisfiedOrGroups = append(result.UnsatisfiedOrGroups, group.id)
		result.OrGroupOptions[group.id] = group.members
	}

	result.IsValid = len(result.MissingRequired) == 0 && len(result.UnsatisfiedOrGroups) == 0
	return result, nil
}

func checkPrerequisiteTerms(terms []models.PrerequisiteTerm, scale models.GradeScale) error {
	for i, term := range terms {
		if strings.TrimSpace(term.RequiredCode) == "" {
			return invalidArgument("prerequisites", "term %d has no course code", i+1)
		}
		switch logicOf(term) {
		case models.PrerequisiteRequired:
		case models.PrerequisiteOr:
			if strings.TrimSpace(term.OrGroup) == "" {
				return invalidArgument("prerequisites", "OR term %s has no group id", term.RequiredCode)
			}
		default:
			return invalidArgument("prerequisites", "term %s has unknown logic %q", term.RequiredCode, term.Logic)
		}
		if term.MinimumGrade != "" && !scale.Contains(term.MinimumGrade) {
			return invalidArgument("prerequisites", "term %s minimum grade %q is not on the grade scale", term.RequiredCode, term.MinimumGrade)
		}
	}
	return nil
}

func logicOf(term models.PrerequisiteTerm) models.PrerequisiteLogic {
	logic := models.PrerequisiteLogic(strings.ToUpper(strings.TrimSpace(string(term.Logic))))
	if logic == "" {
		return models.PrerequisiteRequired
	}
	return logic
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
