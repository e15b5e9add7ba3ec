package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const recommendIncreaseCapacity = "Consider increasing capacity: students were waitlisted in the analysed terms"

type termKey struct {
	year     int
	semester string
}

// EnrollmentTrends counts enrollments per term for academic years inside the
// lookback window ending at currentYear, and compares the earliest and latest
// count of each semester.
func EnrollmentTrends(records []models.Enrollment, currentYear, lookbackYears int, policy AnalyticsPolicy) (dto.EnrollmentTrendReport, error) {
	if lookbackYears <= 0 {
		return dto.EnrollmentTrendReport{}, invalidArgument("lookback_years", "must be positive (got %d)", lookbackYears)
	}

	fromYear := currentYear - lookbackYears
	counts := make(map[termKey]int)
	for _, record := range records {
		if record.AcademicYear <= fromYear || record.AcademicYear > currentYear {
			continue
		}
		semester := strings.ToLower(strings.TrimSpace(record.Semester))
		if semester == "" {
			continue
		}
		counts[termKey{year: record.AcademicYear, semester: semester}]++
	}

	rank := semesterRank(policy.SemesterOrder)
	keys := make([]termKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		if ri, rj := rank(keys[i].semester), rank(keys[j].semester); ri != rj {
			return ri < rj
		}
		return keys[i].semester < keys[j].semester
	})

	report := dto.EnrollmentTrendReport{
		LookbackYears: lookbackYears,
		Terms:         make([]dto.TermEnrollmentCount, 0, len(keys)),
		Growth:        []dto.SemesterGrowth{},
		Direction:     TrendStable,
	}

	growth := make(map[string]*dto.SemesterGrowth)
	semesters := make([]string, 0)
	yearTotals := make(map[int]int)
	for _, key := range keys {
		count := counts[key]
		report.Terms = append(report.Terms, dto.TermEnrollmentCount{
			AcademicYear: key.year,
			Semester:     key.semester,
			Enrollments:  count,
		})
		yearTotals[key.year] += count

		entry, ok := growth[key.semester]
		if !ok {
			entry = &dto.SemesterGrowth{
				Semester:      key.semester,
				EarliestYear:  key.year,
				EarliestCount: count,
			}
			growth[key.semester] = entry
			semesters = append(semesters, key.semester)
		}
		entry.LatestYear = key.year
		entry.LatestCount = count
	}

	sort.SliceStable(semesters, func(i, j int) bool { return rank(semesters[i]) < rank(semesters[j]) })
	for _, semester := range semesters {
		entry := growth[semester]
		if entry.LatestYear != entry.EarliestYear && entry.EarliestCount > 0 {
			rate := round2(float64(entry.LatestCount-entry.EarliestCount) / float64(entry.EarliestCount) * 100)
			entry.GrowthRatePercent = &rate
		}
		report.Growth = append(report.Growth, *entry)
	}

	if len(keys) > 0 {
		first := yearTotals[keys[0].year]
		last := yearTotals[keys[len(keys)-1].year]
		switch {
		case last > first:
			report.Direction = TrendIncreasing
		case last < first:
			report.Direction = TrendDecreasing
		}
	}

	return report, nil
}

// SuccessRates classifies final grades. Records without a final grade, or
// with a grade that is neither W nor on the scale, are left out entirely.
func SuccessRates(records []models.Enrollment, policy AnalyticsPolicy) (dto.SuccessRateReport, error) {
	scale := policy.scale()
	if !scale.Contains(policy.SuccessThreshold) {
		return dto.SuccessRateReport{}, invalidArgument("success_threshold", "%q is not on the grade scale", policy.SuccessThreshold)
	}

	report := dto.SuccessRateReport{}
	for _, record := range records {
		grade := models.NormalizeGrade(record.FinalGrade)
		switch {
		case grade == "":
			continue
		case grade == models.GradeWithdrawal:
			report.Withdrawn++
		case !scale.Contains(grade):
			continue
		case scale.AtLeast(grade, policy.SuccessThreshold):
			report.Successful++
		default:
			report.Unsuccessful++
		}
		report.GradedEnrollments++
	}

	if report.GradedEnrollments > 0 {
		total := float64(report.GradedEnrollments)
		report.SuccessRate = round2(float64(report.Successful) / total * 100)
		report.FailureRate = round2(float64(report.Unsuccessful) / total * 100)
		report.WithdrawalRate = round2(float64(report.Withdrawn) / total * 100)
	}

	return report, nil
}

// AtRiskStudents flags current-term ENROLLED records whose midterm grade ranks
// below the at-risk threshold. previous holds earlier graded attempts at the
// same course, used to add a repeat-attempt risk factor.
func AtRiskStudents(current []models.Enrollment, previous []models.Enrollment, policy AnalyticsPolicy) ([]dto.AtRiskStudent, error) {
	scale := policy.scale()
	if !scale.Contains(policy.AtRiskThreshold) {
		return nil, invalidArgument("at_risk_threshold", "%q is not on the grade scale", policy.AtRiskThreshold)
	}
	threshold := models.NormalizeGrade(policy.AtRiskThreshold)
	failing := models.NormalizeGrade(policy.FailingGrade)

	priorFailures := make(map[uint]int)
	for _, record := range previous {
		grade := models.NormalizeGrade(record.FinalGrade)
		if grade == "" {
			continue
		}
		if grade == models.GradeWithdrawal || (scale.Contains(grade) && !scale.AtLeast(grade, policy.SuccessThreshold)) {
			priorFailures[record.StudentID]++
		}
	}

	students := make([]dto.AtRiskStudent, 0)
	for _, record := range current {
		if record.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		midterm := models.NormalizeGrade(record.MidtermGrade)
		if midterm == "" || !scale.Below(midterm, threshold) {
			continue
		}

		factors := []string{fmt.Sprintf("midterm grade %s is below the at-risk threshold %s", midterm, threshold)}
		actions := append([]string(nil), policy.RiskActions...)

		if failing != "" && midterm == failing {
			factors = append(factors, "failing midterm grade")
			actions = append(actions, policy.EscalationActions...)
		}
		if attempts := priorFailures[record.StudentID]; attempts > 0 {
			factors = append(factors, fmt.Sprintf("%d previous unsuccessful attempt(s) at this course", attempts))
		}
		if len(actions) == 0 {
			actions = []string{"Contact the student to discuss their progress"}
		}

		students = append(students, dto.AtRiskStudent{
			EnrollmentID:       record.ID,
			StudentID:          record.StudentID,
			MidtermGrade:       midterm,
			RiskFactors:        factors,
			RecommendedActions: actions,
		})
	}

	return students, nil
}

// CapacityUtilization averages seat usage and peak waitlist size over the
// snapshots. Snapshots with zero capacity carry no utilisation signal and are
// skipped.
func CapacityUtilization(snapshots []models.CapacitySnapshot, policy AnalyticsPolicy) (dto.CapacityUtilizationReport, error) {
	report := dto.CapacityUtilizationReport{Recommendations: []string{}}

	utilization := 0.0
	waitlist := 0.0
	for _, snapshot := range snapshots {
		if snapshot.MaxCapacity < 0 {
			return dto.CapacityUtilizationReport{}, invalidArgument("max_capacity", "snapshot %d/%s has negative capacity", snapshot.AcademicYear, snapshot.Semester)
		}
		if snapshot.FinalEnrollment < 0 || snapshot.PeakWaitlistSize < 0 {
			return dto.CapacityUtilizationReport{}, invalidArgument("snapshot", "snapshot %d/%s has negative counts", snapshot.AcademicYear, snapshot.Semester)
		}
		if snapshot.MaxCapacity == 0 {
			continue
		}
		utilization += float64(snapshot.FinalEnrollment) / float64(snapshot.MaxCapacity)
		waitlist += float64(snapshot.PeakWaitlistSize)
		report.TermsAnalyzed++
	}

	if report.TermsAnalyzed == 0 {
		return report, nil
	}

	terms := float64(report.TermsAnalyzed)
	report.AverageUtilizationPercent = round2(utilization / terms * 100)
	report.AverageWaitlistSize = round2(waitlist / terms)
	report.IsHighDemand = waitlist/terms > 0

	if report.IsHighDemand {
		report.Recommendations = append(report.Recommendations, recommendIncreaseCapacity)
	}
	if policy.LowUtilizationPercent > 0 && report.AverageUtilizationPercent < policy.LowUtilizationPercent {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Average utilization %.2f%% is below %s%%: consider consolidating sections", report.AverageUtilizationPercent, formatCredits(policy.LowUtilizationPercent)))
	}

	return report, nil
}

func semesterRank(order []string) func(string) int {
	index := make(map[string]int, len(order))
	for i, semester := range order {
		index[strings.ToLower(strings.TrimSpace(semester))] = i
	}
	return func(semester string) int {
		if rank, ok := index[semester]; ok {
			return rank
		}
		return len(order)
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
