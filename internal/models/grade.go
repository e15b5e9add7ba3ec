package models

import "strings"

// Special grade markers that carry no quality points.
const (
	GradeWithdrawal = "W"
	GradeIncomplete = "I"
)

// GradeScale maps letter grades to quality points. Higher points rank higher.
type GradeScale map[string]float64

// DefaultGradeScale is the institution's four-point letter scale.
var DefaultGradeScale = GradeScale{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"D-": 0.7,
	"F":  0.0,
}

// NormalizeGrade upper-cases and trims a grade label.
func NormalizeGrade(grade string) string {
	return strings.ToUpper(strings.TrimSpace(grade))
}

// Points returns the quality points for grade and whether the grade is on the scale.
func (s GradeScale) Points(grade string) (float64, bool) {
	if s == nil {
		s = DefaultGradeScale
	}
	points, ok := s[NormalizeGrade(grade)]
	return points, ok
}

// Contains reports whether the grade is ranked on the scale.
func (s GradeScale) Contains(grade string) bool {
	_, ok := s.Points(grade)
	return ok
}

// AtLeast reports whether grade ranks at or above minimum. Grades missing from
// the scale never satisfy a minimum.
func (s GradeScale) AtLeast(grade, minimum string) bool {
	got, ok := s.Points(grade)
	if !ok {
		return false
	}
	floor, ok := s.Points(minimum)
	if !ok {
		return false
	}
	return got >= floor
}

// Below reports whether a ranked grade falls strictly under threshold.
func (s GradeScale) Below(grade, threshold string) bool {
	got, ok := s.Points(grade)
	if !ok {
		return false
	}
	limit, ok := s.Points(threshold)
	if !ok {
		return false
	}
	return got < limit
}
