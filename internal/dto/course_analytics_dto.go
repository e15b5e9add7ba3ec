package dto

import "time"

// TermEnrollmentCount is the number of enrollments in one academic term.
type TermEnrollmentCount struct {
	AcademicYear int    `json:"academic_year"`
	Semester     string `json:"semester"`
	Enrollments  int    `json:"enrollments"`
}

// SemesterGrowth compares the earliest and latest year of a semester in the window.
type SemesterGrowth struct {
	Semester          string   `json:"semester"`
	EarliestYear      int      `json:"earliest_year"`
	LatestYear        int      `json:"latest_year"`
	EarliestCount     int      `json:"earliest_count"`
	LatestCount       int      `json:"latest_count"`
	GrowthRatePercent *float64 `json:"growth_rate_percent"`
}

// EnrollmentTrendReport describes enrollment patterns over a lookback window.
type EnrollmentTrendReport struct {
	CourseID      uint                  `json:"course_id"`
	LookbackYears int                   `json:"lookback_years"`
	Terms         []TermEnrollmentCount `json:"terms"`
	Growth        []SemesterGrowth      `json:"growth"`
	Direction     string                `json:"direction"`
	GeneratedAt   time.Time             `json:"generated_at"`
	CacheHit      bool                  `json:"cache_hit"`
}

// SuccessRateReport classifies final grades for a course.
type SuccessRateReport struct {
	CourseID          uint      `json:"course_id"`
	GradedEnrollments int       `json:"graded_enrollments"`
	Successful        int       `json:"successful"`
	Unsuccessful      int       `json:"unsuccessful"`
	Withdrawn         int       `json:"withdrawn"`
	SuccessRate       float64   `json:"success_rate"`
	FailureRate       float64   `json:"failure_rate"`
	WithdrawalRate    float64   `json:"withdrawal_rate"`
	GeneratedAt       time.Time `json:"generated_at"`
	CacheHit          bool      `json:"cache_hit"`
}

// AtRiskStudent is a current enrollment whose midterm grade is under the threshold.
type AtRiskStudent struct {
	EnrollmentID       uint     `json:"enrollment_id"`
	StudentID          uint     `json:"student_id"`
	MidtermGrade       string   `json:"midterm_grade"`
	RiskFactors        []string `json:"risk_factors"`
	RecommendedActions []string `json:"recommended_actions"`
}

// AtRiskReport lists at-risk students for a term.
type AtRiskReport struct {
	CourseID     uint            `json:"course_id"`
	AcademicYear int             `json:"academic_year"`
	Semester     string          `json:"semester"`
	Threshold    string          `json:"threshold"`
	Students     []AtRiskStudent `json:"students"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// CapacityUtilizationReport summarises seat usage across terms.
type CapacityUtilizationReport struct {
	CourseID                  uint      `json:"course_id"`
	LookbackYears             int       `json:"lookback_years"`
	TermsAnalyzed             int       `json:"terms_analyzed"`
	AverageUtilizationPercent float64   `json:"average_utilization_percent"`
	AverageWaitlistSize       float64   `json:"average_waitlist_size"`
	IsHighDemand              bool      `json:"is_high_demand"`
	Recommendations           []string  `json:"recommendations"`
	GeneratedAt               time.Time `json:"generated_at"`
	CacheHit                  bool      `json:"cache_hit"`
}

// CapacitySnapshotRequest asks to record the end-of-term capacity of a course.
type CapacitySnapshotRequest struct {
	AcademicYear int    `json:"academic_year" validate:"required,gte=1900,lte=2200"`
	Semester     string `json:"semester" validate:"required,max=16"`
}

// CapacitySnapshotResponse serialises a recorded snapshot.
type CapacitySnapshotResponse struct {
	ID               uint      `json:"id"`
	CourseID         uint      `json:"course_id"`
	AcademicYear     int       `json:"academic_year"`
	Semester         string    `json:"semester"`
	MaxCapacity      int       `json:"max_capacity"`
	FinalEnrollment  int       `json:"final_enrollment"`
	PeakWaitlistSize int       `json:"peak_waitlist_size"`
	CreatedAt        time.Time `json:"created_at"`
}
