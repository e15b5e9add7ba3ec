package dto

import (
	"fmt"
	"strings"
	"time"
)

// EnrollmentDecision is the outcome of an enrollment request.
type EnrollmentDecision string

// Enrollment decisions returned to callers.
const (
	EnrollmentApproved   EnrollmentDecision = "APPROVED"
	EnrollmentWaitlisted EnrollmentDecision = "WAITLISTED"
	EnrollmentRejected   EnrollmentDecision = "REJECTED"
)

// EnrollmentRequest asks for a seat in a course for a term.
type EnrollmentRequest struct {
	StudentID    uint   `json:"student_id" validate:"required"`
	CourseID     uint   `json:"course_id" validate:"required"`
	AcademicYear int    `json:"academic_year" validate:"required,gte=1900,lte=2200"`
	Semester     string `json:"semester" validate:"required,max=16"`
}

// EnrollmentResult reports what happened to an enrollment request.
type EnrollmentResult struct {
	Status           EnrollmentDecision `json:"status"`
	Message          string             `json:"message"`
	WaitlistPosition *int               `json:"waitlist_position,omitempty"`
	EnrollmentID     *uint              `json:"enrollment_id,omitempty"`
	Validation       *ValidationResult  `json:"validation,omitempty"`
}

// DropResult reports a drop and any waitlist promotion it caused.
type DropResult struct {
	CourseID        uint       `json:"course_id"`
	StudentID       uint       `json:"student_id"`
	PreviousStatus  string     `json:"previous_status"`
	DroppedAt       time.Time  `json:"dropped_at"`
	PromotedStudent *uint      `json:"promoted_student_id,omitempty"`
	Availability    SeatStatus `json:"availability"`
}

// SeatStatus summarises seat usage for an offering.
type SeatStatus struct {
	CourseID          uint `json:"course_id"`
	MaxCapacity       int  `json:"max_capacity"`
	CurrentEnrollment int  `json:"current_enrollment"`
	AvailableSeats    int  `json:"available_seats"`
	IsFull            bool `json:"is_full"`
	WaitlistCount     int  `json:"waitlist_count"`
}

// ValidationResult is the outcome of checking prerequisites against a history.
type ValidationResult struct {
	IsValid             bool                `json:"is_valid"`
	MissingRequired     []string            `json:"missing_required"`
	UnsatisfiedOrGroups []string            `json:"unsatisfied_or_groups"`
	OrGroupOptions      map[string][]string `json:"or_group_options,omitempty"`
}

// Reason renders the unmet prerequisites as a readable sentence.
func (r ValidationResult) Reason() string {
	if r.IsValid {
		return "all prerequisites satisfied"
	}

	parts := make([]string, 0, 1+len(r.UnsatisfiedOrGroups))
	if len(r.MissingRequired) > 0 {
		parts = append(parts, "missing required courses: "+strings.Join(r.MissingRequired, ", "))
	}
	for _, group := range r.UnsatisfiedOrGroups {
		options := r.OrGroupOptions[group]
		if len(options) == 0 {
			parts = append(parts, fmt.Sprintf("prerequisite group %s not satisfied", group))
			continue
		}
		parts = append(parts, "requires one of: "+strings.Join(options, ", "))
	}
	return strings.Join(parts, "; ")
}

// EligibilityResponse reports whether a student may request a seat.
type EligibilityResponse struct {
	StudentID  uint             `json:"student_id"`
	CourseID   uint             `json:"course_id"`
	CourseCode string           `json:"course_code"`
	Eligible   bool             `json:"eligible"`
	Reason     string           `json:"reason"`
	Validation ValidationResult `json:"validation"`
}
