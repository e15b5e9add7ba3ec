package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
)

// IsActive reports whether the enrollment still holds a seat or a waitlist spot.
func (s EnrollmentStatus) IsActive() bool {
	return s == EnrollmentStatusEnrolled || s == EnrollmentStatusWaitlisted
}

// Enrollment captures a student's registration to a course within a term.
// Rows are never deleted; only the status transitions.
type Enrollment struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	StudentID    uint             `gorm:"index:idx_enrollment_student_course;not null" json:"student_id"`
	CourseID     uint             `gorm:"index:idx_enrollment_student_course;index;not null" json:"course_id"`
	Status       EnrollmentStatus `gorm:"size:16;index;not null" json:"status"`
	FinalGrade   string           `gorm:"size:4" json:"final_grade,omitempty"`
	MidtermGrade string           `gorm:"size:4" json:"midterm_grade,omitempty"`
	AcademicYear int              `gorm:"index" json:"academic_year"`
	Semester     string           `gorm:"size:16" json:"semester"`
	EnrolledAt   time.Time        `json:"enrolled_at"`
	DroppedAt    *time.Time       `json:"dropped_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// WaitlistEntry records a student's place in a course waitlist. Positions are
// 1-based and contiguous.
type WaitlistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	StudentID uint      `gorm:"not null" json:"student_id"`
	Position  int       `gorm:"not null" json:"position"`
	AddedAt   time.Time `json:"added_at"`
}

// CourseOffering tracks seat usage for a course. Version guards concurrent writers.
type CourseOffering struct {
	CourseID          uint      `gorm:"primaryKey;autoIncrement:false" json:"course_id"`
	MaxCapacity       int       `gorm:"not null" json:"max_capacity"`
	CurrentEnrollment int       `gorm:"not null;default:0" json:"current_enrollment"`
	PeakWaitlist      int       `gorm:"not null;default:0" json:"peak_waitlist"`
	Version           uint      `gorm:"not null;default:1" json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CapacitySnapshot is the end-of-term capacity picture of an offering.
type CapacitySnapshot struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CourseID         uint      `gorm:"uniqueIndex:idx_snapshot_term;not null" json:"course_id"`
	AcademicYear     int       `gorm:"uniqueIndex:idx_snapshot_term;not null" json:"academic_year"`
	Semester         string    `gorm:"uniqueIndex:idx_snapshot_term;size:16;not null" json:"semester"`
	MaxCapacity      int       `json:"max_capacity"`
	FinalEnrollment  int       `json:"final_enrollment"`
	PeakWaitlistSize int       `json:"peak_waitlist_size"`
	CreatedAt        time.Time `json:"created_at"`
}
