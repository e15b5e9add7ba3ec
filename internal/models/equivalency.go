package models

import "time"

// EquivalencyKind classifies how an external course maps onto the local catalog.
type EquivalencyKind string

// Supported equivalency kinds.
const (
	EquivalencyDirect       EquivalencyKind = "DIRECT"
	EquivalencyPartial      EquivalencyKind = "PARTIAL"
	EquivalencyConditional  EquivalencyKind = "CONDITIONAL"
	EquivalencyNoEquivalent EquivalencyKind = "NO_EQUIVALENT"
)

// Equivalency maps an externally earned course to a local course. Records are
// maintained by catalog administrators.
type Equivalency struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	InstitutionCode    string          `gorm:"size:32;index:idx_equivalency_external;not null" json:"institution_code"`
	ExternalCourseCode string          `gorm:"size:32;index:idx_equivalency_external;not null" json:"external_course_code"`
	ExternalTitle      string          `gorm:"size:255" json:"external_title"`
	LocalCourseID      *uint           `json:"local_course_id,omitempty"`
	Kind               EquivalencyKind `gorm:"size:16;not null" json:"kind"`
	CreditsAwarded     float64         `json:"credits_awarded"`
	Conditions         string          `gorm:"type:text" json:"conditions,omitempty"`
	EffectiveDate      time.Time       `gorm:"not null" json:"effective_date"`
	ExpirationDate     *time.Time      `json:"expiration_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsActive reports whether the record has not expired at the reference time.
func (e Equivalency) IsActive(reference time.Time) bool {
	return e.ExpirationDate == nil || e.ExpirationDate.After(reference)
}

// ExternalCourse describes a course completed at another institution. It is
// evaluated but never persisted.
type ExternalCourse struct {
	InstitutionCode string    `json:"institution_code" validate:"required,max=32"`
	CourseCode      string    `json:"course_code" validate:"required,max=32"`
	Title           string    `json:"title" validate:"omitempty,max=255"`
	CreditHours     float64   `json:"credit_hours" validate:"gte=0"`
	Grade           string    `json:"grade" validate:"required,max=4"`
	CompletedAt     time.Time `json:"completed_at" validate:"required"`
}
