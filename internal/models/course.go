package models

import (
	"strings"
	"time"
)

// PrerequisiteLogic describes how a prerequisite term combines with its siblings.
type PrerequisiteLogic string

// Supported prerequisite logic kinds.
const (
	PrerequisiteRequired PrerequisiteLogic = "REQUIRED"
	PrerequisiteOr       PrerequisiteLogic = "OR"
)

// Course represents a catalog course that students enroll in.
type Course struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	Code          string             `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Title         string             `gorm:"size:255;not null" json:"title"`
	CreditHours   float64            `gorm:"not null;default:3" json:"credit_hours"`
	MaxEnrollment int                `gorm:"not null;default:0" json:"max_enrollment"`
	Prerequisites []PrerequisiteTerm `gorm:"foreignKey:CourseID" json:"prerequisites"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// PrerequisiteTerm is a single entry in a course's prerequisite list.
type PrerequisiteTerm struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	CourseID     uint              `gorm:"index;not null" json:"course_id"`
	RequiredCode string            `gorm:"size:32;not null" json:"required_code"`
	Logic        PrerequisiteLogic `gorm:"size:16;not null;default:REQUIRED" json:"logic"`
	OrGroup      string            `gorm:"size:32" json:"or_group,omitempty"`
	MinimumGrade string            `gorm:"size:4" json:"minimum_grade,omitempty"`
}

// NormalizeCourseCode canonicalises a course code for comparisons.
func NormalizeCourseCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), " "))
}
