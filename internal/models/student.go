package models

import "time"

// StudentStatus captures whether a student may register for courses.
type StudentStatus string

// Student statuses.
const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusSuspended StudentStatus = "suspended"
	StudentStatusGraduated StudentStatus = "graduated"
)

// Student represents a registered learner.
type Student struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	StudentNumber string        `gorm:"size:32;uniqueIndex;not null" json:"student_number"`
	Name          string        `gorm:"size:255;not null" json:"name"`
	Email         string        `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Status        StudentStatus `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CanEnroll reports whether the student is allowed to request seats.
func (s Student) CanEnroll() bool {
	return s.Status == "" || s.Status == StudentStatusActive
}
