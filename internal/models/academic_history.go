package models

import "time"

// CompletedCourse is a posted final grade in a student's academic history.
type CompletedCourse struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StudentID    uint      `gorm:"index;not null" json:"student_id"`
	CourseCode   string    `gorm:"size:32;index;not null" json:"course_code"`
	FinalGrade   string    `gorm:"size:4" json:"final_grade"`
	Semester     string    `gorm:"size:16" json:"semester"`
	AcademicYear int       `json:"academic_year"`
	PostedAt     time.Time `json:"posted_at"`
}
