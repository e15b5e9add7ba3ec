package models

import "time"

// Notification types emitted by the enrollment engine.
const (
	NotificationTypeWaitlistPromotion = "waitlist.promoted"
)

// Notification is a message addressed to a single student.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	CourseID  *uint     `gorm:"index" json:"course_id,omitempty"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
