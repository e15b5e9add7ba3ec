package service

import (
	"time"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// SeatOutcome is the result of asking an offering for a seat.
type SeatOutcome string

// Seat outcomes.
const (
	SeatApproved   SeatOutcome = "APPROVED"
	SeatWaitlisted SeatOutcome = "WAITLISTED"
)

// SeatDecision reports whether a seat was granted or a waitlist spot assigned.
type SeatDecision struct {
	Outcome  SeatOutcome
	Position int
}

// Offering is the mutable seat and waitlist state of one course. It is not
// safe for concurrent use; CapacityService serialises access per course.
//
// Invariants: 0 <= CurrentEnrollment <= MaxCapacity, and waitlist positions
// are exactly 1..len(Waitlist) in arrival order.
type Offering struct {
	CourseID          uint
	MaxCapacity       int
	CurrentEnrollment int
	PeakWaitlist      int
	Waitlist          []models.WaitlistEntry
}

// NewOffering builds an offering, rejecting impossible capacity figures.
func NewOffering(courseID uint, maxCapacity, currentEnrollment int, waitlist []models.WaitlistEntry) (*Offering, error) {
	if maxCapacity < 0 {
		return nil, invalidArgument("max_capacity", "must not be negative (got %d)", maxCapacity)
	}
	if currentEnrollment < 0 {
		return nil, invalidArgument("current_enrollment", "must not be negative (got %d)", currentEnrollment)
	}
	if currentEnrollment > maxCapacity {
		return nil, invalidArgument("current_enrollment", "%d exceeds capacity %d", currentEnrollment, maxCapacity)
	}

	offering := &Offering{
		CourseID:          courseID,
		MaxCapacity:       maxCapacity,
		CurrentEnrollment: currentEnrollment,
		Waitlist:          append([]models.WaitlistEntry(nil), waitlist...),
	}
	offering.renumber()
	offering.PeakWaitlist = len(offering.Waitlist)
	return offering, nil
}

// Availability reports free seats and waitlist length.
func (o *Offering) Availability() dto.SeatStatus {
	available := o.MaxCapacity - o.CurrentEnrollment
	if available < 0 {
		available = 0
	}
	return dto.SeatStatus{
		CourseID:          o.CourseID,
		MaxCapacity:       o.MaxCapacity,
		CurrentEnrollment: o.CurrentEnrollment,
		AvailableSeats:    available,
		IsFull:            available == 0,
		WaitlistCount:     len(o.Waitlist),
	}
}

// RequestSeat grants a seat when one is free, otherwise appends the student to
// the waitlist tail.
func (o *Offering) RequestSeat(studentID uint, now time.Time) SeatDecision {
	if o.CurrentEnrollment < o.MaxCapacity {
		o.CurrentEnrollment++
		return SeatDecision{Outcome: SeatApproved}
	}

	position := len(o.Waitlist) + 1
	o.Waitlist = append(o.Waitlist, models.WaitlistEntry{
		CourseID:  o.CourseID,
		StudentID: studentID,
		Position:  position,
		AddedAt:   now,
	})
	if len(o.Waitlist) > o.PeakWaitlist {
		o.PeakWaitlist = len(o.Waitlist)
	}
	return SeatDecision{Outcome: SeatWaitlisted, Position: position}
}

// ReleaseSeat frees a seat and, when students are waiting, promotes the head of
// the waitlist into it. The promoted entry is returned.
func (o *Offering) ReleaseSeat() (models.WaitlistEntry, bool) {
	if o.CurrentEnrollment > 0 {
		o.CurrentEnrollment--
	}
	if len(o.Waitlist) == 0 || o.CurrentEnrollment >= o.MaxCapacity {
		return models.WaitlistEntry{}, false
	}

	promoted := o.Waitlist[0]
	o.Waitlist = o.Waitlist[1:]
	o.CurrentEnrollment++
	o.renumber()
	return promoted, true
}

// LeaveWaitlist removes a student from the waitlist without touching seats.
func (o *Offering) LeaveWaitlist(studentID uint) bool {
	for i, entry := range o.Waitlist {
		if entry.StudentID != studentID {
			continue
		}
		o.Waitlist = append(o.Waitlist[:i:i], o.Waitlist[i+1:]...)
		o.renumber()
		return true
	}
	return false
}

// WaitlistPosition returns the student's 1-based position, or 0 when absent.
func (o *Offering) WaitlistPosition(studentID uint) int {
	for _, entry := range o.Waitlist {
		if entry.StudentID == studentID {
			return entry.Position
		}
	}
	return 0
}

func (o *Offering) renumber() {
	for i := range o.Waitlist {
		o.Waitlist[i].Position = i + 1
	}
}
