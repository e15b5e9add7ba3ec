package dto

import "github.com/noah-isme/gema-enrollment-api/internal/models"

// DispositionStatus is the decision for one external course.
type DispositionStatus string

// Transfer credit dispositions.
const (
	DispositionApproved            DispositionStatus = "APPROVED"
	DispositionConditionalApproval DispositionStatus = "CONDITIONAL_APPROVAL"
	DispositionPendingReview       DispositionStatus = "PENDING_REVIEW"
	DispositionRejected            DispositionStatus = "REJECTED"
)

// TransferEvaluationRequest is a batch of external courses for one student.
type TransferEvaluationRequest struct {
	StudentID uint                    `json:"student_id" validate:"required"`
	Courses   []models.ExternalCourse `json:"courses" validate:"required,min=1,dive"`
}

// TransferCreditDisposition is the decision for one external course.
type TransferCreditDisposition struct {
	ExternalCourse models.ExternalCourse `json:"external_course"`
	Equivalency    *models.Equivalency   `json:"equivalency,omitempty"`
	Status         DispositionStatus     `json:"status"`
	CreditsAwarded float64               `json:"credits_awarded"`
	Conditions     []string              `json:"conditions"`
	CreditsCapped  bool                  `json:"credits_capped"`
}

// TransferEvaluationResponse wraps the dispositions of a batch.
type TransferEvaluationResponse struct {
	StudentID           uint                        `json:"student_id"`
	Dispositions        []TransferCreditDisposition `json:"dispositions"`
	TotalCreditsAwarded float64                     `json:"total_credits_awarded"`
	MaxTransferCredits  float64                     `json:"max_transfer_credits"`
}
