package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/handler"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
)

type directResolver struct{}

func (directResolver) Resolve(ctx context.Context, external models.ExternalCourse) (models.Equivalency, bool, error) {
	if external.CourseCode != "ENG101" {
		return models.Equivalency{}, false, nil
	}
	return models.Equivalency{
		ID:                 1,
		InstitutionCode:    external.InstitutionCode,
		ExternalCourseCode: external.CourseCode,
		Kind:               models.EquivalencyDirect,
		CreditsAwarded:     3,
		EffectiveDate:      time.Now().AddDate(-5, 0, 0),
	}, true, nil
}

func TestTransferCreditHandlerEvaluate(t *testing.T) {
	svc := service.NewTransferCreditService(directResolver{}, validator.New(), zerolog.Nop())
	h := handler.NewTransferCreditHandler(svc, service.DefaultTransferPolicy(), zerolog.Nop())

	app := fiber.New()
	h.Register(app.Group("/api/v2/transfer-credits"))

	completed := time.Now().AddDate(-1, 0, 0).UTC()
	payload, err := json.Marshal(map[string]interface{}{
		"student_id": 12,
		"courses": []map[string]interface{}{
			{"institution_code": "STATE", "course_code": "ENG101", "credit_hours": 3, "grade": "B", "completed_at": completed},
			{"institution_code": "STATE", "course_code": "ART999", "credit_hours": 3, "grade": "A", "completed_at": completed},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/transfer-credits/evaluate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	require.Equal(t, float64(3), data["total_credits_awarded"])

	dispositions := data["dispositions"].([]interface{})
	require.Len(t, dispositions, 2)
	require.Equal(t, "APPROVED", dispositions[0].(map[string]interface{})["status"])
	require.Equal(t, "PENDING_REVIEW", dispositions[1].(map[string]interface{})["status"])
}

func TestTransferCreditHandlerRejectsEmptyBatch(t *testing.T) {
	svc := service.NewTransferCreditService(directResolver{}, validator.New(), zerolog.Nop())
	h := handler.NewTransferCreditHandler(svc, service.DefaultTransferPolicy(), zerolog.Nop())

	app := fiber.New()
	h.Register(app.Group("/api/v2/transfer-credits"))

	req := httptest.NewRequest(http.MethodPost, "/api/v2/transfer-credits/evaluate", bytes.NewReader([]byte(`{"student_id":12,"courses":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
