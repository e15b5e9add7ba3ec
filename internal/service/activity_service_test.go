package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/middleware"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

func TestActivityServiceRecordMasksSensitiveMetadata(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())

	courseID := uint(3)
	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-123")
	entry, err := svc.Record(ctx, ActivityEntry{
		ActorID:    7,
		Action:     " Enrollment.Decided ",
		EntityType: "Course",
		EntityID:   &courseID,
		Metadata: map[string]interface{}{
			"contact_email": "jane.doe@example.com",
			"access_token":  "secret",
			"status":        "APPROVED",
		},
	})
	require.NoError(t, err)
	require.Equal(t, ActivityEnrollmentDecided, entry.Action)
	require.Equal(t, "course", entry.EntityType)
	require.Equal(t, "system", entry.ActorRole)
	require.Equal(t, "corr-123", entry.CorrelationID)
	require.Equal(t, "j***e@example.com", entry.Metadata["contact_email"])
	require.Equal(t, "***", entry.Metadata["access_token"])
	require.Equal(t, "APPROVED", entry.Metadata["status"])
}

func TestActivityServiceRecordRequiresActionAndEntity(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "course"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Record(context.Background(), ActivityEntry{Action: ActivityEnrollmentDropped})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestActivityServiceListPaginates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())

	for i := 0; i < 3; i++ {
		_, err := svc.Record(context.Background(), ActivityEntry{ActorID: 1, ActorRole: "admin", Action: ActivityEnrollmentDropped, EntityType: "course"})
		require.NoError(t, err)
	}
	_, err := svc.Record(context.Background(), ActivityEntry{ActorID: 2, ActorRole: "admin", Action: ActivitySnapshotRecorded, EntityType: "course"})
	require.NoError(t, err)

	list, err := svc.List(context.Background(), dto.ActivityListRequest{Page: 1, PageSize: 2, Action: ActivityEnrollmentDropped})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(3), list.Pagination.TotalItems)
	require.Equal(t, 2, list.Pagination.TotalPages)

	list, err = svc.List(context.Background(), dto.ActivityListRequest{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, ActivitySnapshotRecorded, list.Items[0].Action)
}

func TestMaskEmailAddress(t *testing.T) {
	require.Equal(t, "a***@example.com", maskEmailAddress("ab@example.com"))
	require.Equal(t, "***", maskEmailAddress("not-an-email"))
	require.Empty(t, maskEmailAddress("  "))
}
