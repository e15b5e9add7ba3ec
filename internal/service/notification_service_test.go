package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
	"github.com/noah-isme/gema-enrollment-api/internal/repository"
)

func TestNotificationServiceNotifyPromotionStoresStreamsAndPublishes(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pubsub := client.Subscribe(ctx, "enrollment:waitlist:promoted")
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), client, "enrollment", nil, testLogger())

	stream, cleanup := svc.Subscribe("7")
	defer cleanup()

	err = svc.NotifyPromotion(ctx, PromotionEvent{
		CourseID:     3,
		CourseCode:   "<i>CS201</i>",
		StudentID:    7,
		EnrollmentID: 11,
		PromotedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	select {
	case notification := <-stream:
		require.Equal(t, "7", notification.UserID)
		require.Equal(t, models.NotificationTypeWaitlistPromotion, notification.Type)
		require.Equal(t, "A seat opened in CS201 and you have been enrolled from the waitlist.", notification.Message)
	case <-time.After(time.Second):
		t.Fatal("expected promotion on local stream")
	}

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var event notificationEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.NotNil(t, event.Promotion)
	require.Equal(t, uint(11), event.Promotion.EnrollmentID)
	require.Equal(t, "7", event.Notification.UserID)

	items, err := svc.List(ctx, "7", true, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.MarkRead(ctx, items[0].ID, "8")
	require.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := svc.MarkRead(ctx, items[0].ID, "7")
	require.NoError(t, err)
	require.True(t, read.Read)

	items, err = svc.List(ctx, "7", true, 10, 0)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestNotificationServiceRelaysEventsFromOtherNodes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testLogger()).(*notificationService)

	stream, cleanup := svc.Subscribe("5")
	defer cleanup()

	remote, err := json.Marshal(notificationEvent{
		Source:       "other-node",
		Notification: dto.NotificationResponse{ID: 1, UserID: "5", Message: "seat opened"},
	})
	require.NoError(t, err)
	own, err := json.Marshal(notificationEvent{
		Source:       svc.nodeID,
		Notification: dto.NotificationResponse{ID: 2, UserID: "5"},
	})
	require.NoError(t, err)

	svc.handleEvent(own)
	svc.handleEvent(remote)

	select {
	case notification := <-stream:
		require.Equal(t, uint(1), notification.ID)
		require.Equal(t, models.NotificationTypeWaitlistPromotion, notification.Type)
	case <-time.After(time.Second):
		t.Fatal("expected relayed notification")
	}

	select {
	case extra := <-stream:
		t.Fatalf("unexpected notification %d", extra.ID)
	default:
	}
}

func TestNotificationServiceRejectsMissingStudent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testLogger())

	err := svc.NotifyPromotion(context.Background(), PromotionEvent{CourseID: 1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.List(context.Background(), " ", false, 10, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
