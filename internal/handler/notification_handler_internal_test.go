package handler

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
)

func TestWriteNotificationEventFramesPromotion(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, writeNotificationEvent(w, dto.NotificationResponse{ID: 12, UserID: "7", Type: "waitlist_promotion", Message: "seat"}))
	require.NoError(t, writeNotificationEvent(w, dto.NotificationResponse{ID: 13, UserID: "7"}))
	require.NoError(t, writeKeepAlive(w))

	frames := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n\n"))
	require.Len(t, frames, 3)
	require.True(t, bytes.HasPrefix(frames[0], []byte("id: 12\nevent: waitlist_promotion\ndata: {")))
	require.Contains(t, string(frames[0]), `"message":"seat"`)
	require.True(t, bytes.HasPrefix(frames[1], []byte("id: 13\nevent: notification\n")))
	require.Equal(t, ": ping", string(frames[2]))
}
