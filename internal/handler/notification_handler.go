package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/middleware"
	"github.com/noah-isme/gema-enrollment-api/internal/service"
	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

const replayLimit = 50

// NotificationHandler serves a student's waitlist promotion notices, as a list
// or as a server-sent event stream.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
	timeout time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
		timeout: timeout,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	signedIn := middleware.AuthOptions{Audience: middleware.AudienceUser}
	router.Get("/", middleware.WithAuth(h.list, signedIn))
	router.Get("/stream", middleware.WithAuth(h.stream, signedIn))
	router.Patch("/:id/read", middleware.WithAuth(h.markRead, signedIn))
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}
	unreadOnly := c.QueryBool("unread", false)

	notifications, err := h.service.List(requestContext(c), userID, unreadOnly, limit, offset)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list notifications")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

// stream pushes promotions as server-sent events. Unread notices newer than
// Last-Event-ID are replayed first so a student who reconnects after a drop
// still learns about a seat that opened while they were away.
func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	lastSeen, _ := strconv.ParseUint(strings.TrimSpace(c.Get("Last-Event-ID")), 10, 64)

	// Subscribe before loading the backlog so nothing published in between is lost.
	live, cleanup := h.service.Subscribe(userID)
	backlog, err := h.service.List(requestContext(c), userID, true, replayLimit, 0)
	if err != nil {
		cleanup()
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load notifications")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	keepAlive := h.timeout
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	logger := requestLogger(h.logger, c)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		sent := make(map[uint]struct{}, len(backlog))
		// List returns newest first; replay in publication order.
		for i := len(backlog) - 1; i >= 0; i-- {
			notification := backlog[i]
			if uint64(notification.ID) <= lastSeen {
				continue
			}
			if err := writeNotificationEvent(w, notification); err != nil {
				logger.Debug().Err(err).Msg("stream closed during replay")
				return
			}
			sent[notification.ID] = struct{}{}
		}

		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-live:
				if !ok {
					return
				}
				if _, dup := sent[notification.ID]; dup {
					continue
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					logger.Debug().Err(err).Msg("stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("stream closed during keep-alive")
					return
				}
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(requestContext(c), id, userID)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to update notification")
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

// writeNotificationEvent frames one notice. The SSE id is the notification id
// so browsers resume from it via Last-Event-ID.
func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	event := notification.Type
	if event == "" {
		event = "notification"
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", notification.ID, event, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := w.WriteString(": ping\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
