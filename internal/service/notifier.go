package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/observability"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

// Notifier delivers user notifications. Notify is strictly fire-and-forget:
// it never returns an error, so callers cannot accidentally couple a primary
// transaction to notification delivery.
type Notifier interface {
	Notify(ctx context.Context, userID uint, kind, message string, data map[string]interface{})
	List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
}

type notifier struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	nodeID      string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// NewNotifier constructs the notification publisher. Redis and NATS handles
// may be nil; delivery then stops at the database row.
func NewNotifier(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) Notifier {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notifier{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "notifier").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (n *notifier) Notify(ctx context.Context, userID uint, kind, message string, data map[string]interface{}) {
	clean := strings.TrimSpace(n.sanitizer.Sanitize(message))
	if clean == "" {
		n.logger.Warn().Uint("user_id", userID).Str("kind", kind).Msg("notification message empty after sanitization")
		return
	}

	model := models.Notification{
		UserID:  userID,
		Kind:    kind,
		Message: clean,
		Data:    data,
	}

	if err := n.repo.Create(ctx, &model); err != nil {
		n.logger.Warn().Err(err).Uint("user_id", userID).Str("kind", kind).Msg("failed to persist notification")
		return
	}

	response := dto.NewNotificationResponse(model)
	if err := n.publish(ctx, response); err != nil {
		n.logger.Warn().Err(err).Msg("failed to publish notification event")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(kind).Inc()
}

func (n *notifier) List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := n.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (n *notifier) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	notification, err := n.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (n *notifier) publish(ctx context.Context, notification dto.NotificationResponse) error {
	if n.redis == nil && n.nats == nil {
		return nil
	}

	event := notificationEvent{
		Source:       n.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if n.redis != nil && n.redisStream != "" {
		if err := n.redis.Publish(ctx, n.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if n.nats != nil && n.natsSubject != "" {
		if err := n.nats.Publish(n.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}
