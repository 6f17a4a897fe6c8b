package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/auric-atelier/api/internal/domain"
	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
	"github.com/auric-atelier/api/internal/platform/pagination"
	"github.com/auric-atelier/api/internal/repositories"
)

const adminNotificationsCollection = "adminNotifications"

const (
	defaultNotificationPageSize = 50
	maxNotificationPageSize     = 200
)

// NotificationRepository stores admin dashboard fan-out records.
type NotificationRepository struct {
	provider      *pfirestore.Provider
	notifications *pfirestore.BaseRepository[domain.AdminNotification]
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	return &NotificationRepository{
		provider:      provider,
		notifications: pfirestore.NewBaseRepository[domain.AdminNotification](provider, adminNotificationsCollection, nil, nil),
	}, nil
}

// Insert persists a new notification record.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.AdminNotification) error {
	if r == nil || r.notifications == nil {
		return errors.New("notification repository not initialised")
	}
	if strings.TrimSpace(notification.ID) == "" {
		return errors.New("notification insert: id is required")
	}
	if _, err := r.notifications.Create(ctx, notification.ID, notification); err != nil {
		return pfirestore.WrapError("adminNotifications.insert", err)
	}
	return nil
}

// List returns notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter repositories.NotificationFilter) (domain.CursorPage[domain.AdminNotification], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.AdminNotification]{}, errors.New("notification repository not initialised")
	}

	pageSize := pagination.Clamp(filter.Pagination.PageSize, defaultNotificationPageSize, maxNotificationPageSize)

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.AdminNotification]{}, pfirestore.WrapError("adminNotifications.list", err)
	}

	query := client.Collection(adminNotificationsCollection).Query
	if filter.UnreadOnly {
		query = query.Where("isRead", "==", false)
	}
	query = query.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.AdminNotification]{}, pfirestore.WrapError("adminNotifications.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var notifications []domain.AdminNotification
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.AdminNotification]{}, pfirestore.WrapError("adminNotifications.list", err)
		}
		var notification domain.AdminNotification
		if err := snap.DataTo(&notification); err != nil {
			return domain.CursorPage[domain.AdminNotification]{}, fmt.Errorf("decode notification %s: %w", snap.Ref.ID, err)
		}
		notification.ID = snap.Ref.ID
		notifications = append(notifications, notification)
	}

	hasMore := len(notifications) > pageSize
	if hasMore {
		notifications = notifications[:pageSize]
	}
	var nextToken string
	if hasMore && len(notifications) > 0 {
		last := notifications[len(notifications)-1]
		encoded, err := pagination.EncodeTimeCursor(pagination.TimeCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.AdminNotification]{}, pfirestore.WrapError("adminNotifications.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.AdminNotification]{
		Items:         notifications,
		NextPageToken: nextToken,
	}, nil
}

// MarkRead flips the isRead flag and returns the updated record.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string) (domain.AdminNotification, error) {
	if r == nil || r.notifications == nil {
		return domain.AdminNotification{}, errors.New("notification repository not initialised")
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return domain.AdminNotification{}, errors.New("notification mark read: id is required")
	}

	if _, err := r.notifications.Update(ctx, notificationID, []firestore.Update{
		{Path: "isRead", Value: true},
	}); err != nil {
		return domain.AdminNotification{}, pfirestore.WrapError("adminNotifications.markRead", err)
	}

	doc, err := r.notifications.Get(ctx, notificationID)
	if err != nil {
		return domain.AdminNotification{}, pfirestore.WrapError("adminNotifications.markRead", err)
	}
	notification := doc.Data
	notification.ID = doc.ID
	return notification, nil
}
