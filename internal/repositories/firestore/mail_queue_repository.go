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

const mailQueueCollection = "mailQueue"

const (
	defaultMailQueuePageSize = 50
	maxMailQueuePageSize     = 200
	maxMailQueueBatch        = 500
)

// MailQueueRepository stores durable outbound email records.
type MailQueueRepository struct {
	provider *pfirestore.Provider
	messages *pfirestore.BaseRepository[domain.QueuedMessage]
}

// NewMailQueueRepository constructs a Firestore-backed mail queue repository.
func NewMailQueueRepository(provider *pfirestore.Provider) (*MailQueueRepository, error) {
	if provider == nil {
		return nil, errors.New("mail queue repository requires firestore provider")
	}
	return &MailQueueRepository{
		provider: provider,
		messages: pfirestore.NewBaseRepository[domain.QueuedMessage](provider, mailQueueCollection, nil, nil),
	}, nil
}

// Enqueue persists a new message, failing when the document already exists.
func (r *MailQueueRepository) Enqueue(ctx context.Context, message domain.QueuedMessage) error {
	if r == nil || r.messages == nil {
		return errors.New("mail queue repository not initialised")
	}
	if strings.TrimSpace(message.ID) == "" {
		return errors.New("mail queue enqueue: id is required")
	}
	if _, err := r.messages.Create(ctx, message.ID, message); err != nil {
		return pfirestore.WrapError("mailQueue.enqueue", err)
	}
	return nil
}

// Update overwrites the message document.
func (r *MailQueueRepository) Update(ctx context.Context, message domain.QueuedMessage) error {
	if r == nil || r.messages == nil {
		return errors.New("mail queue repository not initialised")
	}
	if strings.TrimSpace(message.ID) == "" {
		return errors.New("mail queue update: id is required")
	}
	if _, err := r.messages.Set(ctx, message.ID, message); err != nil {
		return pfirestore.WrapError("mailQueue.update", err)
	}
	return nil
}

// FindByID fetches a single queued message.
func (r *MailQueueRepository) FindByID(ctx context.Context, messageID string) (domain.QueuedMessage, error) {
	if r == nil || r.messages == nil {
		return domain.QueuedMessage{}, errors.New("mail queue repository not initialised")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return domain.QueuedMessage{}, errors.New("mail queue find: id is required")
	}

	doc, err := r.messages.Get(ctx, messageID)
	if err != nil {
		return domain.QueuedMessage{}, pfirestore.WrapError("mailQueue.find", err)
	}
	message := doc.Data
	message.ID = doc.ID
	return message, nil
}

// List returns queued messages matching the filter, newest first.
func (r *MailQueueRepository) List(ctx context.Context, filter repositories.MailQueueFilter) (domain.CursorPage[domain.QueuedMessage], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.QueuedMessage]{}, errors.New("mail queue repository not initialised")
	}

	pageSize := pagination.Clamp(filter.Pagination.PageSize, defaultMailQueuePageSize, maxMailQueuePageSize)

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.QueuedMessage]{}, pfirestore.WrapError("mailQueue.list", err)
	}

	query := client.Collection(mailQueueCollection).Query
	if filter.Status != nil {
		query = query.Where("status", "==", string(*filter.Status))
	}
	if filter.Kind != nil {
		query = query.Where("kind", "==", string(*filter.Kind))
	}
	query = query.
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.QueuedMessage]{}, pfirestore.WrapError("mailQueue.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []domain.QueuedMessage
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.QueuedMessage]{}, pfirestore.WrapError("mailQueue.list", err)
		}
		var message domain.QueuedMessage
		if err := snap.DataTo(&message); err != nil {
			return domain.CursorPage[domain.QueuedMessage]{}, fmt.Errorf("decode queued message %s: %w", snap.Ref.ID, err)
		}
		message.ID = snap.Ref.ID
		messages = append(messages, message)
	}

	hasMore := len(messages) > pageSize
	if hasMore {
		messages = messages[:pageSize]
	}
	var nextToken string
	if hasMore && len(messages) > 0 {
		last := messages[len(messages)-1]
		encoded, err := pagination.EncodeTimeCursor(pagination.TimeCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.QueuedMessage]{}, pfirestore.WrapError("mailQueue.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.QueuedMessage]{
		Items:         messages,
		NextPageToken: nextToken,
	}, nil
}

// ListByStatus returns up to limit messages in the given status, oldest scheduled first.
func (r *MailQueueRepository) ListByStatus(ctx context.Context, status domain.QueuedMessageStatus, limit int) ([]domain.QueuedMessage, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("mail queue repository not initialised")
	}
	if limit <= 0 || limit > maxMailQueueBatch {
		limit = maxMailQueueBatch
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("mailQueue.listByStatus", err)
	}

	iter := client.Collection(mailQueueCollection).Query.
		Where("status", "==", string(status)).
		OrderBy("scheduledAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var messages []domain.QueuedMessage
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("mailQueue.listByStatus", err)
		}
		var message domain.QueuedMessage
		if err := snap.DataTo(&message); err != nil {
			return nil, fmt.Errorf("decode queued message %s: %w", snap.Ref.ID, err)
		}
		message.ID = snap.Ref.ID
		messages = append(messages, message)
	}
	return messages, nil
}
