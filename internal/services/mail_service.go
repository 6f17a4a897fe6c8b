package services

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/mail"
	"github.com/auric-atelier/api/internal/repositories"
)

const (
	defaultBulkSendDelay   = 3 * time.Second
	defaultMaxSendAttempts = 3
	defaultRetryBatchLimit = 100
)

var (
	// ErrMailInvalidInput indicates the command failed validation.
	ErrMailInvalidInput = errors.New("mail: invalid input")
)

// MailServiceDeps enumerates collaborators required to construct the service.
type MailServiceDeps struct {
	Queue       repositories.MailQueueRepository
	Sender      mail.Sender
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)

	// BulkSendDelay spaces sequential bulk sends. Zero selects the default.
	BulkSendDelay time.Duration
	// MaxAttempts bounds delivery attempts per message within one pass.
	MaxAttempts int
	// Sleep and Detach exist for deterministic tests; nil selects real
	// timer sleeps and goroutine dispatch.
	Sleep  func(ctx context.Context, d time.Duration)
	Detach func(task func(ctx context.Context))
}

type mailService struct {
	queue     repositories.MailQueueRepository
	sender    mail.Sender
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy

	bulkDelay   time.Duration
	maxAttempts int
	sleep       func(context.Context, time.Duration)
	detach      func(func(context.Context))
}

// NewMailService wires dependencies into a MailService implementation. A nil
// Sender is allowed: messages are still recorded durably and delivery marks
// them failed until a transport is configured and they are retried.
func NewMailService(deps MailServiceDeps) (MailService, error) {
	if deps.Queue == nil {
		return nil, errors.New("mail service: queue repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	bulkDelay := deps.BulkSendDelay
	if bulkDelay <= 0 {
		bulkDelay = defaultBulkSendDelay
	}
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxSendAttempts
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	detach := deps.Detach
	if detach == nil {
		detach = func(task func(context.Context)) {
			go task(context.Background())
		}
	}

	return &mailService{
		queue:     deps.Queue,
		sender:    deps.Sender,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:       idGen,
		logger:      logger,
		sanitizer:   bluemonday.UGCPolicy(),
		bulkDelay:   bulkDelay,
		maxAttempts: maxAttempts,
		sleep:       sleep,
		detach:      detach,
	}, nil
}

func (s *mailService) EnqueueTransactional(ctx context.Context, cmd EnqueueMailCommand) (QueuedMessage, error) {
	to, err := normalizeRecipient(cmd.To)
	if err != nil {
		return QueuedMessage{}, err
	}
	subject := strings.TrimSpace(cmd.Subject)
	if subject == "" {
		return QueuedMessage{}, fmt.Errorf("%w: subject is required", ErrMailInvalidInput)
	}
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		return QueuedMessage{}, fmt.Errorf("%w: body is required", ErrMailInvalidInput)
	}

	message := s.newQueuedMessage(to, subject, body, domain.MessageKindTransactional)
	if err := s.queue.Enqueue(ctx, message); err != nil {
		return QueuedMessage{}, err
	}

	// Inline delivery is best-effort: the durable record already exists, so
	// a transport failure is recorded on it rather than surfaced.
	delivered := s.deliver(ctx, message)
	return delivered, nil
}

func (s *mailService) Broadcast(ctx context.Context, cmd BroadcastCommand) (BroadcastReceipt, error) {
	subject := strings.TrimSpace(cmd.Subject)
	if subject == "" {
		return BroadcastReceipt{}, fmt.Errorf("%w: subject is required", ErrMailInvalidInput)
	}
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		return BroadcastReceipt{}, fmt.Errorf("%w: body is required", ErrMailInvalidInput)
	}
	body = s.sanitizer.Sanitize(body)

	recipients := make([]string, 0, len(cmd.Recipients))
	seen := make(map[string]struct{}, len(cmd.Recipients))
	for _, raw := range cmd.Recipients {
		to, err := normalizeRecipient(raw)
		if err != nil {
			s.logger(ctx, "mail.broadcast_recipient_skipped", map[string]any{
				"recipient": raw,
			})
			continue
		}
		if _, dup := seen[to]; dup {
			continue
		}
		seen[to] = struct{}{}
		recipients = append(recipients, to)
	}
	if len(recipients) == 0 {
		return BroadcastReceipt{}, fmt.Errorf("%w: at least one valid recipient is required", ErrMailInvalidInput)
	}

	queued := make([]QueuedMessage, 0, len(recipients))
	ids := make([]string, 0, len(recipients))
	for _, to := range recipients {
		message := s.newQueuedMessage(to, subject, body, domain.MessageKindBulk)
		if err := s.queue.Enqueue(ctx, message); err != nil {
			return BroadcastReceipt{}, fmt.Errorf("enqueue broadcast message: %w", err)
		}
		queued = append(queued, message)
		ids = append(ids, message.ID)
	}

	s.detach(func(ctx context.Context) {
		s.drain(ctx, queued)
	})

	return BroadcastReceipt{
		Queued:     len(queued),
		QueuedAt:   s.clock(),
		MessageIDs: ids,
	}, nil
}

func (s *mailService) ListQueue(ctx context.Context, filter MailQueueListFilter) (domain.CursorPage[QueuedMessage], error) {
	return s.queue.List(ctx, repositories.MailQueueFilter{
		Status:     filter.Status,
		Kind:       filter.Kind,
		Pagination: filter.Pagination,
	})
}

func (s *mailService) RetryFailed(ctx context.Context) (RetryReceipt, error) {
	failed, err := s.queue.ListByStatus(ctx, domain.MessageStatusFailed, defaultRetryBatchLimit)
	if err != nil {
		return RetryReceipt{}, err
	}
	if len(failed) == 0 {
		return RetryReceipt{}, nil
	}

	now := s.clock()
	requeued := make([]QueuedMessage, 0, len(failed))
	ids := make([]string, 0, len(failed))
	for _, message := range failed {
		message.Status = domain.MessageStatusPending
		message.ScheduledAt = now
		message.UpdatedAt = now
		if err := s.queue.Update(ctx, message); err != nil {
			s.logger(ctx, "mail.retry_requeue_failed", map[string]any{
				"messageId": message.ID,
				"error":     err.Error(),
			})
			continue
		}
		requeued = append(requeued, message)
		ids = append(ids, message.ID)
	}

	if len(requeued) > 0 {
		s.detach(func(ctx context.Context) {
			s.drain(ctx, requeued)
		})
	}

	return RetryReceipt{
		Retried:    len(requeued),
		MessageIDs: ids,
	}, nil
}

// drain sends the batch sequentially, spacing sends with the configured delay
// so a large broadcast never floods the SMTP relay. Enqueue order is preserved.
func (s *mailService) drain(ctx context.Context, messages []QueuedMessage) {
	for i, message := range messages {
		if i > 0 {
			s.sleep(ctx, s.bulkDelay)
		}
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, message)
	}
}

// deliver attempts the message up to the per-pass attempt budget, persisting
// status and attempt counts along the way. It never returns an error: the
// final state of the record is the outcome.
func (s *mailService) deliver(ctx context.Context, message QueuedMessage) QueuedMessage {
	if s.sender == nil {
		// The record stays durable; the admin retry operation re-drives it
		// once a transport is configured.
		now := s.clock()
		message.Status = domain.MessageStatusFailed
		message.LastError = valuePtr("mail transport not configured")
		message.UpdatedAt = now
		s.persist(ctx, message)
		s.logger(ctx, "mail.transport_unconfigured", map[string]any{
			"messageId": message.ID,
		})
		return message
	}

	message.Status = domain.MessageStatusProcessing
	message.UpdatedAt = s.clock()
	s.persist(ctx, message)

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		lastErr = s.sender.Send(ctx, mail.Message{
			To:       message.To,
			Subject:  message.Subject,
			TextBody: message.Body,
		})
		message.Attempts++
		now := s.clock()
		message.UpdatedAt = now
		if lastErr == nil {
			message.Status = domain.MessageStatusSent
			message.SentAt = &now
			message.LastError = nil
			s.persist(ctx, message)
			return message
		}
		message.LastError = valuePtr(lastErr.Error())
		s.persist(ctx, message)
	}

	message.Status = domain.MessageStatusFailed
	message.UpdatedAt = s.clock()
	s.persist(ctx, message)
	s.logger(ctx, "mail.delivery_failed", map[string]any{
		"messageId": message.ID,
		"attempts":  message.Attempts,
		"error":     errorText(lastErr),
	})
	return message
}

func (s *mailService) persist(ctx context.Context, message QueuedMessage) {
	if err := s.queue.Update(ctx, message); err != nil {
		s.logger(ctx, "mail.queue_update_failed", map[string]any{
			"messageId": message.ID,
			"error":     err.Error(),
		})
	}
}

func (s *mailService) newQueuedMessage(to, subject, body string, kind domain.MessageKind) QueuedMessage {
	now := s.clock()
	return QueuedMessage{
		ID:          ensureMessageID(s.newID()),
		To:          to,
		Subject:     subject,
		Body:        body,
		Kind:        kind,
		Status:      domain.MessageStatusPending,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func normalizeRecipient(raw string) (string, error) {
	to := strings.TrimSpace(raw)
	if to == "" {
		return "", fmt.Errorf("%w: recipient is required", ErrMailInvalidInput)
	}
	if _, err := netmail.ParseAddress(to); err != nil {
		return "", fmt.Errorf("%w: recipient %q is malformed", ErrMailInvalidInput, to)
	}
	return to, nil
}

func ensureMessageID(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		trimmed = ulid.Make().String()
	}
	if strings.HasPrefix(trimmed, "msg_") {
		return trimmed
	}
	return "msg_" + trimmed
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
