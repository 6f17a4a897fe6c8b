package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/mail"
	"github.com/auric-atelier/api/internal/repositories"
)

type stubMailQueueRepo struct {
	records map[string]domain.QueuedMessage

	enqueueFn      func(context.Context, domain.QueuedMessage) error
	listByStatusFn func(context.Context, domain.QueuedMessageStatus, int) ([]domain.QueuedMessage, error)
	listFn         func(context.Context, repositories.MailQueueFilter) (domain.CursorPage[domain.QueuedMessage], error)
}

func newStubMailQueueRepo() *stubMailQueueRepo {
	return &stubMailQueueRepo{records: make(map[string]domain.QueuedMessage)}
}

func (s *stubMailQueueRepo) Enqueue(ctx context.Context, message domain.QueuedMessage) error {
	if s.enqueueFn != nil {
		if err := s.enqueueFn(ctx, message); err != nil {
			return err
		}
	}
	s.records[message.ID] = message
	return nil
}

func (s *stubMailQueueRepo) Update(_ context.Context, message domain.QueuedMessage) error {
	s.records[message.ID] = message
	return nil
}

func (s *stubMailQueueRepo) FindByID(_ context.Context, messageID string) (domain.QueuedMessage, error) {
	message, ok := s.records[messageID]
	if !ok {
		return domain.QueuedMessage{}, &stubRepoError{notFound: true}
	}
	return message, nil
}

func (s *stubMailQueueRepo) List(ctx context.Context, filter repositories.MailQueueFilter) (domain.CursorPage[domain.QueuedMessage], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.QueuedMessage]{}, nil
}

func (s *stubMailQueueRepo) ListByStatus(ctx context.Context, status domain.QueuedMessageStatus, limit int) ([]domain.QueuedMessage, error) {
	if s.listByStatusFn != nil {
		return s.listByStatusFn(ctx, status, limit)
	}
	var out []domain.QueuedMessage
	for _, message := range s.records {
		if message.Status == status {
			out = append(out, message)
		}
	}
	return out, nil
}

type stubSender struct {
	sendFn func(context.Context, mail.Message) error
	sent   []mail.Message
}

func (s *stubSender) Send(ctx context.Context, message mail.Message) error {
	if s.sendFn != nil {
		if err := s.sendFn(ctx, message); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, message)
	return nil
}

type mailTestHarness struct {
	queue  *stubMailQueueRepo
	sender *stubSender
	sleeps []time.Duration
	tasks  []func(context.Context)
}

func newMailTestHarness(t *testing.T, deps MailServiceDeps) (*mailTestHarness, MailService) {
	t.Helper()
	h := &mailTestHarness{queue: newStubMailQueueRepo(), sender: &stubSender{}}
	if deps.Queue == nil {
		deps.Queue = h.queue
	} else {
		h.queue = deps.Queue.(*stubMailQueueRepo)
	}
	if deps.Sender == nil {
		deps.Sender = h.sender
	} else {
		h.sender = deps.Sender.(*stubSender)
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) }
	}
	counter := 0
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string {
			counter++
			return string(rune('A'+counter-1)) + "0ULID"
		}
	}
	deps.Sleep = func(_ context.Context, d time.Duration) {
		h.sleeps = append(h.sleeps, d)
	}
	deps.Detach = func(task func(context.Context)) {
		h.tasks = append(h.tasks, task)
	}

	svc, err := NewMailService(deps)
	if err != nil {
		t.Fatalf("NewMailService: %v", err)
	}
	return h, svc
}

func (h *mailTestHarness) runDetached(ctx context.Context) {
	for _, task := range h.tasks {
		task(ctx)
	}
	h.tasks = nil
}

func TestEnqueueTransactionalSendsInline(t *testing.T) {
	h, svc := newMailTestHarness(t, MailServiceDeps{})

	message, err := svc.EnqueueTransactional(context.Background(), EnqueueMailCommand{
		To:      "mira@example.com",
		Subject: "Order AA-2025-000007 confirmed",
		Body:    "Thank you for your order.",
	})
	if err != nil {
		t.Fatalf("EnqueueTransactional: %v", err)
	}
	if message.Status != domain.MessageStatusSent {
		t.Fatalf("expected sent status, got %s", message.Status)
	}
	if message.Attempts != 1 {
		t.Fatalf("expected one attempt, got %d", message.Attempts)
	}
	if message.SentAt == nil {
		t.Fatal("sentAt not recorded")
	}
	if message.Kind != domain.MessageKindTransactional {
		t.Fatalf("expected transactional kind, got %s", message.Kind)
	}
	if len(h.sender.sent) != 1 || h.sender.sent[0].To != "mira@example.com" {
		t.Fatalf("unexpected sends: %+v", h.sender.sent)
	}
	persisted := h.queue.records[message.ID]
	if persisted.Status != domain.MessageStatusSent {
		t.Fatalf("queue record not updated: %s", persisted.Status)
	}
}

func TestEnqueueTransactionalSwallowsTransportFailure(t *testing.T) {
	h, svc := newMailTestHarness(t, MailServiceDeps{
		Sender: &stubSender{sendFn: func(context.Context, mail.Message) error {
			return errors.New("relay refused connection")
		}},
		MaxAttempts: 3,
	})

	message, err := svc.EnqueueTransactional(context.Background(), EnqueueMailCommand{
		To:      "mira@example.com",
		Subject: "subject",
		Body:    "body",
	})
	if err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if message.Status != domain.MessageStatusFailed {
		t.Fatalf("expected failed status, got %s", message.Status)
	}
	if message.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", message.Attempts)
	}
	if message.LastError == nil || *message.LastError == "" {
		t.Fatal("lastError not recorded")
	}
	if len(h.sender.sent) != 0 {
		t.Fatalf("expected no successful sends, got %d", len(h.sender.sent))
	}
}

func TestEnqueueTransactionalValidation(t *testing.T) {
	_, svc := newMailTestHarness(t, MailServiceDeps{})
	cases := []struct {
		name string
		cmd  EnqueueMailCommand
	}{
		{name: "missing recipient", cmd: EnqueueMailCommand{Subject: "s", Body: "b"}},
		{name: "malformed recipient", cmd: EnqueueMailCommand{To: "not an address", Subject: "s", Body: "b"}},
		{name: "missing subject", cmd: EnqueueMailCommand{To: "a@example.com", Body: "b"}},
		{name: "missing body", cmd: EnqueueMailCommand{To: "a@example.com", Subject: "s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.EnqueueTransactional(context.Background(), tc.cmd); !errors.Is(err, ErrMailInvalidInput) {
				t.Fatalf("expected ErrMailInvalidInput, got %v", err)
			}
		})
	}
}

func TestBroadcastSpacesSequentialSends(t *testing.T) {
	delay := 3 * time.Second
	h, svc := newMailTestHarness(t, MailServiceDeps{BulkSendDelay: delay})

	receipt, err := svc.Broadcast(context.Background(), BroadcastCommand{
		Recipients: []string{"a@example.com", "b@example.com", "c@example.com"},
		Subject:    "New collection",
		Body:       "Our spring pieces have arrived.",
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if receipt.Queued != 3 {
		t.Fatalf("expected 3 queued, got %d", receipt.Queued)
	}
	if len(h.sender.sent) != 0 {
		t.Fatal("broadcast must not send before the detached pass runs")
	}

	h.runDetached(context.Background())

	if len(h.sender.sent) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(h.sender.sent))
	}
	wantOrder := []string{"a@example.com", "b@example.com", "c@example.com"}
	for i, sent := range h.sender.sent {
		if sent.To != wantOrder[i] {
			t.Fatalf("send %d out of order: got %s, want %s", i, sent.To, wantOrder[i])
		}
	}
	if len(h.sleeps) != 2 {
		t.Fatalf("expected 2 inter-message delays, got %d", len(h.sleeps))
	}
	for _, d := range h.sleeps {
		if d != delay {
			t.Fatalf("expected %v delay, got %v", delay, d)
		}
	}
}

func TestBroadcastSkipsInvalidAndDuplicateRecipients(t *testing.T) {
	h, svc := newMailTestHarness(t, MailServiceDeps{})

	receipt, err := svc.Broadcast(context.Background(), BroadcastCommand{
		Recipients: []string{"a@example.com", "bad address", "a@example.com", "b@example.com"},
		Subject:    "s",
		Body:       "b",
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if receipt.Queued != 2 {
		t.Fatalf("expected 2 queued after dedupe, got %d", receipt.Queued)
	}
	h.runDetached(context.Background())
	if len(h.sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(h.sender.sent))
	}
}

func TestBroadcastRequiresValidRecipient(t *testing.T) {
	_, svc := newMailTestHarness(t, MailServiceDeps{})
	if _, err := svc.Broadcast(context.Background(), BroadcastCommand{
		Recipients: []string{"nope"},
		Subject:    "s",
		Body:       "b",
	}); !errors.Is(err, ErrMailInvalidInput) {
		t.Fatalf("expected ErrMailInvalidInput, got %v", err)
	}
}

func TestRetryFailedRequeuesAndRedrives(t *testing.T) {
	h, svc := newMailTestHarness(t, MailServiceDeps{})
	lastError := "relay refused connection"
	h.queue.records["msg_failed1"] = domain.QueuedMessage{
		ID:        "msg_failed1",
		To:        "mira@example.com",
		Subject:   "s",
		Body:      "b",
		Kind:      domain.MessageKindTransactional,
		Status:    domain.MessageStatusFailed,
		Attempts:  3,
		LastError: &lastError,
	}

	receipt, err := svc.RetryFailed(context.Background())
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if receipt.Retried != 1 {
		t.Fatalf("expected 1 retried, got %d", receipt.Retried)
	}

	h.runDetached(context.Background())

	final := h.queue.records["msg_failed1"]
	if final.Status != domain.MessageStatusSent {
		t.Fatalf("expected sent after retry, got %s", final.Status)
	}
	if final.Attempts != 4 {
		t.Fatalf("expected cumulative attempts 4, got %d", final.Attempts)
	}
}

func TestRetryFailedWithEmptyQueue(t *testing.T) {
	h, svc := newMailTestHarness(t, MailServiceDeps{})
	receipt, err := svc.RetryFailed(context.Background())
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if receipt.Retried != 0 {
		t.Fatalf("expected nothing retried, got %d", receipt.Retried)
	}
	if len(h.tasks) != 0 {
		t.Fatal("no detached pass expected for empty queue")
	}
}

func TestEnqueueWithoutTransportKeepsDurableRecord(t *testing.T) {
	queue := newStubMailQueueRepo()
	svc, err := NewMailService(MailServiceDeps{
		Queue: queue,
		Clock: func() time.Time { return time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewMailService: %v", err)
	}

	message, err := svc.EnqueueTransactional(context.Background(), EnqueueMailCommand{
		To:      "mira@example.com",
		Subject: "Order AA-2025-000077 confirmed",
		Body:    "Thank you for your order.",
	})
	if err != nil {
		t.Fatalf("EnqueueTransactional: %v", err)
	}

	stored, err := queue.FindByID(context.Background(), message.ID)
	if err != nil {
		t.Fatalf("queued record missing: %v", err)
	}
	if stored.Status != domain.MessageStatusFailed {
		t.Fatalf("expected failed status without transport, got %q", stored.Status)
	}
	if stored.LastError == nil || *stored.LastError != "mail transport not configured" {
		t.Fatalf("unexpected lastError: %+v", stored.LastError)
	}
	if stored.Attempts != 0 {
		t.Fatalf("no transport attempts should be counted, got %d", stored.Attempts)
	}

	// The admin retry path re-drives the record once a transport exists.
	if failed, _ := queue.ListByStatus(context.Background(), domain.MessageStatusFailed, 10); len(failed) != 1 {
		t.Fatalf("expected one failed record awaiting retry, got %d", len(failed))
	}
}
