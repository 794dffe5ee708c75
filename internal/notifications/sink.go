package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

// Message is a user-facing notice produced by a domain operation.
type Message struct {
	UserID   uuid.UUID
	Category enums.NotificationCategory
	Title    string
	Body     string
	Link     string
}

// Sink delivers a single message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// StoreSink persists messages as in-app notifications.
type StoreSink struct {
	repo Repository
}

func NewStoreSink(repo Repository) (*StoreSink, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &StoreSink{repo: repo}, nil
}

func (s *StoreSink) Send(ctx context.Context, msg Message) error {
	row := &models.Notification{
		ID:       uuid.New(),
		UserID:   msg.UserID,
		Category: msg.Category,
		Title:    msg.Title,
		Message:  msg.Body,
	}
	if msg.Link != "" {
		link := msg.Link
		row.Link = &link
	}
	return s.repo.Create(ctx, row)
}

// BestEffort delivers messages after the owning transaction committed.
// Delivery failures are logged and never reach the caller.
type BestEffort struct {
	sink Sink
	logg *logger.Logger
}

func NewBestEffort(sink Sink, logg *logger.Logger) (*BestEffort, error) {
	if sink == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &BestEffort{sink: sink, logg: logg}, nil
}

// Deliver sends each message and returns how many were accepted by the sink.
func (b *BestEffort) Deliver(ctx context.Context, msgs ...Message) int {
	sent := 0
	for _, msg := range msgs {
		if err := b.sink.Send(ctx, msg); err != nil {
			logCtx := b.logg.WithFields(ctx, map[string]any{
				"user_id":  msg.UserID.String(),
				"category": string(msg.Category),
			})
			b.logg.Error(logCtx, "notification delivery failed", err)
			continue
		}
		sent++
	}
	return sent
}

// Recorder keeps messages in memory. Dry runs and tests use it in place of a store.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// FailWith makes later sends return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// ForUser filters recorded messages by recipient.
func (r *Recorder) ForUser(userID uuid.UUID) []Message {
	var out []Message
	for _, msg := range r.Messages() {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out
}

// Queue collects messages while a transaction is open. The owner delivers
// them once the transaction committed and drops them on rollback.
type Queue struct {
	messages []Message
}

func (q *Queue) Add(msg Message) {
	if q == nil {
		return
	}
	q.messages = append(q.messages, msg)
}

func (q *Queue) Messages() []Message {
	if q == nil {
		return nil
	}
	return q.messages
}

func (q *Queue) Reset() {
	if q != nil {
		q.messages = nil
	}
}
