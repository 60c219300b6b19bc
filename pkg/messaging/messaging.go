// Package messaging is the direct-message log between users.
package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"foodshare/pkg/domain"
)

// Messages is the persistence the log needs.
type Messages interface {
	CreateMessage(ctx context.Context, m domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, bool, error)
	ListMessages(ctx context.Context, senderID, receiverID string) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// Log stores messages. Seq breaks ties between equal SentAt values; it is
// strictly increasing per process and seeded from the wall clock so that
// restarts keep increasing.
type Log struct {
	messages Messages
	now      func() time.Time

	mu      sync.Mutex
	lastSeq int64
}

func New(messages Messages) *Log {
	return &Log{messages: messages, now: time.Now}
}

// Send appends a message from -> to.
func (l *Log) Send(ctx context.Context, to, from, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, domain.BadValues("Message content must be non-empty!")
	}
	if to == from {
		return domain.Message{}, domain.NotAllowed("Cannot send a message to yourself!")
	}
	now := l.now().UTC()
	m := domain.Message{
		ID:         domain.NewID(),
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		SentAt:     now.Truncate(time.Microsecond),
		Seq:        l.nextSeq(now),
	}
	if err := l.messages.CreateMessage(ctx, m); err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

func (l *Log) nextSeq(now time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := now.UnixNano()
	if seq <= l.lastSeq {
		seq = l.lastSeq + 1
	}
	l.lastSeq = seq
	return seq
}

func (l *Log) Get(ctx context.Context, id string) (domain.Message, error) {
	m, ok, err := l.messages.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	if !ok {
		return domain.Message{}, domain.NotFound("Message %s does not exist!", id)
	}
	return m, nil
}

func (l *Log) Delete(ctx context.Context, id string) error {
	if err := l.messages.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// AssertSenderIsUser fails unless user sent message id.
func (l *Log) AssertSenderIsUser(ctx context.Context, id, user string) error {
	m, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.SenderID != user {
		return domain.Mismatch(domain.CodeSenderMismatch, user, id, m.SenderID)
	}
	return nil
}

// Conversation merges both directions between a and b, oldest first.
func (l *Log) Conversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	out, err := l.messages.ListMessages(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	back, err := l.messages.ListMessages(ctx, b, a)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if a == b {
		back = nil
	}
	merged := append(out, back...)
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].SentAt.Equal(merged[j].SentAt) {
			return merged[i].SentAt.Before(merged[j].SentAt)
		}
		return merged[i].Seq < merged[j].Seq
	})
	return merged, nil
}
