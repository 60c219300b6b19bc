package messaging

import (
	"context"
	"testing"
	"time"

	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore())
	if _, err := l.Send(ctx, "bob", "alice", "  "); !domain.IsKind(err, domain.KindBadValues) {
		t.Fatalf("expected empty content to fail, got %v", err)
	}
	if _, err := l.Send(ctx, "alice", "alice", "hi"); !domain.IsKind(err, domain.KindNotAllowed) {
		t.Fatalf("expected self message to fail, got %v", err)
	}
}

func TestConversationBreaksTiesBySequence(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore())
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return frozen }

	var sent []string
	for i, pair := range [][2]string{{"bob", "alice"}, {"alice", "bob"}, {"bob", "alice"}, {"alice", "bob"}} {
		m, err := l.Send(ctx, pair[0], pair[1], string(rune('a'+i)))
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		sent = append(sent, m.ID)
	}
	conv, err := l.Conversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(conv) != len(sent) {
		t.Fatalf("expected %d messages, got %d", len(sent), len(conv))
	}
	for i := range sent {
		if conv[i].ID != sent[i] {
			t.Fatalf("position %d: got %s want %s", i, conv[i].ID, sent[i])
		}
	}
	fromBob, _ := l.Conversation(ctx, "bob", "alice")
	if fromBob[0].ID != sent[0] {
		t.Fatalf("conversation order must not depend on argument order")
	}
}

func TestSequenceIsMonotonic(t *testing.T) {
	l := New(store.NewMemoryStore())
	now := time.Now()
	a := l.nextSeq(now)
	b := l.nextSeq(now.Add(-time.Hour))
	c := l.nextSeq(now)
	if !(a < b && b < c) {
		t.Fatalf("expected strictly increasing seq, got %d %d %d", a, b, c)
	}
}

func TestDeleteRequiresSender(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore())
	m, _ := l.Send(ctx, "bob", "alice", "hello")

	err := l.AssertSenderIsUser(ctx, m.ID, "bob")
	de, ok := domain.AsError(err)
	if !ok || de.Code != domain.CodeSenderMismatch || de.Owner != "alice" || de.Actor != "bob" {
		t.Fatalf("expected sender mismatch naming alice, got %v", err)
	}
	if err := l.AssertSenderIsUser(ctx, m.ID, "alice"); err != nil {
		t.Fatalf("sender check: %v", err)
	}
	if err := l.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.AssertSenderIsUser(ctx, m.ID, "alice"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
