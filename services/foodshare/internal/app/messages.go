package app

import (
	"context"
	"strings"

	"foodshare/pkg/domain"
	"foodshare/pkg/events"
)

// Conversation returns the messages between the caller and otherUsername in
// both directions, oldest first.
func (a *App) Conversation(ctx context.Context, c Caller, otherUsername string) ([]MessageView, error) {
	if strings.TrimSpace(otherUsername) == "" {
		return nil, domain.BadValues("Username must be non-empty!")
	}
	other, err := a.users.GetByUsername(ctx, otherUsername)
	if err != nil {
		return nil, err
	}
	messages, err := a.messages.Conversation(ctx, c.UserID, other.ID)
	if err != nil {
		return nil, err
	}
	return a.messageViews(ctx, messages)
}

func (a *App) SendMessage(ctx context.Context, c Caller, toUsername, content string) (MessageView, error) {
	receiver, err := a.users.GetByUsername(ctx, toUsername)
	if err != nil {
		return MessageView{}, err
	}
	m, err := a.messages.Send(ctx, receiver.ID, c.UserID, content)
	if err != nil {
		return MessageView{}, err
	}
	a.publish(ctx, events.MessageSent, m.ID, c.UserID, map[string]string{"to": receiver.ID})
	views, err := a.messageViews(ctx, []domain.Message{m})
	if err != nil {
		return MessageView{}, err
	}
	return views[0], nil
}

// DeleteMessage removes a message the caller sent.
func (a *App) DeleteMessage(ctx context.Context, c Caller, id string) error {
	if err := a.messages.AssertSenderIsUser(ctx, id, c.UserID); err != nil {
		return err
	}
	if err := a.messages.Delete(ctx, id); err != nil {
		return err
	}
	a.publish(ctx, events.MessageDeleted, id, c.UserID, nil)
	return nil
}
