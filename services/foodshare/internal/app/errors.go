package app

import (
	"context"

	"foodshare/pkg/domain"
)

// Describe renders err for a client. Identity mismatch variants carry raw ids
// and are re-rendered with usernames; every other variant already carries its
// final message. Errors outside the domain taxonomy yield a generic message.
func (a *App) Describe(ctx context.Context, err error) string {
	de, ok := domain.AsError(err)
	if !ok {
		return "Internal server error."
	}
	switch de.Code {
	case domain.CodeAuthorMismatch,
		domain.CodeClaimerMismatch,
		domain.CodeDelivererMismatch,
		domain.CodeSenderMismatch:
		names, lookupErr := a.users.IDsToUsernames(ctx, []string{de.Actor, de.Owner})
		if lookupErr != nil {
			return de.Message
		}
		return domain.MismatchMessage(de.Code, names[0], de.Entity, names[1])
	default:
		return de.Message
	}
}
