package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNotAllowed
	KindBadValues
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindNotAllowed:
		return "NotAllowed"
	case KindBadValues:
		return "BadValues"
	default:
		return "Unknown"
	}
}

// Code names the concrete variant. Mismatch codes carry Actor, Entity and
// Owner ids that the caller may resolve to display names before rendering.
type Code string

const (
	CodeGeneric               Code = ""
	CodeAuthorMismatch        Code = "AuthorMismatch"
	CodeClaimerMismatch       Code = "ClaimerMismatch"
	CodeDelivererMismatch     Code = "DelivererMismatch"
	CodeSenderMismatch        Code = "SenderMismatch"
	CodeInvalidExpirationTime Code = "InvalidExpirationTime"
	CodeAlreadyClaimed        Code = "AlreadyClaimed"
	CodeAlreadyAccepted       Code = "AlreadyAccepted"
	CodeDuplicateTag          Code = "DuplicateTag"
	CodeAmbiguousQuery        Code = "AmbiguousQuery"
	CodeUsernameTaken         Code = "UsernameTaken"
	CodeBadCredentials        Code = "BadCredentials"
	CodeLoggedIn              Code = "LoggedIn"
	CodeLoggedOut             Code = "LoggedOut"
)

// Error is the single error type raised by concept modules.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Actor   string // user that attempted the action
	Entity  string
	Owner   string // user that actually owns Entity
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NotAllowed(format string, args ...any) *Error {
	return &Error{Kind: KindNotAllowed, Message: fmt.Sprintf(format, args...)}
}

func BadValues(format string, args ...any) *Error {
	return &Error{Kind: KindBadValues, Message: fmt.Sprintf(format, args...)}
}

// WithCode tags e with a variant code.
func (e *Error) WithCode(code Code) *Error {
	e.Code = code
	return e
}

// Mismatch builds an identity mismatch variant. Message is a fallback that
// uses raw ids.
func Mismatch(code Code, actor, entity, owner string) *Error {
	e := &Error{Kind: KindNotAllowed, Code: code, Actor: actor, Entity: entity, Owner: owner}
	e.Message = MismatchMessage(code, actor, entity, owner)
	return e
}

// MismatchMessage renders a mismatch variant with the given display names.
func MismatchMessage(code Code, actor, entity, owner string) string {
	var role, noun string
	switch code {
	case CodeAuthorMismatch:
		role, noun = "author", "post"
	case CodeClaimerMismatch:
		role, noun = "claimer", "claim"
	case CodeDelivererMismatch:
		role, noun = "deliverer", "delivery"
	case CodeSenderMismatch:
		role, noun = "sender", "message"
	default:
		role, noun = "owner", "record"
	}
	if owner == "" {
		return fmt.Sprintf("%s is not the %s of %s %s!", actor, role, noun, entity)
	}
	return fmt.Sprintf("%s is not the %s of %s %s (%s: %s)!", actor, role, noun, entity, role, owner)
}

// IsMismatch reports whether code is one of the identity mismatch variants.
func IsMismatch(code Code) bool {
	switch code {
	case CodeAuthorMismatch, CodeClaimerMismatch, CodeDelivererMismatch, CodeSenderMismatch:
		return true
	}
	return false
}

// AsError extracts a domain error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err carries a domain error of kind k.
func IsKind(err error, k Kind) bool {
	de, ok := AsError(err)
	return ok && de.Kind == k
}

// HasCode reports whether err carries a domain error with the given code.
func HasCode(err error, code Code) bool {
	de, ok := AsError(err)
	return ok && de.Code == code
}
