package sessioning

import (
	"testing"
	"time"

	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

func TestStartUserEnd(t *testing.T) {
	h := New(store.NewMemorySessionStore(time.Hour))

	if _, err := h.User(""); !domain.HasCode(err, domain.CodeLoggedOut) {
		t.Fatalf("expected logged-out error, got %v", err)
	}
	handle, err := h.Start("", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	uid, err := h.User(handle)
	if err != nil || uid != "user-1" {
		t.Fatalf("user: %q err=%v", uid, err)
	}
	if _, err := h.Start(handle, "user-2"); !domain.HasCode(err, domain.CodeLoggedIn) {
		t.Fatalf("expected login while logged in to fail, got %v", err)
	}
	if err := h.AssertLoggedOut(handle); err == nil || err.Error() != "You must be logged out!" {
		t.Fatalf("unexpected assert logged out: %v", err)
	}
	if err := h.End(handle); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := h.End(handle); !domain.IsKind(err, domain.KindNotAllowed) {
		t.Fatalf("expected second logout to fail, got %v", err)
	}
	if _, err := h.User(handle); err == nil || err.Error() != "You must be logged in!" {
		t.Fatalf("expected ended handle to be rejected, got %v", err)
	}
	if err := h.AssertLoggedOut(handle); err != nil {
		t.Fatalf("stale handle counts as logged out: %v", err)
	}
}

func TestStaleHandleCanLogIn(t *testing.T) {
	h := New(store.NewMemorySessionStore(time.Hour))
	handle, err := h.Start("not-a-session", "user-1")
	if err != nil || handle == "" {
		t.Fatalf("start with stale handle: %q err=%v", handle, err)
	}
}
