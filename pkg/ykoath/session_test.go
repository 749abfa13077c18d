package ykoath

import (
	"errors"
	"testing"
)

func TestSession_SelectUnprotected(t *testing.T) {
	applet := newFakeApplet()
	s := NewSession(applet)

	if s.State() != StateUnselected {
		t.Fatalf("fresh session state = %v, want %v", s.State(), StateUnselected)
	}

	if err := s.Select(); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if s.State() != StateUnlocked {
		t.Errorf("state = %v, want %v", s.State(), StateUnlocked)
	}
	if s.Protected() {
		t.Error("unprotected device reported as protected")
	}
	if got, want := s.Version().String(), "5.4.3"; got != want {
		t.Errorf("version = %s, want %s", got, want)
	}
	if len(s.DeviceID()) == 0 {
		t.Error("device ID not captured")
	}
}

func TestSession_SelectProtected(t *testing.T) {
	applet := newFakeApplet()
	s := NewSession(applet)
	applet.protect(s, "hunter2")

	if err := s.Select(); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if s.State() != StateLocked {
		t.Errorf("state = %v, want %v", s.State(), StateLocked)
	}
	if !s.Protected() {
		t.Error("protected device reported as unprotected")
	}
}

func TestSession_SelectNoApplet(t *testing.T) {
	applet := newFakeApplet()
	applet.noApplet = true
	s := NewSession(applet)

	if err := s.Select(); !errors.Is(err, ErrNoApplet) {
		t.Errorf("Select = %v, want ErrNoApplet", err)
	}
	if s.State() != StateUnselected {
		t.Errorf("state = %v, want %v", s.State(), StateUnselected)
	}
}

func TestSession_OperationsBeforeSelect(t *testing.T) {
	s := NewSession(newFakeApplet())

	if _, err := s.List(); !errors.Is(err, ErrNotSelected) {
		t.Errorf("List = %v, want ErrNotSelected", err)
	}
	if err := s.Delete("acme:alice"); !errors.Is(err, ErrNotSelected) {
		t.Errorf("Delete = %v, want ErrNotSelected", err)
	}
	if err := s.Validate("pw"); !errors.Is(err, ErrNotSelected) {
		t.Errorf("Validate = %v, want ErrNotSelected", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrNotSelected) {
		t.Errorf("Reset = %v, want ErrNotSelected", err)
	}
}

func TestSession_OperationsWhileLocked(t *testing.T) {
	applet := newFakeApplet()
	s := NewSession(applet)
	applet.protect(s, "hunter2")

	if err := s.Select(); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if _, err := s.List(); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("List = %v, want ErrAuthRequired", err)
	}
	if _, err := s.Calculate("acme:alice", nil); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("Calculate = %v, want ErrAuthRequired", err)
	}
	if err := s.Put(Credential{}, nil); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("Put = %v, want ErrAuthRequired", err)
	}
}

func TestSession_TransportFailureTearsSession(t *testing.T) {
	applet := newFakeApplet()
	applet.store("acme:alice", []byte("12345678901234567890"), TOTP, SHA1, 6)
	s := NewSession(applet)

	if err := s.Select(); err != nil {
		t.Fatalf("Select: %v", err)
	}

	cause := errors.New("reader unplugged")
	applet.failNext = cause

	_, err := s.List()
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("List = %v, want TransportError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("TransportError does not wrap the cause: %v", err)
	}
	if s.State() != StateUnselected {
		t.Errorf("state after transport failure = %v, want %v", s.State(), StateUnselected)
	}

	// Re-select recovers the session.
	if err := s.Select(); err != nil {
		t.Fatalf("re-Select: %v", err)
	}
	if _, err := s.List(); err != nil {
		t.Errorf("List after recovery: %v", err)
	}
}

func TestSession_SendRemainingContinuation(t *testing.T) {
	applet := newFakeApplet()
	applet.frameSize = 16
	for _, name := range []string{
		"acme:alice", "acme:bob", "acme:carol", "acme:dave", "acme:erin",
	} {
		applet.store(name, []byte("12345678901234567890"), TOTP, SHA1, 6)
	}

	s := NewSession(applet)
	if err := s.Select(); err != nil {
		t.Fatalf("Select: %v", err)
	}

	sent := applet.transmitted
	creds, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(creds) != 5 {
		t.Fatalf("got %d credentials, want 5", len(creds))
	}
	if creds[0].Name != "acme:alice" || creds[4].Name != "acme:erin" {
		t.Errorf("device order not preserved: %v", creds)
	}
	if applet.transmitted-sent < 2 {
		t.Errorf("expected a continued exchange, got %d frames", applet.transmitted-sent)
	}
}

func TestState_String(t *testing.T) {
	testCases := []struct {
		state State
		want  string
	}{
		{StateUnselected, "unselected"},
		{StateLocked, "locked"},
		{StateUnlocked, "unlocked"},
		{State(42), "State(42)"},
	}
	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %s, want %s", int(tc.state), got, tc.want)
		}
	}
}
