package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Oniqq60/meeting_capture_service/internal/middleware"
)

type failingProvider struct {
	signIns int
}

func (p *failingProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	p.signIns++
	return Session{}, ErrInvalidCredentials
}

func (p *failingProvider) SignUp(ctx context.Context, email, password string) (Session, error) {
	return Session{}, ErrEmailTaken
}

func (p *failingProvider) SignInWithGoogle(ctx context.Context, idToken string) (Session, error) {
	return Session{}, ErrInvalidCredentials
}

func (p *failingProvider) LogOut(ctx context.Context, token string) error {
	return nil
}

func TestLoginLockedOutAfterRepeatedFailures(t *testing.T) {
	provider := &failingProvider{}
	authorizer := NewAuthorizer(nil, nil, []byte("test-secret"))
	handler := NewHandler(provider, authorizer, nil, middleware.NewLimiter(5, 10*time.Minute))

	do := func() int {
		body := strings.NewReader(`{"email":"user@example.com","password":"wrong-pass1"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		if code := do(); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d, want 401", i+1, code)
		}
	}

	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("locked-out attempt = %d, want 429", code)
	}
	if provider.signIns != 5 {
		t.Fatalf("provider called %d times, lockout must short-circuit", provider.signIns)
	}
}

func TestLoginLimiterSeparatesEmails(t *testing.T) {
	provider := &failingProvider{}
	authorizer := NewAuthorizer(nil, nil, []byte("test-secret"))
	handler := NewHandler(provider, authorizer, nil, middleware.NewLimiter(1, 10*time.Minute))

	do := func(email string) int {
		body := strings.NewReader(`{"email":"` + email + `","password":"wrong-pass1"}`)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec.Code
	}

	if code := do("a@example.com"); code != http.StatusUnauthorized {
		t.Fatalf("first attempt = %d", code)
	}
	if code := do("a@example.com"); code != http.StatusTooManyRequests {
		t.Fatalf("second attempt = %d, want 429", code)
	}
	if code := do("b@example.com"); code != http.StatusUnauthorized {
		t.Fatalf("other email = %d, limits are per email+ip", code)
	}
}
