package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	"github.com/yungbote/marketplace-backend/internal/data/repos/testutil"
	"github.com/yungbote/marketplace-backend/internal/platform/apierr"
	"github.com/yungbote/marketplace-backend/internal/platform/ctxutil"
)

func newAuth(t *testing.T, cfg AuthConfig) AuthService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	svc, err := NewAuthService(log, repos.NewSet(db, log).Account, cfg)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

// uniqEmail keeps tests independent when they share a postgres database.
func uniqEmail(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8] + "@example.com"
}

func statusOf(err error) int {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	ctx := context.Background()
	email := uniqEmail("boss")
	svc := newAuth(t, AuthConfig{AdminEmails: []string{strings.ToUpper(email)}})

	acct, token, err := svc.Register(ctx, RegisterInput{Name: "Boss", Email: " " + strings.ToUpper(email) + " ", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Email != email || acct.Password == "hunter22" {
		t.Fatalf("registered account: email=%s hashed=%v", acct.Email, acct.Password != "hunter22")
	}

	_, _, err = svc.Register(ctx, RegisterInput{Name: "Again", Email: email, Password: "hunter22"})
	if statusOf(err) != http.StatusConflict {
		t.Fatalf("duplicate email: want=409 got=%d (%v)", statusOf(err), err)
	}

	_, _, err = svc.Login(ctx, email, "wrong-password")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("bad password: want=401 got=%d", statusOf(err))
	}
	_, loginToken, err := svc.Login(ctx, strings.ToUpper(email), "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	for _, tok := range []string{token, loginToken} {
		authed, err := svc.Authenticate(ctx, tok)
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		rd := ctxutil.GetRequestData(authed)
		if rd == nil || rd.AccountID != acct.ID || !rd.Admin {
			t.Fatalf("request data: %+v", rd)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuth(t, AuthConfig{})
	cases := []RegisterInput{
		{Name: "A", Email: "not-an-email", Password: "hunter22"},
		{Name: "", Email: uniqEmail("a"), Password: "hunter22"},
		{Name: "A", Email: uniqEmail("a"), Password: "123"},
	}
	for _, in := range cases {
		if _, _, err := svc.Register(context.Background(), in); statusOf(err) != http.StatusBadRequest {
			t.Fatalf("Register(%+v): want=400 got=%d", in, statusOf(err))
		}
	}
}

func TestAuthenticateRejectsForeignAndExpiredTokens(t *testing.T) {
	ctx := context.Background()
	issuer := newAuth(t, AuthConfig{JWTSecret: "other-secret"})
	_, foreign, err := issuer.Register(ctx, RegisterInput{Name: "A", Email: uniqEmail("a"), Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	svc := newAuth(t, AuthConfig{})
	if _, err := svc.Authenticate(ctx, foreign); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("foreign token: want=401 got=%d", statusOf(err))
	}

	short := newAuth(t, AuthConfig{AccessTTL: time.Nanosecond})
	_, expired, err := short.Register(ctx, RegisterInput{Name: "B", Email: uniqEmail("b"), Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	time.Sleep(time.Second)
	_, err = short.Authenticate(ctx, expired)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != "token_expired" {
		t.Fatalf("expired token: got=%v", err)
	}
	if _, err := svc.Authenticate(ctx, ""); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("empty token: want=401")
	}
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	if _, err := NewAuthService(testutil.Logger(t), nil, AuthConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}
