package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/yungbote/marketplace-backend/internal/data/repos"
	types "github.com/yungbote/marketplace-backend/internal/domain"
	"github.com/yungbote/marketplace-backend/internal/platform/apierr"
	"github.com/yungbote/marketplace-backend/internal/platform/ctxutil"
	"github.com/yungbote/marketplace-backend/internal/platform/dbctx"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

const minPasswordLength = 6

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	AccessTTL time.Duration `yaml:"access_ttl"`
	// AdminEmails may call the admin endpoints.
	AdminEmails []string `yaml:"admin_emails"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.Account, string, error)
	Login(ctx context.Context, email, password string) (*types.Account, string, error)
	// Authenticate verifies token and returns ctx carrying the caller's RequestData.
	Authenticate(ctx context.Context, token string) (context.Context, error)
	AccessTTL() time.Duration
}

type JWTClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type authService struct {
	log      *logger.Logger
	accounts repos.AccountRepo
	secret   []byte
	ttl      time.Duration
	admins   map[string]bool
}

func NewAuthService(log *logger.Logger, accounts repos.AccountRepo, cfg AuthConfig) (AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("missing jwt secret")
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	admins := map[string]bool{}
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &authService{
		log:      log.With("service", "AuthService"),
		accounts: accounts,
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		admins:   admins,
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *authService) AccessTTL() time.Duration { return s.ttl }

func (s *authService) Register(ctx context.Context, in RegisterInput) (*types.Account, string, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", apierr.New(http.StatusBadRequest, "invalid_email", fmt.Errorf("a valid email is required"))
	}
	if name == "" {
		return nil, "", apierr.New(http.StatusBadRequest, "invalid_name", fmt.Errorf("name is required"))
	}
	if len(in.Password) < minPasswordLength {
		return nil, "", apierr.New(http.StatusBadRequest, "weak_password",
			fmt.Errorf("password must be at least %d characters", minPasswordLength))
	}

	dbc := dbctx.Context{Ctx: ctx}
	exists, err := s.accounts.EmailExists(dbc, email)
	if err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "register_failed", err)
	}
	if exists {
		return nil, "", apierr.New(http.StatusConflict, "email_taken", fmt.Errorf("an account with this email already exists"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "register_failed", err)
	}
	acct, err := s.accounts.Create(dbc, &types.Account{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Password:  string(hash),
		Listings:  datatypes.JSONSlice[uuid.UUID]{},
		Cart:      datatypes.JSONSlice[types.CartItem]{},
		OrderRefs: datatypes.JSONSlice[uuid.UUID]{},
	})
	if err != nil {
		// The unique index catches a concurrent registration.
		return nil, "", apierr.New(http.StatusConflict, "email_taken", err)
	}
	token, err := s.issue(acct)
	if err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "token_failed", err)
	}
	s.log.Info("account registered", "account_id", acct.ID)
	return acct, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.Account, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", apierr.New(http.StatusBadRequest, "invalid_request", fmt.Errorf("email and password are required"))
	}
	acct, err := s.accounts.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "login_failed", err)
	}
	if acct == nil {
		return nil, "", apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.Password), []byte(password)); err != nil {
		return nil, "", apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	}
	token, err := s.issue(acct)
	if err != nil {
		return nil, "", apierr.New(http.StatusInternalServerError, "token_failed", err)
	}
	return acct, token, nil
}

func (s *authService) issue(acct *types.Account) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Email: acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *authService) Authenticate(ctx context.Context, token string) (context.Context, error) {
	if strings.TrimSpace(token) == "" {
		return ctx, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing token"))
	}
	parsed, err := jwt.ParseWithClaims(token, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		code := "invalid_token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "token_expired"
		}
		return ctx, apierr.New(http.StatusUnauthorized, code, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("invalid or expired token"))
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("invalid account id in token: %w", err))
	}
	email := normalizeEmail(claims.Email)
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: token,
		AccountID:   accountID,
		Email:       email,
		Admin:       s.admins[email],
	}), nil
}
