package app

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tenantrag/internal/model"
	"tenantrag/internal/pkg/jwtutil"
)

const defaultMinPasswordLength = 8

type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	WidgetTokenTTL    time.Duration
	MinPasswordLength int
	AllowSelfRegister bool
}

type AuthService struct {
	users   UserStore
	tenants TenantStore
	cfg     AuthConfig
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	TenantID string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

type WidgetTokenResult struct {
	Token     string
	TenantID  string
	VisitorID string
	ExpiresIn time.Duration
}

func NewAuthService(users UserStore, tenants TenantStore, cfg AuthConfig) *AuthService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = defaultMinPasswordLength
	}
	if cfg.WidgetTokenTTL <= 0 {
		cfg.WidgetTokenTTL = cfg.TokenTTL
	}
	return &AuthService{users: users, tenants: tenants, cfg: cfg}
}

// Register creates a dashboard user attached to an existing tenant.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if !s.cfg.AllowSelfRegister {
		return nil, ErrRegistrationClosed
	}
	return s.CreateUser(ctx, input)
}

// CreateUser is Register without the self-registration switch, for
// operator tooling.
func (s *AuthService) CreateUser(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	tenantID := strings.TrimSpace(input.TenantID)

	if _, err := mail.ParseAddress(email); err != nil || tenantID == "" || len(password) < s.cfg.MinPasswordLength {
		return nil, ErrInvalidInput
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		TenantID:     tenant.ID,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}
	return s.issue(user)
}

func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrInvalidInput
	}
	return s.users.GetByEmail(ctx, email)
}

// WidgetToken exchanges a tenant API key for a short-lived visitor token.
// A visitor that presents no id gets a fresh one.
func (s *AuthService) WidgetToken(ctx context.Context, apiKey, visitorID string) (*WidgetTokenResult, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}
	tenant, err := s.tenants.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrInvalidAPIKey
	}

	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" || len(visitorID) > 64 {
		visitorID = uuid.NewString()
	}
	token, err := jwtutil.GenerateToken(s.cfg.JWTSecret, s.cfg.WidgetTokenTTL, WidgetSessionKey(tenant.ID, visitorID), tenant.ID, jwtutil.RoleWidget)
	if err != nil {
		return nil, err
	}
	return &WidgetTokenResult{Token: token, TenantID: tenant.ID, VisitorID: visitorID, ExpiresIn: s.cfg.WidgetTokenTTL}, nil
}

// WidgetSessionKey scopes a visitor id to its tenant so two tenants' widgets
// never share a conversation.
func WidgetSessionKey(tenantID, visitorID string) string {
	return "widget:" + tenantID + ":" + visitorID
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.cfg.JWTSecret, s.cfg.TokenTTL, user.Email, user.TenantID, jwtutil.RoleUser)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
