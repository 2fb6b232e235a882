package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"tenantrag/internal/model"
)

const apiKeyPrefix = "trk_"

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

type TenantAdminStore interface {
	TenantStore
	Create(ctx context.Context, tenant *model.Tenant) error
	List(ctx context.Context) ([]model.Tenant, error)
}

type TenantInput struct {
	ID        string
	Name      string
	Tone      string
	Plan      string
	PageQuota int
}

// TenantService provisions tenants. It backs the admin CLI; there is no
// public endpoint for it.
type TenantService struct {
	tenants TenantAdminStore
}

func NewTenantService(tenants TenantAdminStore) *TenantService {
	return &TenantService{tenants: tenants}
}

// Create stores a tenant with a fresh widget API key. An empty ID gets a
// generated one.
func (s *TenantService) Create(ctx context.Context, in TenantInput) (*model.Tenant, error) {
	in.ID = strings.ToLower(strings.TrimSpace(in.ID))
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.PageQuota < 0 {
		return nil, ErrInvalidInput
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	} else if !tenantIDPattern.MatchString(in.ID) {
		return nil, fmt.Errorf("%w: tenant id %q", ErrInvalidInput, in.ID)
	}
	if in.Plan == "" {
		in.Plan = "free"
	}

	existing, err := s.tenants.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: tenant %q already exists", ErrInvalidInput, in.ID)
	}

	key, err := newAPIKey()
	if err != nil {
		return nil, err
	}
	tenant := &model.Tenant{
		ID:        in.ID,
		Name:      in.Name,
		Tone:      strings.TrimSpace(in.Tone),
		APIKey:    key,
		Plan:      in.Plan,
		PageQuota: in.PageQuota,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *TenantService) List(ctx context.Context) ([]model.Tenant, error) {
	return s.tenants.List(ctx)
}

func (s *TenantService) Get(ctx context.Context, id string) (*model.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}

func newAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key failed: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
