package blob

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("blob not found")

// Store holds uploaded source files until the worker has indexed them.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

func DocumentKey(tenantID, documentID string) string {
	return fmt.Sprintf("tenants/%s/documents/%s.pdf", tenantID, documentID)
}
