package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn", false)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
