package requestid

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	id := FromContext(context.Background())
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}

func TestFromHeader(t *testing.T) {
	assert.Equal(t, "req-42", FromHeader("req-42"))

	for _, bad := range []string{"", "has space", "new\nline", strings.Repeat("x", 65)} {
		id := FromHeader(bad)
		assert.NotEqual(t, bad, id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "input %q", bad)
	}
}
