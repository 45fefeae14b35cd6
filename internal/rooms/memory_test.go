package rooms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	d := NewMemoryDirectory()
	ctx := context.Background()

	_, err := d.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := d.Create(ctx, "r1", "design sync", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", created.HostID)
	assert.Empty(t, created.CanvasData, "canvasData stays an unused placeholder")

	got, err := d.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "design sync", got.Name)
	assert.Equal(t, created.RoomID, got.RoomID)
}
