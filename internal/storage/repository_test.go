package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
)

func TestSaveAndGetBinding(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	boundAt := time.Unix(1700000000, 0)
	require.NoError(t, db.SaveBinding(ctx, &Binding{
		TaxID:      "1234",
		DeviceID:   "dev99",
		LineUserID: "U1",
		BoundAt:    boundAt,
	}))

	b, err := db.GetBinding(ctx, "1234", "dev99")
	require.NoError(t, err)
	assert.Equal(t, "1234", b.TaxID)
	assert.Equal(t, "dev99", b.DeviceID)
	assert.Equal(t, "U1", b.LineUserID)
	assert.True(t, b.BoundAt.Equal(boundAt))
}

func TestSaveBinding_Upsert(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveBinding(ctx, &Binding{TaxID: "1234", DeviceID: "dev99", LineUserID: "U1"}))
	require.NoError(t, db.SaveBinding(ctx, &Binding{TaxID: "1234", DeviceID: "dev99", LineUserID: "U2"}))

	b, err := db.GetBinding(ctx, "1234", "dev99")
	require.NoError(t, err)
	assert.Equal(t, "U2", b.LineUserID, "rebinding replaces the LINE user")

	count, err := db.CountBindings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveBinding_SetsBoundAt(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	b := &Binding{TaxID: "1", DeviceID: "d", LineUserID: "U1"}
	before := time.Now().Add(-time.Second)
	require.NoError(t, db.SaveBinding(context.Background(), b))
	assert.True(t, b.BoundAt.After(before))
}

func TestGetBinding_NotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	b, err := db.GetBinding(context.Background(), "nope", "none")
	assert.Nil(t, b)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestCountBindings(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	count, err := db.CountBindings(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	for _, dev := range []string{"a", "b", "c"} {
		require.NoError(t, db.SaveBinding(ctx, &Binding{TaxID: "1", DeviceID: dev, LineUserID: "U1"}))
	}

	count, err = db.CountBindings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
