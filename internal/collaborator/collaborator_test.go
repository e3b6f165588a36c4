package collaborator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-asyncloop/asyncloop"
)

func TestFetchAsync_ResolvesWithStoredValue(t *testing.T) {
	loop, err := asyncloop.New()
	require.NoError(t, err)

	store := NewStore(5 * time.Millisecond)
	store.Put("greeting", "hello")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := asyncloop.Run(ctx, loop, FetchAsync(loop, store, "greeting"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestFetchAsync_RejectsOnMissingKey(t *testing.T) {
	loop, err := asyncloop.New()
	require.NoError(t, err)

	store := NewStore(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = asyncloop.Run(ctx, loop, FetchAsync(loop, store, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
