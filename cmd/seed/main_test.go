package main

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powercast/powercast/pkg/optimization"
	"github.com/powercast/powercast/pkg/storage"
)

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	rng := rand.New(rand.NewPCG(3, 4))
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	first, err := seed(ctx, db, "u1", rng, now)
	require.NoError(t, err)
	assert.Len(t, first, optimization.DefaultGenerate)

	second, err := seed(ctx, db, "u1", rng, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, second)

	_, plants, err := db.ListPlants(ctx, "u1", storage.PlantFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 5, plants)
	_, suggestions, err := db.ListSuggestions(ctx, "u1", storage.SuggestionFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, optimization.DefaultGenerate, suggestions)
}
