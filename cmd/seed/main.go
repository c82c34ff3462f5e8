package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/optimization"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

// seed inserts the demo fleet and the default suggestions for userID. Each
// part is skipped when the user already has records of that kind, so
// repeated runs do not duplicate data.
func seed(ctx context.Context, db storage.Database, userID string, rng *rand.Rand, now time.Time) ([]types.Suggestion, error) {
	if err := storage.SeedDemo(ctx, db, userID, rng); err != nil {
		return nil, fmt.Errorf("seeding demo plants: %w", err)
	}

	_, existing, err := db.ListSuggestions(ctx, userID, storage.SuggestionFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("counting suggestions: %w", err)
	}
	if existing > 0 {
		log.Ctx(ctx).InfoContext(ctx, "user already has suggestions, skipping", slog.Int("count", existing))
		return nil, nil
	}

	generated := optimization.Generate(userID, optimization.DefaultGenerate, rng, now)
	if err := db.InsertSuggestions(ctx, generated); err != nil {
		return nil, fmt.Errorf("inserting suggestions: %w", err)
	}
	return generated, nil
}

func main() {
	db := storage.Configured()
	userID := lflag.String("user-id", "demo-user", "User the demo data is seeded for")
	lflag.Configure()

	ctx := context.Background()
	ctx = log.WithAttrs(ctx, slog.String("userID", *userID))
	defer db.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo data")

	now := time.Now().UTC()
	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))

	generated, err := seed(ctx, db, *userID, rng, now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed demo data", slog.Any("error", err))
		os.Exit(1)
	}
	for _, s := range generated {
		fmt.Printf("Seeded suggestion %s: %s (%s)\n", s.ID, s.Title, s.Priority)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded demo data successfully")
}
