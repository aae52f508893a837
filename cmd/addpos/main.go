package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/predictbet/internal/domain"
	"github.com/vitos/predictbet/internal/infrastructure/storage"
)

// Operator tool: inserts a test position (and the backing user if missing)
// directly into the engine database.
func main() {
	dbPath := flag.String("db", "engine.db", "path to the engine database")
	userID := flag.String("user", "test-user", "user id")
	teamID := flag.String("team", "", "team id for the user")
	category := flag.String("category", "BTC", "price category")
	side := flag.String("side", "LONG", "LONG or SHORT")
	stake := flag.Int64("stake", 100, "stake in points")
	entry := flag.Float64("entry", 0, "entry price")
	stopLoss := flag.Float64("sl", 0, "stop-loss percent (0 = none)")
	takeProfit := flag.Float64("tp", 0, "take-profit percent (0 = none)")
	hold := flag.Duration("hold", time.Hour, "hold duration")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.GetUser(ctx, *userID); err != nil {
		user := &domain.UserBalance{ID: *userID, TeamID: *teamID, Pts: 0, Multiplier: 1.0}
		if err := store.SaveUser(ctx, user); err != nil {
			fmt.Printf("Failed to create user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created user %s\n", *userID)
	}

	now := time.Now()
	pos := &domain.Position{
		ID:            uuid.NewString(),
		UserID:        *userID,
		Category:      *category,
		Side:          domain.Side(*side),
		Stake:         *stake,
		EntryPrice:    *entry,
		StopLossPct:   *stopLoss,
		TakeProfitPct: *takeProfit,
		HoldDuration:  hold.String(),
		ExpiresAt:     now.Add(*hold),
		Status:        domain.StatusActive,
		CreatedAt:     now,
	}

	if err := store.SavePosition(ctx, pos); err != nil {
		fmt.Printf("Failed to save position: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created position %s (%s %s stake=%d entry=%.4f sl=%.2f%% tp=%.2f%% expires=%s)\n",
		pos.ID, pos.Side, pos.Category, pos.Stake, pos.EntryPrice, pos.StopLossPct, pos.TakeProfitPct,
		pos.ExpiresAt.Format(time.RFC3339))
}
