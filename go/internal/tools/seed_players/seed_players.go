package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/scatter/go/internal/dbconfig"
)

// Player mirrors one entry of players.json.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Quote     *string   `json:"quote"`
	CreatedAt string    `json:"created_at"`
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	path := "go/internal/assets/players.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load players.json
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var players []Player
	if err := json.Unmarshal(data, &players); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal players: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "database config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed players
	total, inserted, skipped, errs := len(players), 0, 0, 0
	for _, p := range players {
		createdAt, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			createdAt = time.Now().UTC()
		}
		tag, err := pool.Exec(ctx, `
            INSERT INTO players (id, username, quote, created_at)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO NOTHING
        `, p.ID, p.Username, p.Quote, createdAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "insert %s: %v\n", p.Username, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Players seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
