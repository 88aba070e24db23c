// Command purge-sessions removes expired login sessions. Run it from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cuencahub/hub-backend/internal/auth"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/joho/godotenv"
)

func main() {
	grace := flag.Duration("grace", 0, "Keep sessions that expired less than this long ago")
	flag.Parse()

	godotenv.Load(".env.local")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if err := db.Connect(dbURL); err != nil {
		log.Fatalf("DB connection error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := auth.PurgeExpired(ctx, time.Now().Add(-*grace))
	if err != nil {
		log.Fatalf("Error purging sessions: %v", err)
	}
	fmt.Printf("✓ Deleted %d expired sessions\n", n)
}
