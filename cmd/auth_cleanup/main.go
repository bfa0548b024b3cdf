// Command auth_cleanup sweeps expired refresh-token rows across all
// users. The service itself only purges lazily per user on login,
// refresh and logout; rows belonging to inactive accounts stay behind
// until an operator runs this.
package main

import (
	"log"
	"os"
	"time"

	"usersystem/internal/database"
	"usersystem/internal/domain"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(databaseURL, database.Pool{MaxOpenConns: 1})
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	res := db.Where("expires_at < ?", time.Now().UTC()).Delete(&domain.UserToken{})
	if res.Error != nil {
		log.Fatalf("cleanup user_tokens failed: %v", res.Error)
	}

	log.Printf("auth cleanup completed: user_tokens=%d", res.RowsAffected)
}
