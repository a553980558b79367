// Command seed populates an empty database with sample problems so a fresh
// development environment has data to browse.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/repository"
	"github.com/civicfix/api/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "Seeding timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	seeder := service.NewSeederService(repository.NewProblemRepository(db))
	created, err := seeder.SeedProblems(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding problems: %v\n", err)
		os.Exit(1)
	}

	if created == 0 {
		fmt.Println("Database already has problems, nothing to do")
		return
	}
	fmt.Printf("Seeded %d sample problems\n", created)
}
