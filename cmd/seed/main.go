// Command main runs the database seeder for Loom.
package main

import (
	"flag"
	"log"

	"loom/internal/config"
	"loom/internal/database"
	"loom/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	profile := flag.String("profile", "", "Path to a YAML seed profile (overrides other flags)")
	flag.Parse()

	opts := seed.DefaultOptions()
	if *profile != "" {
		var err error
		opts, err = seed.LoadProfile(*profile)
		if err != nil {
			log.Fatalf("Failed to load seed profile: %v", err)
		}
		log.Printf("Loaded seed profile %s", *profile)
	} else {
		opts.NumUsers = *numUsers
		opts.NumPosts = *numPosts
		opts.ShouldClean = *shouldClean
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if err := seed.NewSeeder(db, opts).Run(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("All done. Every seeded user has the password: password123")
}
