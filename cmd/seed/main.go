// Command main populates the YNetwork database with fake students, posts, groups, events and chats.
package main

import (
	"context"
	"flag"
	"log"

	"ynetwork/internal/config"
	"ynetwork/internal/database"
	"ynetwork/internal/seed"
)

func main() {
	def := seed.DefaultOptions()
	users := flag.Int("users", def.Users, "Number of users to create")
	posts := flag.Int("posts", def.PostsPerUser, "Posts per user")
	groups := flag.Int("groups", def.Groups, "Number of study groups")
	events := flag.Int("events", def.Events, "Number of events")
	chats := flag.Int("chats", def.DirectChats, "Number of direct conversations")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	fast := flag.Bool("fast-hash", false, "Hash the shared password with the minimum bcrypt cost")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a seeder preset (small, default, campus)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := def
	opts.Users, opts.PostsPerUser, opts.Groups, opts.Events, opts.DirectChats = *users, *posts, *groups, *events, *chats
	opts.Seed, opts.FastHash = *randSeed, *fast

	s, err := seed.NewSeeder(db, opts)
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}
	if *preset != "" {
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatal(err)
		}
		log.Printf("Applying preset %s (count flags ignored)", *preset)
	}

	ctx := context.Background()
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d follows, %d posts, %d comments, %d likes, %d groups, %d events, %d conversations, %d messages in %s",
		sum.Users, sum.Follows, sum.Posts, sum.Comments, sum.Likes, sum.Groups, sum.Events, sum.Conversations, sum.Messages, sum.Duration)
	log.Printf("All seeded users share the password %q; the first user is admin", seed.DefaultPassword)
}
