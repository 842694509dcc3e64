// Command seed fills the configured database with demo posts, comments and reactions.
package main

import (
	"context"
	"flag"
	"log"

	"longform/internal/config"
	"longform/internal/database"
	"longform/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	posts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Top-level comments per post")
	replies := flag.Int("replies", defaults.RepliesPerComment, "Replies per comment")
	reactions := flag.Int("reactions", defaults.ReactionsPerTarget, "Reactions per post")
	randSeed := flag.Int64("seed", 0, "Random seed (0 for a random run)")
	clean := flag.Bool("clean", false, "Delete existing posts, comments and reactions first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if config.IsProduction(cfg.Env) {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, *randSeed)
	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx, seed.Options{
		Posts:              *posts,
		CommentsPerPost:    *comments,
		RepliesPerComment:  *replies,
		ReactionsPerTarget: *reactions,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d posts, %d comments, %d replies, %d reactions",
		sum.Posts, sum.Comments, sum.Replies, sum.Reactions)
}
