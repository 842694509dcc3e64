// Package main provides operator utilities for the longform API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"longform/internal/cache"
	"longform/internal/config"
	"longform/internal/database"
	"longform/internal/featureflags"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/notifications"
	"longform/internal/repository"
	"longform/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin token <email> <name> <role>   - Mint a bearer token (reader, author, admin)")
	fmt.Println("  go run ./cmd/admin reconcile [post_id]           - Recount counters for one post or all posts")
	fmt.Println("  go run ./cmd/admin notifications                 - Print comment notifications as they are published")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch os.Args[1] {
	case "token":
		if len(os.Args) < 5 {
			usage()
		}
		mintToken(cfg, os.Args[2], os.Args[3], os.Args[4])
	case "reconcile":
		postID := ""
		if len(os.Args) > 2 {
			postID = os.Args[2]
		}
		reconcile(cfg, postID)
	case "notifications":
		tailNotifications(cfg)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func mintToken(cfg *config.Config, email, name, role string) {
	switch role {
	case models.RoleReader, models.RoleAuthor, models.RoleAdmin:
	default:
		log.Fatalf("Unknown role %q", role)
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, models.CurrentUser{Email: email, Name: name, Role: role}, 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}

func reconcile(cfg *config.Config, rawID string) {
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	rdb := cache.InitRedis(cfg.RedisURL)
	store := cache.NewStore(rdb, cache.PostCacheName, time.Duration(cfg.PostCacheTTLSeconds)*time.Second)

	svc := service.NewReconcileService(
		repository.NewPostRepository(db),
		repository.NewCommentRepository(db),
		repository.NewReactionRepository(db),
		store,
	)

	ctx := context.Background()
	var reports []*service.ReconcileReport
	if rawID == "" {
		reports, err = svc.ReconcileAll(ctx)
	} else {
		id, perr := strconv.ParseUint(rawID, 10, 64)
		if perr != nil || id == 0 {
			log.Fatalf("Invalid post id %q", rawID)
		}
		var report *service.ReconcileReport
		report, err = svc.ReconcilePost(ctx, uint(id))
		if report != nil {
			reports = append(reports, report)
		}
	}
	if err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}

	drifted := 0
	for _, r := range reports {
		for _, d := range r.Drifts {
			drifted++
			fmt.Printf("post %d: %s %d %s %d -> %d\n", r.PostID, d.TargetKind, d.TargetID, d.Counter, d.Stored, d.Actual)
		}
	}
	fmt.Printf("Reconciled %d posts, repaired %d counters\n", len(reports), drifted)
}

func tailNotifications(cfg *config.Config) {
	rdb := cache.InitRedis(cfg.RedisURL)
	if rdb == nil {
		log.Fatal("Redis is not reachable; notifications need REDIS_URL")
	}
	notifier := notifications.NewNotifier(rdb, featureflags.NewManager(cfg.FeatureFlags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err := notifier.Subscribe(ctx, func(msg models.Notification) {
		_ = enc.Encode(msg)
	})
	if err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}
}
