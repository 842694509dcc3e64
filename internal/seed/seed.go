// Package seed populates a database with demo posts, comments and reactions for local
// development. Everything goes through the service layer so counters match the fact rows.
package seed

import (
	"context"
	"fmt"
	"strings"

	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/repository"
	"longform/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options controls how much data Run creates.
type Options struct {
	Posts              int
	CommentsPerPost    int
	RepliesPerComment  int
	ReactionsPerTarget int
}

// DefaultOptions is a small but non-trivial data set.
func DefaultOptions() Options {
	return Options{
		Posts:              10,
		CommentsPerPost:    5,
		RepliesPerComment:  2,
		ReactionsPerTarget: 6,
	}
}

// Summary counts what a run created.
type Summary struct {
	Posts     int `json:"posts"`
	Comments  int `json:"comments"`
	Replies   int `json:"replies"`
	Reactions int `json:"reactions"`
}

// Seeder creates demo data through the services.
type Seeder struct {
	db        *gorm.DB
	posts     *service.PostService
	comments  *service.CommentService
	reactions *service.ReactionService
	faker     *gofakeit.Faker
}

// NewSeeder wires the services against db without cache or notifications. A non-zero seed
// makes runs reproducible.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	reconcile := service.NewReconcileService(postRepo, commentRepo, reactionRepo, nil)

	comments := service.NewCommentService(commentRepo, postRepo, reactionRepo, reconcile, nil, nil)
	return &Seeder{
		db:        db,
		posts:     service.NewPostService(postRepo, reactionRepo, comments, nil, nil),
		comments:  comments,
		reactions: service.NewReactionService(reactionRepo, postRepo, commentRepo, reconcile, nil),
		faker:     gofakeit.New(seed),
	}
}

// ClearAll removes every reaction, comment and post.
func (s *Seeder) ClearAll(ctx context.Context) error {
	for _, model := range []any{&models.Reaction{}, &models.Comment{}, &models.Post{}} {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "seed data cleared")
	return nil
}

// Run creates opts.Posts posts, each with media, comments, replies and reactions.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	for i := 0; i < opts.Posts; i++ {
		author := s.person(models.RoleAuthor)
		post, err := s.posts.CreatePost(ctx, &author, s.buildPost())
		if err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		sum.Posts++

		n, err := s.reactTo(ctx, models.TargetPost, post.ID, opts.ReactionsPerTarget)
		sum.Reactions += n
		if err != nil {
			return sum, err
		}

		for j := 0; j < opts.CommentsPerPost; j++ {
			commenter := s.person(models.RoleReader)
			comment, err := s.comments.SubmitComment(ctx, service.SubmitCommentInput{
				PostID:  post.ID,
				Name:    commenter.Name,
				Email:   commenter.Email,
				Content: s.faker.Sentence(s.faker.Number(6, 24)),
			})
			if err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++

			n, err := s.reactTo(ctx, models.TargetComment, comment.ID, opts.ReactionsPerTarget/2)
			sum.Reactions += n
			if err != nil {
				return sum, err
			}

			for k := 0; k < opts.RepliesPerComment; k++ {
				if _, err := s.reply(ctx, post, &author, comment.ID, k == 0); err != nil {
					return sum, fmt.Errorf("create reply: %w", err)
				}
				sum.Replies++
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		"posts", sum.Posts, "comments", sum.Comments, "replies", sum.Replies, "reactions", sum.Reactions)
	return sum, nil
}

// reply adds a reply to parentID; the first reply of a thread comes from the post author.
func (s *Seeder) reply(ctx context.Context, post *models.Post, author *models.CurrentUser, parentID uint, asAuthor bool) (*models.Comment, error) {
	in := service.SubmitCommentInput{
		PostID:   post.ID,
		ParentID: &parentID,
		Content:  s.faker.Sentence(s.faker.Number(4, 16)),
	}
	if asAuthor {
		in.AsAuthor = true
		in.Actor = author
	} else {
		replier := s.person(models.RoleReader)
		in.Name, in.Email = replier.Name, replier.Email
	}
	return s.comments.SubmitComment(ctx, in)
}

func (s *Seeder) reactTo(ctx context.Context, kind models.TargetKind, id uint, count int) (int, error) {
	created := 0
	for i := 0; i < count; i++ {
		reactor := s.person(models.RoleReader)
		typ := models.ReactionLike
		if s.faker.Number(1, 4) == 1 {
			typ = models.ReactionDislike
		}
		if _, err := s.reactions.React(ctx, service.ReactInput{
			TargetKind: kind,
			TargetID:   id,
			UserEmail:  reactor.Email,
			UserName:   reactor.Name,
			Type:       typ,
		}); err != nil {
			if models.ErrorCode(err) == models.CodeConflict {
				continue
			}
			return created, fmt.Errorf("react to %s %d: %w", kind, id, err)
		}
		created++
	}
	return created, nil
}

func (s *Seeder) person(role string) models.CurrentUser {
	first, last := s.faker.FirstName(), s.faker.LastName()
	email := fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), s.faker.Number(1, 99999))
	return models.CurrentUser{Name: first + " " + last, Email: models.NormalizeEmail(email), Role: role}
}
