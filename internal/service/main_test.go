package service

import (
	"context"
	"sync"
	"testing"

	"longform/internal/featureflags"
	"longform/internal/models"
	"longform/internal/repository"
	"longform/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) sent() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.msgs...)
}

type fixture struct {
	db        *gorm.DB
	posts     repository.PostRepository
	comments  repository.CommentRepository
	reactions repository.ReactionRepository
	reconcile *ReconcileService
	ledger    *ReactionService
	threads   *CommentService
	postSvc   *PostService
	notifier  *recordingNotifier
}

// interleavedComments runs before ahead of the insert, standing in for a request that
// lands between the service's checks and its write.
type interleavedComments struct {
	repository.CommentRepository
	before func()
}

func (r interleavedComments) Create(ctx context.Context, comment *models.Comment) error {
	r.before()
	return r.CommentRepository.Create(ctx, comment)
}

type interleavedReactions struct {
	repository.ReactionRepository
	beforeCreate func()
	beforeUpdate func()
}

func (r interleavedReactions) Create(ctx context.Context, reaction *models.Reaction) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	return r.ReactionRepository.Create(ctx, reaction)
}

func (r interleavedReactions) UpdateType(ctx context.Context, id uint, from, to models.ReactionType) (bool, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	return r.ReactionRepository.UpdateType(ctx, id, from, to)
}

type interleavedPosts struct {
	repository.PostRepository
	beforeDelete func()
}

func (r interleavedPosts) Delete(ctx context.Context, id uint) error {
	r.beforeDelete()
	return r.PostRepository.Delete(ctx, id)
}

var (
	author = &models.CurrentUser{Email: "ada@example.com", Name: "Ada", Role: models.RoleAuthor}
	admin  = &models.CurrentUser{Email: "root@example.com", Name: "Root", Role: models.RoleAdmin}
	reader = &models.CurrentUser{Email: "bob@example.com", Name: "Bob", Role: models.RoleReader}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)

	f := &fixture{
		db:        db,
		posts:     repository.NewPostRepository(db),
		comments:  repository.NewCommentRepository(db),
		reactions: repository.NewReactionRepository(db),
		notifier:  &recordingNotifier{},
	}
	f.reconcile = NewReconcileService(f.posts, f.comments, f.reactions, nil)
	f.ledger = NewReactionService(f.reactions, f.posts, f.comments, f.reconcile, nil)
	f.threads = NewCommentService(f.comments, f.posts, f.reactions, f.reconcile, f.notifier, nil)
	f.postSvc = NewPostService(f.posts, f.reactions, f.threads, nil, featureflags.NewManager("post_cache=off"))
	return f
}

func (f *fixture) newPost(t *testing.T) *models.Post {
	t.Helper()
	post, err := f.postSvc.CreatePost(context.Background(), author, CreatePostInput{
		Title: "On long-form writing",
		Body:  "Some prose.",
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) comment(t *testing.T, postID uint, parentID *uint, email string) *models.Comment {
	t.Helper()
	c, err := f.threads.SubmitComment(context.Background(), SubmitCommentInput{
		PostID:   postID,
		ParentID: parentID,
		Name:     "Reader",
		Email:    email,
		Content:  "Nice piece.",
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) react(t *testing.T, kind models.TargetKind, id uint, email string, typ models.ReactionType) *models.ReactionResult {
	t.Helper()
	res, err := f.ledger.React(context.Background(), ReactInput{
		TargetKind: kind,
		TargetID:   id,
		UserEmail:  email,
		UserName:   "Reader",
		Type:       typ,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) post(t *testing.T, id uint) *models.Post {
	t.Helper()
	post, err := f.posts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return post
}

func (f *fixture) loadComment(t *testing.T, id uint) *models.Comment {
	t.Helper()
	c, err := f.comments.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// assertCountersMatchFacts checks every stored counter of the post thread against its rows.
func (f *fixture) assertCountersMatchFacts(t *testing.T, postID uint) {
	t.Helper()
	ctx := context.Background()
	post := f.post(t, postID)

	counts, err := f.reactions.CountByTarget(ctx, models.TargetPost, postID)
	require.NoError(t, err)
	assert.Equal(t, counts, post.ReactionCounts, "post reaction counts")

	top, err := f.comments.CountApprovedTopLevel(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, top, post.CommentsCount, "post comments count")

	comments, err := f.comments.ListByPost(ctx, postID)
	require.NoError(t, err)
	for _, c := range comments {
		counts, err := f.reactions.CountByTarget(ctx, models.TargetComment, c.ID)
		require.NoError(t, err)
		assert.Equal(t, counts, c.ReactionCounts, "comment %d reaction counts", c.ID)

		replies, err := f.comments.CountReplies(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, replies, c.RepliesCount, "comment %d replies count", c.ID)
	}
}

func (f *fixture) countRows(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
