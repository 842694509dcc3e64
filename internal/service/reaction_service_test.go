package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"longform/internal/featureflags"
	"longform/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReact_ToggleCycle(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)

	statuses := make([]models.ReactionStatus, 0, 4)
	for range 4 {
		res := f.react(t, models.TargetPost, post.ID, "bob@example.com", models.ReactionLike)
		statuses = append(statuses, res.Status)
	}

	assert.Equal(t, []models.ReactionStatus{
		models.ReactionCreated, models.ReactionRemoved, models.ReactionCreated, models.ReactionRemoved,
	}, statuses)
	assert.Equal(t, models.ReactionCounts{}, f.post(t, post.ID).ReactionCounts)
	f.assertCountersMatchFacts(t, post.ID)
}

func TestReact_SwitchPreservesTotal(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	f.react(t, models.TargetPost, post.ID, "carol@example.com", models.ReactionDislike)
	counts := f.post(t, post.ID).ReactionCounts
	before := counts.Likes + counts.Dislikes

	first := f.react(t, models.TargetPost, post.ID, "bob@example.com", models.ReactionLike)
	second := f.react(t, models.TargetPost, post.ID, "bob@example.com", models.ReactionDislike)

	assert.Equal(t, models.ReactionCreated, first.Status)
	assert.Equal(t, models.ReactionSwitched, second.Status)
	assert.Equal(t, before+1, second.ReactionCounts.Likes+second.ReactionCounts.Dislikes)
	assert.Equal(t, models.ReactionCounts{Likes: 0, Dislikes: 2}, second.ReactionCounts)
}

func TestReact_CommentScenario(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	c := f.comment(t, post.ID, nil, "carol@example.com")

	res := f.react(t, models.TargetComment, c.ID, "bob@example.com", models.ReactionLike)
	assert.Equal(t, models.ReactionCounts{Likes: 1}, res.ReactionCounts)

	res = f.react(t, models.TargetComment, c.ID, "bob@example.com", models.ReactionDislike)
	assert.Equal(t, models.ReactionSwitched, res.Status)
	assert.Equal(t, models.ReactionCounts{Dislikes: 1}, res.ReactionCounts)

	res = f.react(t, models.TargetComment, c.ID, "bob@example.com", models.ReactionDislike)
	assert.Equal(t, models.ReactionRemoved, res.Status)
	assert.Equal(t, models.ReactionCounts{}, res.ReactionCounts)

	// The post's own counters are untouched by comment reactions.
	assert.Equal(t, models.ReactionCounts{}, f.post(t, post.ID).ReactionCounts)
	f.assertCountersMatchFacts(t, post.ID)
}

func TestReact_Errors(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ReactInput
		code string
	}{
		{
			name: "bad type",
			in:   ReactInput{TargetKind: models.TargetPost, TargetID: post.ID, UserEmail: "bob@example.com", Type: "love"},
			code: models.CodeValidation,
		},
		{
			name: "bad target kind",
			in:   ReactInput{TargetKind: "user", TargetID: post.ID, UserEmail: "bob@example.com", Type: models.ReactionLike},
			code: models.CodeValidation,
		},
		{
			name: "missing email",
			in:   ReactInput{TargetKind: models.TargetPost, TargetID: post.ID, Type: models.ReactionLike},
			code: models.CodeValidation,
		},
		{
			name: "missing post",
			in:   ReactInput{TargetKind: models.TargetPost, TargetID: 9999, UserEmail: "bob@example.com", Type: models.ReactionLike},
			code: models.CodeNotFound,
		},
		{
			name: "missing comment",
			in:   ReactInput{TargetKind: models.TargetComment, TargetID: 9999, UserEmail: "bob@example.com", Type: models.ReactionLike},
			code: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.React(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, models.ErrorCode(err))
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Reaction{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestReact_EmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)

	f.react(t, models.TargetPost, post.ID, "Bob@Example.com", models.ReactionLike)
	res := f.react(t, models.TargetPost, post.ID, "bob@example.com", models.ReactionLike)

	assert.Equal(t, models.ReactionRemoved, res.Status)
}

func TestGetReactionState(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()

	state, err := f.ledger.GetReactionState(ctx, models.TargetPost, post.ID, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, state.HasReacted)
	assert.Nil(t, state.Type)

	f.react(t, models.TargetPost, post.ID, "bob@example.com", models.ReactionDislike)

	state, err = f.ledger.GetReactionState(ctx, models.TargetPost, post.ID, "BOB@example.com")
	require.NoError(t, err)
	assert.True(t, state.HasReacted)
	require.NotNil(t, state.Type)
	assert.Equal(t, models.ReactionDislike, *state.Type)

	_, err = f.ledger.GetReactionState(ctx, models.TargetPost, 9999, "bob@example.com")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestReact_ConcurrentUsersKeepCountersExact(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()

	const users = 20
	var wg sync.WaitGroup
	errs := make(chan error, users*3)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("user%d@example.com", i)
			// like, switch to dislike, and for odd users switch back.
			sequence := []models.ReactionType{models.ReactionLike, models.ReactionDislike}
			if i%2 == 1 {
				sequence = append(sequence, models.ReactionLike)
			}
			for _, typ := range sequence {
				_, err := f.ledger.React(ctx, ReactInput{
					TargetKind: models.TargetPost,
					TargetID:   post.ID,
					UserEmail:  email,
					Type:       typ,
				})
				if err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, models.ReactionCounts{Likes: users / 2, Dislikes: users / 2}, f.post(t, post.ID).ReactionCounts)
	f.assertCountersMatchFacts(t, post.ID)
}

func TestReact_SameUserRaceNeverDrifts(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.React(ctx, ReactInput{
				TargetKind: models.TargetPost,
				TargetID:   post.ID,
				UserEmail:  "bob@example.com",
				Type:       models.ReactionLike,
			})
			if err != nil {
				assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
			}
		}()
	}
	wg.Wait()

	f.assertCountersMatchFacts(t, post.ID)
	assert.LessOrEqual(t, f.post(t, post.ID).ReactionCounts.Likes, 1)
}

func TestReact_DuplicateInsertIsConflict(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()

	// A concurrent first reaction by the same address wins the unique index.
	reactions := interleavedReactions{ReactionRepository: f.reactions, beforeCreate: func() {
		require.NoError(t, f.reactions.Create(ctx, &models.Reaction{
			TargetKind: models.TargetPost,
			TargetID:   post.ID,
			UserEmail:  "bob@example.com",
			Type:       models.ReactionLike,
		}))
	}}
	ledger := NewReactionService(reactions, f.posts, f.comments, f.reconcile, nil)

	_, err := ledger.React(ctx, ReactInput{
		TargetKind: models.TargetPost,
		TargetID:   post.ID,
		UserEmail:  "bob@example.com",
		Type:       models.ReactionDislike,
	})
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "already reacted")

	assert.Equal(t, models.ReactionCounts{}, f.post(t, post.ID).ReactionCounts)
	assert.EqualValues(t, 1, f.countRows(t, &models.Reaction{}, "target_id = ?", post.ID))
}

func TestReact_CommentDeletedMidReact(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()
	c := f.comment(t, post.ID, nil, "carol@example.com")

	reactions := interleavedReactions{ReactionRepository: f.reactions, beforeCreate: func() {
		require.NoError(t, f.threads.DeleteComment(ctx, DeleteCommentInput{
			CommentID: c.ID, Actor: admin, AsAdmin: true,
		}))
	}}
	ledger := NewReactionService(reactions, f.posts, f.comments, f.reconcile, nil)

	_, err := ledger.React(ctx, ReactInput{
		TargetKind: models.TargetComment,
		TargetID:   c.ID,
		UserEmail:  "bob@example.com",
		Type:       models.ReactionLike,
	})
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Zero(t, f.countRows(t, &models.Reaction{}, "target_kind = ? AND target_id = ?", models.TargetComment, c.ID))
	f.assertCountersMatchFacts(t, post.ID)
}

func TestReact_SwitchOnPostDeletedMidReact(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()
	f.react(t, models.TargetPost, post.ID, "bob@example.com", models.ReactionLike)

	// The post row goes away before its reaction sweep reaches this row.
	reactions := interleavedReactions{ReactionRepository: f.reactions, beforeUpdate: func() {
		require.NoError(t, f.posts.Delete(ctx, post.ID))
	}}
	ledger := NewReactionService(reactions, f.posts, f.comments, f.reconcile, nil)

	_, err := ledger.React(ctx, ReactInput{
		TargetKind: models.TargetPost,
		TargetID:   post.ID,
		UserEmail:  "bob@example.com",
		Type:       models.ReactionDislike,
	})
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Zero(t, f.countRows(t, &models.Reaction{}, "target_kind = ? AND target_id = ?", models.TargetPost, post.ID))
}

func TestDeletePost_SweepsReactionsWrittenDuringDelete(t *testing.T) {
	f := newFixture(t)
	post := f.newPost(t)
	ctx := context.Background()

	posts := interleavedPosts{PostRepository: f.posts, beforeDelete: func() {
		require.NoError(t, f.reactions.Create(ctx, &models.Reaction{
			TargetKind: models.TargetPost,
			TargetID:   post.ID,
			UserEmail:  "bob@example.com",
			Type:       models.ReactionLike,
		}))
	}}
	postSvc := NewPostService(posts, f.reactions, f.threads, nil, featureflags.NewManager("post_cache=off"))

	require.NoError(t, postSvc.DeletePost(ctx, post.ID, author))
	assert.Zero(t, f.countRows(t, &models.Reaction{}, "target_kind = ? AND target_id = ?", models.TargetPost, post.ID))
}

func TestReactionDelta(t *testing.T) {
	likes, dislikes := reactionDelta(models.ReactionLike, 1)
	assert.Equal(t, [2]int{1, 0}, [2]int{likes, dislikes})

	likes, dislikes = reactionDelta(models.ReactionDislike, -1)
	assert.Equal(t, [2]int{0, -1}, [2]int{likes, dislikes})
}
