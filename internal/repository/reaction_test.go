package repository

import (
	"context"
	"regexp"
	"testing"

	"longform/internal/models"
	"longform/internal/testutil"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionRepository_CreateDuplicateIsTranslated(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	first := &models.Reaction{TargetKind: models.TargetPost, TargetID: 1, UserEmail: "u@example.com", Type: models.ReactionLike}
	require.NoError(t, repo.Create(ctx, first))

	dup := &models.Reaction{TargetKind: models.TargetPost, TargetID: 1, UserEmail: "u@example.com", Type: models.ReactionDislike}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateReaction)

	// Same user on a different target kind is a different key.
	other := &models.Reaction{TargetKind: models.TargetComment, TargetID: 1, UserEmail: "u@example.com", Type: models.ReactionLike}
	assert.NoError(t, repo.Create(ctx, other))
}

func TestReactionRepository_CreateDuplicatePostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "reactions"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_reactions_target_user"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Reaction{
		TargetKind: models.TargetPost, TargetID: 1, UserEmail: "u@example.com", Type: models.ReactionLike,
	})
	assert.ErrorIs(t, err, ErrDuplicateReaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReactionRepository_FindUpdateDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	missing, err := repo.Find(ctx, models.TargetPost, 1, "u@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	r := &models.Reaction{TargetKind: models.TargetPost, TargetID: 1, UserEmail: "u@example.com", Type: models.ReactionLike}
	require.NoError(t, repo.Create(ctx, r))

	found, err := repo.Find(ctx, models.TargetPost, 1, "u@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.ReactionLike, found.Type)

	switched, err := repo.UpdateType(ctx, r.ID, models.ReactionLike, models.ReactionDislike)
	require.NoError(t, err)
	assert.True(t, switched)

	switched, err = repo.UpdateType(ctx, r.ID, models.ReactionLike, models.ReactionDislike)
	require.NoError(t, err)
	assert.False(t, switched)

	deleted, err := repo.Delete(ctx, r.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.False(t, deleted, "type changed since it was read")

	deleted, err = repo.Delete(ctx, r.ID, models.ReactionDislike)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, r.ID, models.ReactionDislike)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestReactionRepository_CountAndDeleteByTarget(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	for i, typ := range []models.ReactionType{models.ReactionLike, models.ReactionLike, models.ReactionDislike} {
		require.NoError(t, repo.Create(ctx, &models.Reaction{
			TargetKind: models.TargetComment,
			TargetID:   4,
			UserEmail:  string(rune('a'+i)) + "@example.com",
			Type:       typ,
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Reaction{
		TargetKind: models.TargetPost, TargetID: 4, UserEmail: "a@example.com", Type: models.ReactionLike,
	}))

	counts, err := repo.CountByTarget(ctx, models.TargetComment, 4)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionCounts{Likes: 2, Dislikes: 1}, counts)

	n, err := repo.DeleteByTarget(ctx, models.TargetComment, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	counts, err = repo.CountByTarget(ctx, models.TargetComment, 4)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionCounts{}, counts)

	postCounts, err := repo.CountByTarget(ctx, models.TargetPost, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, postCounts.Likes)
}
