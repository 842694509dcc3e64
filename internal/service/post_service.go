package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"longform/internal/cache"
	"longform/internal/featureflags"
	"longform/internal/media"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/observability"
	"longform/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// PostService owns the post write path: body edits, media refs embedded through
// placeholders, and the cascade when a post goes away. Reads render the body through the
// placeholder resolver and are cached in Redis when the post_cache flag is on.
type PostService struct {
	posts     repository.PostRepository
	reactions repository.ReactionRepository
	threads   *CommentService
	cache     *cache.Store
	flags     *featureflags.Manager
}

type CreatePostInput struct {
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Images []models.ImageRef `json:"images"`
	Videos []models.VideoRef `json:"videos"`
}

// UpdatePostInput changes only the fields that are set.
type UpdatePostInput struct {
	Title  *string            `json:"title"`
	Body   *string            `json:"body"`
	Images *[]models.ImageRef `json:"images"`
	Videos *[]models.VideoRef `json:"videos"`
}

type ImageUpdate struct {
	URL      *string `json:"url"`
	Alt      *string `json:"alt"`
	Caption  *string `json:"caption"`
	Position *string `json:"position"`
}

type VideoUpdate struct {
	Platform        *string `json:"platform"`
	ExternalVideoID *string `json:"external_video_id"`
	URL             *string `json:"url"`
	Title           *string `json:"title"`
	Caption         *string `json:"caption"`
	Position        *string `json:"position"`
	Autoplay        *bool   `json:"autoplay"`
	Muted           *bool   `json:"muted"`
}

func NewPostService(
	posts repository.PostRepository,
	reactions repository.ReactionRepository,
	threads *CommentService,
	store *cache.Store,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		posts:     posts,
		reactions: reactions,
		threads:   threads,
		cache:     store,
		flags:     flags,
	}
}

// GetPost returns the post with its body expanded for display.
func (s *PostService) GetPost(ctx context.Context, postID uint) (rendered *models.RenderedPost, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.GetPost", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	var out models.RenderedPost
	fetch := func() error {
		post, err := s.posts.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		out = models.RenderedPost{
			Post:        *post,
			DisplayBody: media.Expand(post.Body, post.Images, post.Videos),
		}
		return nil
	}

	if s.flags.Enabled(featureflags.PostCache, "") {
		err = s.cache.Aside(ctx, cache.PostKey(postID), &out, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost stores a new post owned by author. Supplied refs whose placeholder is not in
// the body are dropped.
func (s *PostService) CreatePost(ctx context.Context, author *models.CurrentUser, in CreatePostInput) (*models.Post, error) {
	if author == nil || author.Email == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateBody(in.Body); err != nil {
		return nil, err
	}
	images, err := validateImages(in.Images)
	if err != nil {
		return nil, err
	}
	videos, err := validateVideos(in.Videos)
	if err != nil {
		return nil, err
	}

	images, videos = media.PruneRefs(in.Body, images, videos)

	name := strings.TrimSpace(author.Name)
	if name == "" {
		name = author.Email
	}
	post := &models.Post{
		Title:       title,
		Body:        in.Body,
		AuthorName:  name,
		AuthorEmail: models.NormalizeEmail(author.Email),
		Images:      images,
		Videos:      videos,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "post created", "post_id", post.ID, "images", len(images), "videos", len(videos))
	return post, nil
}

// UpdatePost edits title, body or ref lists. The ref lists are pruned against the resulting
// body before they are written.
func (s *PostService) UpdatePost(
	ctx context.Context,
	postID uint,
	actor *models.CurrentUser,
	in UpdatePostInput,
) (*models.Post, error) {
	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if post.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Body != nil {
		if err := validateBody(*in.Body); err != nil {
			return nil, err
		}
		post.Body = *in.Body
	}
	if in.Images != nil {
		if post.Images, err = validateImages(*in.Images); err != nil {
			return nil, err
		}
	}
	if in.Videos != nil {
		if post.Videos, err = validateVideos(*in.Videos); err != nil {
			return nil, err
		}
	}

	post.Images, post.Videos = media.PruneRefs(post.Body, post.Images, post.Videos)
	return s.saveContent(ctx, post)
}

// DeletePost removes the post after every comment thread and every reaction on it.
func (s *PostService) DeletePost(ctx context.Context, postID uint, actor *models.CurrentUser) (err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.DeletePost", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return err
	}

	if err := s.threads.deletePostThreads(ctx, post.ID); err != nil {
		return err
	}
	if err := deleteTargetReactions(ctx, s.reactions, models.TargetPost, post.ID); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	observability.CascadeDeletedRows.WithLabelValues("posts").Inc()

	// Reactions that raced past the existence check before the row went away.
	if err := deleteTargetReactions(ctx, s.reactions, models.TargetPost, post.ID); err != nil {
		return err
	}
	invalidatePost(ctx, s.cache, post.ID)

	middleware.Logger.InfoContext(ctx, "post deleted", "post_id", post.ID)
	return nil
}

// AttachImage appends an image ref and returns it with its token. The body is not touched;
// the caller inserts the placeholder with a later update.
func (s *PostService) AttachImage(
	ctx context.Context,
	postID uint,
	actor *models.CurrentUser,
	ref models.ImageRef,
) (*models.ImageRef, error) {
	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return nil, err
	}
	if ref.Token == "" {
		ref.Token = media.MintToken()
	}
	if err := checkNewToken(post, ref.Token); err != nil {
		return nil, err
	}
	if ref, err = validateImage(ref); err != nil {
		return nil, err
	}

	post.Images = append(post.Images, ref)
	if _, err := s.saveContent(ctx, post); err != nil {
		return nil, err
	}
	return &ref, nil
}

// AttachVideo appends a video ref. Platform and video id are derived from the URL when
// not supplied.
func (s *PostService) AttachVideo(
	ctx context.Context,
	postID uint,
	actor *models.CurrentUser,
	ref models.VideoRef,
) (*models.VideoRef, error) {
	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return nil, err
	}
	if ref.Token == "" {
		ref.Token = media.MintToken()
	}
	if err := checkNewToken(post, ref.Token); err != nil {
		return nil, err
	}
	if ref, err = validateVideo(ref); err != nil {
		return nil, err
	}

	post.Videos = append(post.Videos, ref)
	if _, err := s.saveContent(ctx, post); err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateImage changes the mutable fields of the image with token.
func (s *PostService) UpdateImage(
	ctx context.Context,
	postID uint,
	actor *models.CurrentUser,
	token string,
	in ImageUpdate,
) (*models.ImageRef, error) {
	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return nil, err
	}
	idx := indexOfToken(post.Images, token)
	if idx < 0 {
		return nil, models.NewNotFoundError("Image", token)
	}

	ref := post.Images[idx]
	setIfPresent(&ref.URL, in.URL)
	setIfPresent(&ref.Alt, in.Alt)
	setIfPresent(&ref.Caption, in.Caption)
	setIfPresent(&ref.Position, in.Position)
	if ref, err = validateImage(ref); err != nil {
		return nil, err
	}

	post.Images[idx] = ref
	if _, err := s.saveContent(ctx, post); err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateVideo changes the mutable fields of the video with token.
func (s *PostService) UpdateVideo(
	ctx context.Context,
	postID uint,
	actor *models.CurrentUser,
	token string,
	in VideoUpdate,
) (*models.VideoRef, error) {
	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return nil, err
	}
	idx := indexOfToken(post.Videos, token)
	if idx < 0 {
		return nil, models.NewNotFoundError("Video", token)
	}

	ref := post.Videos[idx]
	if in.URL != nil && in.Platform == nil && in.ExternalVideoID == nil {
		// A new URL replaces the embed target unless both are given explicitly.
		ref.Platform, ref.ExternalVideoID = "", ""
	}
	setIfPresent(&ref.Platform, in.Platform)
	setIfPresent(&ref.ExternalVideoID, in.ExternalVideoID)
	setIfPresent(&ref.URL, in.URL)
	setIfPresent(&ref.Title, in.Title)
	setIfPresent(&ref.Caption, in.Caption)
	setIfPresent(&ref.Position, in.Position)
	setIfPresent(&ref.Autoplay, in.Autoplay)
	setIfPresent(&ref.Muted, in.Muted)
	if ref, err = validateVideo(ref); err != nil {
		return nil, err
	}

	post.Videos[idx] = ref
	if _, err := s.saveContent(ctx, post); err != nil {
		return nil, err
	}
	return &ref, nil
}

// RemoveImage strips every placeholder of the image from the body and prunes the refs.
func (s *PostService) RemoveImage(ctx context.Context, postID uint, actor *models.CurrentUser, token string) (*models.Post, error) {
	return s.removeRef(ctx, postID, actor, media.KindImage, token)
}

// RemoveVideo strips every placeholder of the video from the body and prunes the refs.
func (s *PostService) RemoveVideo(ctx context.Context, postID uint, actor *models.CurrentUser, token string) (*models.Post, error) {
	return s.removeRef(ctx, postID, actor, media.KindVideo, token)
}

func (s *PostService) removeRef(
	ctx context.Context,
	postID uint,
	actor *models.CurrentUser,
	kind string,
	token string,
) (*models.Post, error) {
	post, err := s.loadManaged(ctx, postID, actor)
	if err != nil {
		return nil, err
	}

	var placeholder string
	switch kind {
	case media.KindImage:
		if indexOfToken(post.Images, token) < 0 {
			return nil, models.NewNotFoundError("Image", token)
		}
		placeholder = media.ImagePlaceholder(token)
	default:
		if indexOfToken(post.Videos, token) < 0 {
			return nil, models.NewNotFoundError("Video", token)
		}
		placeholder = media.VideoPlaceholder(token)
	}

	post.Body = media.StripPlaceholder(post.Body, placeholder)
	post.Images, post.Videos = media.PruneRefs(post.Body, post.Images, post.Videos)
	return s.saveContent(ctx, post)
}

func (s *PostService) loadManaged(ctx context.Context, postID uint, actor *models.CurrentUser) (*models.Post, error) {
	if actor == nil || actor.Email == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !canManagePost(post, actor) {
		return nil, models.NewForbiddenError("Only the post author or an admin can modify this post")
	}
	return post, nil
}

func (s *PostService) saveContent(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post.Images == nil {
		post.Images = []models.ImageRef{}
	}
	if post.Videos == nil {
		post.Videos = []models.VideoRef{}
	}
	if err := s.posts.UpdateContent(ctx, post); err != nil {
		return nil, err
	}
	invalidatePost(ctx, s.cache, post.ID)
	return post, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", models.NewValidationError("Title too long (max 300 characters)")
	}
	return title, nil
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return models.NewValidationError("Body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return models.NewValidationError("Body too long (max 100000 characters)")
	}
	return nil
}

func validateImages(refs []models.ImageRef) ([]models.ImageRef, error) {
	out := make([]models.ImageRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Token == "" {
			continue
		}
		ref, err := validateImage(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func validateVideos(refs []models.VideoRef) ([]models.VideoRef, error) {
	out := make([]models.VideoRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Token == "" {
			continue
		}
		ref, err := validateVideo(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func validateImage(ref models.ImageRef) (models.ImageRef, error) {
	if !media.ValidToken(ref.Token) {
		return ref, models.NewValidationError("Image token is invalid")
	}
	ref.URL = strings.TrimSpace(ref.URL)
	if media.SafeURL(ref.URL) == "" {
		return ref, models.NewValidationError("Image URL must be an http(s) or site-relative URL")
	}
	ref.Position = media.SanitizePosition(ref.Position)
	return ref, nil
}

func validateVideo(ref models.VideoRef) (models.VideoRef, error) {
	if !media.ValidToken(ref.Token) {
		return ref, models.NewValidationError("Video token is invalid")
	}
	ref.URL = strings.TrimSpace(ref.URL)
	ref.Platform = media.NormalizePlatform(ref.Platform)
	ref.ExternalVideoID = strings.TrimSpace(ref.ExternalVideoID)

	if ref.Platform == "" || ref.ExternalVideoID == "" {
		platform, id, ok := media.ParseVideoURL(ref.URL)
		if ok && (ref.Platform == "" || ref.Platform == platform) {
			ref.Platform = platform
			if ref.ExternalVideoID == "" {
				ref.ExternalVideoID = id
			}
		}
	}
	if !media.IsSupportedPlatform(ref.Platform) {
		return ref, models.NewValidationError("Video platform must be youtube, vimeo or dailymotion")
	}
	if ref.ExternalVideoID == "" {
		return ref, models.NewValidationError("Video id is required or must be derivable from the URL")
	}
	ref.Position = media.SanitizePosition(ref.Position)
	return ref, nil
}

// checkNewToken rejects malformed tokens and tokens already used by any ref on the post.
func checkNewToken(post *models.Post, token string) error {
	if !media.ValidToken(token) {
		return models.NewValidationError("Token is invalid")
	}
	if indexOfToken(post.Images, token) >= 0 || indexOfToken(post.Videos, token) >= 0 {
		return models.NewConflictError("Token already in use on this post", nil)
	}
	return nil
}

func indexOfToken[T media.Ref](refs []T, token string) int {
	for i, ref := range refs {
		if ref.GetToken() == token {
			return i
		}
	}
	return -1
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
