package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"echoes/internal/cache"
	"echoes/internal/hashtags"
	"echoes/internal/models"
	"echoes/internal/observability"
	"echoes/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// CommentPrefixLimit is the number of oldest comments attached to posts in lists.
	CommentPrefixLimit = 3
	// MaxEchoDepth bounds the walk from an echo to its root.
	MaxEchoDepth = 32
	// MaxBookmarks caps the bookmark list.
	MaxBookmarks = 100
)

type PostService struct {
	posts      repository.PostRepository
	engagement repository.EngagementRepository
	notifier   Notifier
	now        func() time.Time
}

type CreatePostInput struct {
	AuthorID    uint
	Content     *string
	ImageURL    *string
	ScheduledAt *time.Time
}

type EchoPostInput struct {
	ActorID     uint
	ParentID    uint
	Content     *string
	ScheduledAt *time.Time
}

type ReplyInput struct {
	ActorID     uint
	ParentID    uint
	Content     *string
	ImageURL    *string
	ScheduledAt *time.Time
}

type EditPostInput struct {
	ActorID uint
	PostID  uint
	Content *string
}

// EchoRoot is the result of walking an echo chain.
type EchoRoot struct {
	Root *models.Post `json:"root"`
	Hops int          `json:"hops"`
}

func NewPostService(
	posts repository.PostRepository,
	engagement repository.EngagementRepository,
	notifier Notifier,
) *PostService {
	return &PostService{
		posts:      posts,
		engagement: engagement,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content, imageURL := normalizeBody(in.Content), normalizeBody(in.ImageURL)
	if content == nil && imageURL == nil {
		return nil, models.NewValidationError("Post must have content or an image")
	}
	post := &models.Post{AuthorID: in.AuthorID, Content: content, ImageURL: imageURL}
	return s.create(ctx, post, in.ScheduledAt)
}

// EchoPost reshares a live post, optionally with commentary.
func (s *PostService) EchoPost(ctx context.Context, in EchoPostInput) (*models.Post, error) {
	parent, err := s.loadLive(ctx, in.ActorID, in.ParentID)
	if err != nil {
		return nil, err
	}
	post := &models.Post{AuthorID: in.ActorID, Content: normalizeBody(in.Content), EchoParentID: &parent.ID}
	created, err := s.create(ctx, post, in.ScheduledAt)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, parent.AuthorID, models.NotificationEcho, in.ActorID, created.ID)
	return created, nil
}

func (s *PostService) ReplyToPost(ctx context.Context, in ReplyInput) (*models.Post, error) {
	parent, err := s.loadLive(ctx, in.ActorID, in.ParentID)
	if err != nil {
		return nil, err
	}
	content, imageURL := normalizeBody(in.Content), normalizeBody(in.ImageURL)
	if content == nil && imageURL == nil {
		return nil, models.NewValidationError("Reply must have content or an image")
	}
	post := &models.Post{AuthorID: in.ActorID, Content: content, ImageURL: imageURL, ReplyToID: &parent.ID}
	created, err := s.create(ctx, post, in.ScheduledAt)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, parent.AuthorID, models.NotificationReply, in.ActorID, created.ID)
	return created, nil
}

func (s *PostService) create(ctx context.Context, post *models.Post, scheduledAt *time.Time) (*models.Post, error) {
	if err := validateContentLength(post.Content); err != nil {
		return nil, err
	}

	post.PublishedAt = s.now()
	if scheduledAt != nil {
		at := scheduledAt.UTC()
		post.PublishedAt = at
		post.ScheduledAt = &at
	}

	var tags []string
	if post.Content != nil {
		tags = hashtags.Extract(*post.Content)
	}
	if err := s.posts.Create(ctx, post, tags); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		cache.InvalidateTrending(ctx)
	}
	return s.posts.GetByID(ctx, post.ID, repository.ListOptions{ViewerID: post.AuthorID})
}

// GetPost returns the detail view with every comment. Scheduled posts are only
// visible to their author until published.
func (s *PostService) GetPost(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID, repository.ListOptions{ViewerID: viewerID})
	if err != nil {
		return nil, err
	}
	if post.AuthorID != viewerID && !post.IsPublished(s.now()) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// GetPostReplies lists published replies oldest first.
func (s *PostService) GetPostReplies(ctx context.Context, viewerID, postID uint) ([]*models.Post, error) {
	if _, err := s.loadLive(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	return s.posts.ListReplies(ctx, postID, repository.ListOptions{
		ViewerID:     viewerID,
		Now:          s.now(),
		CommentLimit: CommentPrefixLimit,
	})
}

func (s *PostService) GetBookmarks(ctx context.Context, viewerID uint) ([]*models.Post, error) {
	return s.posts.ListBookmarked(ctx, viewerID, repository.ListOptions{
		ViewerID:     viewerID,
		Now:          s.now(),
		Limit:        MaxBookmarks,
		CommentLimit: CommentPrefixLimit,
	})
}

// Like is idempotent: liking twice leaves one like and notifies once.
func (s *PostService) Like(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.loadLive(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if err := s.like(ctx, userID, post); err != nil {
		return nil, err
	}
	return s.detail(ctx, userID, postID)
}

// Unlike is idempotent.
func (s *PostService) Unlike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.loadLive(ctx, userID, postID); err != nil {
		return nil, err
	}
	removed, err := s.engagement.Unlike(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.EngagementActions.WithLabelValues("unlike").Inc()
	}
	return s.detail(ctx, userID, postID)
}

// ToggleLike flips the viewer's like on the post.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.loadLive(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	removed, err := s.engagement.Unlike(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.EngagementActions.WithLabelValues("unlike").Inc()
	} else if err := s.like(ctx, userID, post); err != nil {
		return nil, err
	}
	return s.detail(ctx, userID, postID)
}

func (s *PostService) like(ctx context.Context, userID uint, post *models.Post) error {
	created, err := s.engagement.Like(ctx, userID, post.ID)
	if err != nil {
		return err
	}
	if created {
		observability.EngagementActions.WithLabelValues("like").Inc()
		s.notify(ctx, post.AuthorID, models.NotificationLike, userID, post.ID)
	}
	return nil
}

// ToggleBookmark flips the viewer's bookmark on the post.
func (s *PostService) ToggleBookmark(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.loadLive(ctx, userID, postID); err != nil {
		return nil, err
	}
	removed, err := s.engagement.RemoveBookmark(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.EngagementActions.WithLabelValues("unbookmark").Inc()
	} else {
		if _, err := s.engagement.AddBookmark(ctx, userID, postID); err != nil {
			return nil, err
		}
		observability.EngagementActions.WithLabelValues("bookmark").Inc()
	}
	return s.detail(ctx, userID, postID)
}

// EditPost replaces the content of the actor's own post. Existence is checked
// before ownership, and ownership before deletion state.
func (s *PostService) EditPost(ctx context.Context, in EditPostInput) (*models.Post, error) {
	post, err := s.authorize(ctx, in.ActorID, in.PostID)
	if err != nil {
		return nil, err
	}

	content := normalizeBody(in.Content)
	if err := validateContentLength(content); err != nil {
		return nil, err
	}
	if content == nil && models.IsBlank(post.ImageURL) {
		return nil, models.NewValidationError("Post must have content or an image")
	}

	var tags []string
	if content != nil {
		tags = hashtags.Extract(*content)
	}
	if err := s.posts.UpdateContent(ctx, post.ID, content, tags); err != nil {
		return nil, err
	}
	cache.InvalidateTrending(ctx)
	return s.detail(ctx, in.ActorID, post.ID)
}

// DeletePost soft-deletes the actor's own post. Echoes, replies and
// engagement rows are left in place.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	if _, err := s.authorize(ctx, actorID, postID); err != nil {
		return err
	}
	if err := s.posts.SoftDelete(ctx, postID); err != nil {
		return err
	}
	cache.InvalidateTrending(ctx)
	return nil
}

// FindEchoRoot follows echo parents from postID to the deepest ancestor the
// viewer can see, giving up after MaxEchoDepth hops. Deleted and unpublished
// ancestors end the walk.
func (s *PostService) FindEchoRoot(ctx context.Context, viewerID, postID uint) (*EchoRoot, error) {
	span, ctx := observability.StartServiceSpan(ctx, "FindEchoRoot", attribute.Int64("post.id", int64(postID)))
	defer span.End()

	current, err := s.loadLive(ctx, viewerID, postID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	hops := 0
	for current.EchoParentID != nil && hops < MaxEchoDepth {
		parent, err := s.loadLive(ctx, viewerID, *current.EchoParentID)
		if models.IsCode(err, models.CodeNotFound) {
			break
		}
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		current = parent
		hops++
	}

	root, err := s.detail(ctx, viewerID, current.ID)
	if err != nil {
		return nil, err
	}
	return &EchoRoot{Root: root, Hops: hops}, nil
}

func (s *PostService) authorize(ctx context.Context, actorID, postID uint) (*models.Post, error) {
	post, err := s.posts.GetUnscoped(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, models.NewForbiddenError("You can only modify your own posts")
	}
	if post.DeletedAt.Valid {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// loadLive returns a post the viewer may see or act on.
func (s *PostService) loadLive(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	return visiblePost(ctx, s.posts, viewerID, postID, s.now())
}

// visiblePost loads a post that is not deleted and, unless viewerID wrote it,
// already published. Anything else is reported as NotFound.
func visiblePost(ctx context.Context, posts repository.PostRepository, viewerID, postID uint, now time.Time) (*models.Post, error) {
	post, err := posts.GetUnscoped(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.DeletedAt.Valid || (post.AuthorID != viewerID && !post.IsPublished(now)) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

func (s *PostService) detail(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, postID, repository.ListOptions{ViewerID: viewerID, CommentLimit: CommentPrefixLimit})
}

func (s *PostService) notify(ctx context.Context, recipientID uint, typ models.NotificationType, actorID, postID uint) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, NotifyInput{UserID: recipientID, Type: typ, ActorID: actorID, PostID: &postID})
}

// normalizeBody maps blank strings to nil.
func normalizeBody(s *string) *string {
	if models.IsBlank(s) {
		return nil
	}
	return s
}

func validateContentLength(content *string) error {
	if content != nil && utf8.RuneCountInString(strings.TrimSpace(*content)) > models.MaxPostContentLength {
		return models.NewValidationError("Content too long (max 2000 characters)")
	}
	return nil
}
