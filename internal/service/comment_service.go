package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"echoes/internal/models"
	"echoes/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	notifier    Notifier
	now         func() time.Time
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifier Notifier,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxPostContentLength {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}

	post, err := visiblePost(ctx, s.postRepo, in.UserID, in.PostID, s.now())
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content:  content,
		AuthorID: in.UserID,
		PostID:   in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		postID := post.ID
		s.notifier.Notify(ctx, NotifyInput{
			UserID:  post.AuthorID,
			Type:    models.NotificationComment,
			ActorID: in.UserID,
			PostID:  &postID,
		})
	}
	return comment, nil
}

// ListComments returns every comment on a post visible to the viewer, oldest first.
func (s *CommentService) ListComments(ctx context.Context, viewerID, postID uint) ([]models.Comment, error) {
	if _, err := visiblePost(ctx, s.postRepo, viewerID, postID, s.now()); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}
