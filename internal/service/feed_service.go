package service

import (
	"context"
	"time"

	"echoes/internal/models"
	"echoes/internal/observability"
	"echoes/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultFeedTake = 20
	MaxFeedTake     = 100
)

// FeedService assembles home feeds on read from the follow graph.
type FeedService struct {
	follows repository.FollowRepository
	posts   repository.PostRepository
	now     func() time.Time
}

func NewFeedService(follows repository.FollowRepository, posts repository.PostRepository) *FeedService {
	return &FeedService{
		follows: follows,
		posts:   posts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetFeed returns published, live posts by the viewer and everyone they
// follow, newest first. take defaults to DefaultFeedTake and is clamped to
// [1, MaxFeedTake]; a negative skip is treated as zero.
func (s *FeedService) GetFeed(ctx context.Context, viewerID uint, skip, take int) ([]*models.Post, error) {
	span, ctx := observability.StartServiceSpan(ctx, "GetFeed", attribute.Int64("user.id", int64(viewerID)))
	defer span.End()

	following, err := s.follows.FollowingIDs(ctx, viewerID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	authors := append([]uint{viewerID}, following...)

	posts, err := s.posts.Feed(ctx, authors, repository.ListOptions{
		ViewerID:     viewerID,
		Now:          s.now(),
		Offset:       clampSkip(skip),
		Limit:        clampTake(take),
		CommentLimit: CommentPrefixLimit,
	})
	span.SetError(err)
	return posts, err
}

func clampTake(take int) int {
	switch {
	case take == 0:
		return DefaultFeedTake
	case take < 1:
		return 1
	case take > MaxFeedTake:
		return MaxFeedTake
	}
	return take
}

func clampSkip(skip int) int {
	if skip < 0 {
		return 0
	}
	return skip
}
