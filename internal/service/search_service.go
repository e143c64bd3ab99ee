package service

import (
	"context"
	"strings"
	"time"

	"echoes/internal/cache"
	"echoes/internal/hashtags"
	"echoes/internal/models"
	"echoes/internal/repository"
)

const (
	MaxSearchPosts     = 50
	MaxSearchUsers     = 20
	MaxTrendingTags    = 10
	MaxPostsPerHashtag = 50
)

type SearchService struct {
	posts    repository.PostRepository
	users    repository.UserRepository
	hashtags repository.HashtagRepository
	now      func() time.Time
}

func NewSearchService(
	posts repository.PostRepository,
	users repository.UserRepository,
	tags repository.HashtagRepository,
) *SearchService {
	return &SearchService{
		posts:    posts,
		users:    users,
		hashtags: tags,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SearchPosts matches query anywhere in visible post content. A blank query
// matches nothing.
func (s *SearchService) SearchPosts(ctx context.Context, viewerID uint, query string) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.Post{}, nil
	}
	return s.posts.Search(ctx, query, repository.ListOptions{
		ViewerID:     viewerID,
		Now:          s.now(),
		Limit:        MaxSearchPosts,
		CommentLimit: CommentPrefixLimit,
	})
}

// SearchUsers matches query against name, username and bio.
func (s *SearchService) SearchUsers(ctx context.Context, query string) ([]models.PublicProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PublicProfile{}, nil
	}
	users, err := s.users.Search(ctx, query, MaxSearchUsers)
	if err != nil {
		return nil, err
	}
	return profiles(users), nil
}

// TrendingHashtags is cached briefly; post writes that touch hashtags
// invalidate it.
func (s *SearchService) TrendingHashtags(ctx context.Context) ([]models.TrendingHashtag, error) {
	trending := []models.TrendingHashtag{}
	err := cache.Aside(ctx, cache.TrendingKey, &trending, cache.TrendingTTL, func() error {
		var err error
		trending, err = s.hashtags.Trending(ctx, s.now(), MaxTrendingTags)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trending, nil
}

// PostsByHashtag lists visible posts carrying tag. A leading '#' and case
// are ignored.
func (s *SearchService) PostsByHashtag(ctx context.Context, viewerID uint, tag string) ([]*models.Post, error) {
	tag = hashtags.Normalize(tag)
	if tag == "" {
		return []*models.Post{}, nil
	}
	return s.posts.ListByHashtag(ctx, tag, repository.ListOptions{
		ViewerID:     viewerID,
		Now:          s.now(),
		Limit:        MaxPostsPerHashtag,
		CommentLimit: CommentPrefixLimit,
	})
}
