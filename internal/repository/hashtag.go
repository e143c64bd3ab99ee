package repository

import (
	"context"
	"time"

	"echoes/internal/models"

	"gorm.io/gorm"
)

// HashtagRepository reads the hashtag index.
type HashtagRepository interface {
	Trending(ctx context.Context, now time.Time, limit int) ([]models.TrendingHashtag, error)
}

type hashtagRepository struct {
	db *gorm.DB
}

// NewHashtagRepository creates a new hashtag repository
func NewHashtagRepository(db *gorm.DB) HashtagRepository {
	return &hashtagRepository{db: db}
}

// Trending ranks tags by the number of visible posts carrying them. Ties are
// broken alphabetically.
func (r *hashtagRepository) Trending(ctx context.Context, now time.Time, limit int) ([]models.TrendingHashtag, error) {
	out := []models.TrendingHashtag{}
	err := readDB(r.db).WithContext(ctx).
		Table("hashtags").
		Select("hashtags.tag AS tag, COUNT(posts.id) AS count").
		Joins("JOIN post_hashtags ON post_hashtags.hashtag_id = hashtags.id").
		Joins("JOIN posts ON posts.id = post_hashtags.post_id").
		Where("posts.deleted_at IS NULL AND posts.published_at <= ?", now).
		Group("hashtags.tag").
		Order("COUNT(posts.id) DESC, hashtags.tag ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
