package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaxPostContentLength bounds post and comment bodies, counted in runes.
const MaxPostContentLength = 2000

// PostCounts holds aggregate counts computed at query time.
type PostCounts struct {
	Likes    int64 `gorm:"column:likes_count;->;-:migration" json:"likes"`
	Echoes   int64 `gorm:"column:echoes_count;->;-:migration" json:"echoes"`
	Comments int64 `gorm:"column:comments_count;->;-:migration" json:"comments"`
}

// Post is a plain post, an echo (EchoParentID set) or a reply (ReplyToID set).
type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AuthorID     uint       `gorm:"not null;index" json:"author_id"`
	Author       *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content      *string    `gorm:"type:text" json:"content"`
	ImageURL     *string    `gorm:"column:image_url" json:"image_url"`
	PublishedAt  time.Time  `gorm:"not null;index" json:"published_at"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	EchoParentID *uint      `gorm:"index" json:"echo_parent_id,omitempty"`
	EchoParent   *Post      `gorm:"foreignKey:EchoParentID" json:"echo_parent,omitempty"`
	ReplyToID    *uint      `gorm:"index" json:"reply_to_id,omitempty"`
	ReplyTo      *Post      `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	Hashtags     []Hashtag  `gorm:"many2many:post_hashtags;" json:"hashtags,omitempty"`

	Count      PostCounts `gorm:"embedded" json:"_count"`
	Liked      bool       `gorm:"->;-:migration" json:"liked"`
	Bookmarked bool       `gorm:"->;-:migration" json:"bookmarked"`
	// Filled by the repository after the main query.
	Comments    []Comment `gorm:"foreignKey:PostID" json:"comments"`
	LikeUserIDs []uint    `gorm:"-" json:"like_user_ids"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasBody reports whether the post carries text or an image.
func (p *Post) HasBody() bool {
	return !IsBlank(p.Content) || !IsBlank(p.ImageURL)
}

// IsPublished reports whether the post is visible at now.
func (p *Post) IsPublished(now time.Time) bool {
	return !p.PublishedAt.After(now)
}

// IsBlank reports whether s is nil or only whitespace.
func IsBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
