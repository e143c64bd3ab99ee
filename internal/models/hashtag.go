package models

import "time"

// Hashtag is a lower-cased tag linked to posts through post_hashtags.
type Hashtag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Tag       string    `gorm:"uniqueIndex;not null;size:64" json:"tag"`
	CreatedAt time.Time `json:"-"`
}

// TrendingHashtag is a tag with the number of visible posts carrying it.
type TrendingHashtag struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
