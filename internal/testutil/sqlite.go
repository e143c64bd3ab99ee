// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"echoes/internal/database"
	"echoes/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection because every :memory: connection
// would otherwise see its own empty database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := database.GormConfig()
	cfg.Logger = logger.Discard
	dsn := fmt.Sprintf("file:echoes_test_%d?mode=memory&cache=shared&_foreign_keys=1", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user named name with email <name>@example.com.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        name + "@example.com",
		PasswordHash: "x",
		Name:         name,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// PostOption customizes a fixture post.
type PostOption func(*models.Post)

// PublishedAt sets the publication time.
func PublishedAt(at time.Time) PostOption {
	return func(p *models.Post) { p.PublishedAt = at.UTC() }
}

// EchoOf makes the post an echo of parentID.
func EchoOf(parentID uint) PostOption {
	return func(p *models.Post) { p.EchoParentID = &parentID }
}

// ReplyTo makes the post a reply to parentID.
func ReplyTo(parentID uint) PostOption {
	return func(p *models.Post) { p.ReplyToID = &parentID }
}

// CreatePost inserts a post by authorID. It is published one minute ago unless
// PublishedAt says otherwise.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, content string, opts ...PostOption) *models.Post {
	t.Helper()
	post := &models.Post{
		AuthorID:    authorID,
		PublishedAt: time.Now().UTC().Add(-time.Minute),
	}
	if content != "" {
		post.Content = &content
	}
	for _, opt := range opts {
		opt(post)
	}
	require.NoError(t, db.Omit("Hashtags", "Comments").Create(post).Error)
	return post
}

// Follow inserts an accepted follow edge.
func Follow(t testing.TB, db *gorm.DB, followerID, followingID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error)
}
