// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"echoes/internal/hashtags"
	"echoes/internal/middleware"
	"echoes/internal/models"
	"echoes/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

var seedTopics = []string{
	"golang", "music", "coffee", "travel", "books", "running",
	"photography", "cooking", "gaming", "design", "startups", "echoes",
}

// Factory builds domain entities and persists them through the repositories.
type Factory struct {
	opts  Options
	faker *gofakeit.Faker

	users      repository.UserRepository
	posts      repository.PostRepository
	comments   repository.CommentRepository
	engagement repository.EngagementRepository
	follows    repository.FollowRepository

	passwordHash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Factory{
		opts:   opts,
		faker:  gofakeit.New(seed),
		nextID: 1000,
	}
	if db != nil {
		f.users = repository.NewUserRepository(db)
		f.posts = repository.NewPostRepository(db)
		f.comments = repository.NewCommentRepository(db)
		f.engagement = repository.NewEngagementRepository(db)
		f.follows = repository.NewFollowRepository(db)
	}
	return f
}

func (f *Factory) syntheticID() uint {
	f.nextID++
	return f.nextID
}

func (f *Factory) hashPassword(password string) (string, error) {
	if password == DefaultPassword && f.passwordHash != "" {
		return f.passwordHash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	if password == DefaultPassword {
		f.passwordHash = string(hash)
	}
	return string(hash), nil
}

// BuildUser returns an unsaved user with fake profile data.
func (f *Factory) BuildUser() *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	handle := strings.ToLower(first+last) + fmt.Sprintf("%d", f.faker.Number(100, 9999))
	return &models.User{
		Email:     handle + "@example.com",
		Name:      first + " " + last,
		Bio:       f.faker.Sentence(8),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", handle),
	}
}

// CreateUser persists a fake user. Overrides run before saving; the password
// defaults to DefaultPassword.
func (f *Factory) CreateUser(ctx context.Context, password string, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser()
	for _, override := range overrides {
		override(user)
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if password == "" {
		password = DefaultPassword
	}
	hash, err := f.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if f.opts.DryRun {
		user.ID = f.syntheticID()
		middleware.Logger.Debug("[dry-run] create user", "email", user.Email)
		return user, nil
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildContent returns a fake post body that carries one or two hashtags.
func (f *Factory) BuildContent() string {
	tags := []string{f.faker.RandomString(seedTopics)}
	if f.faker.Bool() {
		tags = append(tags, f.faker.RandomString(seedTopics))
	}
	var sb strings.Builder
	sb.WriteString(f.faker.Sentence(f.faker.Number(4, 18)))
	for _, tag := range tags {
		sb.WriteString(" #")
		sb.WriteString(tag)
	}
	return sb.String()
}

// PublishedAtSpread returns a publication time within the last MaxDays days.
func (f *Factory) PublishedAtSpread() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-back)
}

// CreatePost persists post and links the hashtags found in its content.
// A zero PublishedAt is replaced by a spread timestamp.
func (f *Factory) CreatePost(ctx context.Context, post *models.Post) error {
	if post.PublishedAt.IsZero() {
		post.PublishedAt = f.PublishedAtSpread()
	}
	var tags []string
	if post.Content != nil {
		tags = hashtags.Extract(*post.Content)
	}

	if f.opts.DryRun {
		post.ID = f.syntheticID()
		middleware.Logger.Debug("[dry-run] create post", "author_id", post.AuthorID, "tags", tags)
		return nil
	}
	return f.posts.Create(ctx, post, tags)
}

// CreateComment persists a comment by author on postID. Empty content is faked.
func (f *Factory) CreateComment(ctx context.Context, authorID, postID uint, content string) (*models.Comment, error) {
	if content == "" {
		content = f.faker.Sentence(f.faker.Number(3, 10))
	}
	comment := &models.Comment{AuthorID: authorID, PostID: postID, Content: content}
	if f.opts.DryRun {
		comment.ID = f.syntheticID()
		return comment, nil
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Like records a like and reports whether it was new.
func (f *Factory) Like(ctx context.Context, userID, postID uint) (bool, error) {
	if f.opts.DryRun {
		return true, nil
	}
	return f.engagement.Like(ctx, userID, postID)
}

// Bookmark records a bookmark and reports whether it was new.
func (f *Factory) Bookmark(ctx context.Context, userID, postID uint) (bool, error) {
	if f.opts.DryRun {
		return true, nil
	}
	return f.engagement.AddBookmark(ctx, userID, postID)
}

// RequestFollow leaves a pending follow request from requester to target.
func (f *Factory) RequestFollow(ctx context.Context, requesterID, targetID uint) (*models.FollowRequest, error) {
	if f.opts.DryRun {
		return &models.FollowRequest{
			ID:          f.syntheticID(),
			RequesterID: requesterID,
			TargetID:    targetID,
			Status:      models.FollowRequestPending,
		}, nil
	}
	return f.follows.UpsertRequest(ctx, requesterID, targetID)
}

// Follow creates an accepted request and the matching follow edge.
func (f *Factory) Follow(ctx context.Context, followerID, followingID uint) error {
	req, err := f.RequestFollow(ctx, followerID, followingID)
	if err != nil {
		return err
	}
	if f.opts.DryRun {
		req.Status = models.FollowRequestAccepted
		return nil
	}
	_, err = f.follows.Accept(ctx, req)
	return err
}
