package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"echoes/internal/database"
	"echoes/internal/middleware"
	"echoes/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Users        int
	PostsPerUser int
	// FollowRatio is the chance that any ordered pair of users has an
	// accepted follow edge. PendingRatio applies to the remaining pairs.
	FollowRatio  float64
	PendingRatio float64
	MaxDays      int
	SkipBcrypt   bool
	DryRun       bool
	Clean        bool
	RandomSeed   int64
}

// DefaultOptions is a small mesh suitable for local development.
func DefaultOptions() Options {
	return Options{
		Users:        20,
		PostsPerUser: 5,
		FollowRatio:  0.3,
		PendingRatio: 0.1,
		MaxDays:      30,
	}
}

// Summary counts what a seeding run created.
type Summary struct {
	Users     int
	Follows   int
	Pending   int
	Posts     int
	Echoes    int
	Replies   int
	Comments  int
	Likes     int
	Bookmarks int
}

// Seeder generates a follow mesh with posts and engagement.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a Seeder. db may be nil when opts.DryRun is set.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// Run populates the database according to the seeder options.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	middleware.Logger.Info("starting database seeding",
		slog.Int("users", s.opts.Users),
		slog.Int("posts_per_user", s.opts.PostsPerUser),
		slog.Bool("dry_run", s.opts.DryRun),
	)

	if s.opts.Clean && !s.opts.DryRun {
		if err := ClearData(s.db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	sum := &Summary{}
	users, err := s.seedUsers(ctx, sum)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	if err := s.seedFollowMesh(ctx, users, sum); err != nil {
		return nil, fmt.Errorf("failed to create follow mesh: %w", err)
	}
	posts, err := s.seedPosts(ctx, users, sum)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	if err := s.seedEngagement(ctx, users, posts, sum); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}

	middleware.Logger.Info("database seeding completed",
		slog.Int("users", sum.Users),
		slog.Int("follows", sum.Follows),
		slog.Int("posts", sum.Posts),
		slog.Int("likes", sum.Likes),
		slog.Duration("elapsed", time.Since(start)),
	)
	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context, sum *Summary) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		user, err := s.factory.CreateUser(ctx, "")
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	sum.Users = len(users)
	return users, nil
}

func (s *Seeder) seedFollowMesh(ctx context.Context, users []*models.User, sum *Summary) error {
	faker := s.factory.faker
	for _, from := range users {
		for _, to := range users {
			if from.ID == to.ID {
				continue
			}
			roll := faker.Float64()
			switch {
			case roll < s.opts.FollowRatio:
				if err := s.factory.Follow(ctx, from.ID, to.ID); err != nil {
					return err
				}
				sum.Follows++
			case roll < s.opts.FollowRatio+s.opts.PendingRatio:
				if _, err := s.factory.RequestFollow(ctx, from.ID, to.ID); err != nil {
					return err
				}
				sum.Pending++
			}
		}
	}
	return nil
}

// seedPosts creates originals first, then echoes and replies that point at them.
func (s *Seeder) seedPosts(ctx context.Context, users []*models.User, sum *Summary) ([]*models.Post, error) {
	faker := s.factory.faker
	posts := make([]*models.Post, 0, len(users)*s.opts.PostsPerUser)

	for _, user := range users {
		for i := 0; i < s.opts.PostsPerUser; i++ {
			content := s.factory.BuildContent()
			post := &models.Post{AuthorID: user.ID, Content: &content}
			if faker.Float64() < 0.25 {
				image := fmt.Sprintf("https://picsum.photos/seed/%s/800/800", faker.UUID())
				post.ImageURL = &image
			}
			if faker.Float64() < 0.05 {
				at := time.Now().UTC().Add(time.Duration(faker.Number(1, 72)) * time.Hour)
				post.PublishedAt = at
				post.ScheduledAt = &at
			}
			if err := s.factory.CreatePost(ctx, post); err != nil {
				return nil, err
			}
			posts = append(posts, post)
			sum.Posts++
		}
	}

	originals := len(posts)
	if originals == 0 {
		return posts, nil
	}
	for _, user := range users {
		if faker.Bool() {
			parent := posts[faker.Number(0, originals-1)]
			echo := &models.Post{AuthorID: user.ID, EchoParentID: &parent.ID, PublishedAt: laterThan(parent.PublishedAt)}
			if faker.Bool() {
				quote := faker.Sentence(6)
				echo.Content = &quote
			}
			if err := s.factory.CreatePost(ctx, echo); err != nil {
				return nil, err
			}
			posts = append(posts, echo)
			sum.Echoes++
		}
		if faker.Bool() {
			parent := posts[faker.Number(0, originals-1)]
			body := faker.Sentence(faker.Number(3, 12))
			reply := &models.Post{AuthorID: user.ID, ReplyToID: &parent.ID, Content: &body, PublishedAt: laterThan(parent.PublishedAt)}
			if err := s.factory.CreatePost(ctx, reply); err != nil {
				return nil, err
			}
			posts = append(posts, reply)
			sum.Replies++
		}
	}
	return posts, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []*models.User, posts []*models.Post, sum *Summary) error {
	if len(posts) == 0 {
		return nil
	}
	faker := s.factory.faker
	for _, user := range users {
		for n := faker.Number(0, 8); n > 0; n-- {
			post := posts[faker.Number(0, len(posts)-1)]
			created, err := s.factory.Like(ctx, user.ID, post.ID)
			if err != nil {
				return err
			}
			if created {
				sum.Likes++
			}
		}
		for n := faker.Number(0, 3); n > 0; n-- {
			post := posts[faker.Number(0, len(posts)-1)]
			if _, err := s.factory.CreateComment(ctx, user.ID, post.ID, ""); err != nil {
				return err
			}
			sum.Comments++
		}
		for n := faker.Number(0, 2); n > 0; n-- {
			post := posts[faker.Number(0, len(posts)-1)]
			created, err := s.factory.Bookmark(ctx, user.ID, post.ID)
			if err != nil {
				return err
			}
			if created {
				sum.Bookmarks++
			}
		}
	}
	return nil
}

// laterThan keeps derived posts after their parent without leaving the past.
func laterThan(parent time.Time) time.Time {
	now := time.Now().UTC()
	if parent.After(now) {
		return parent.Add(time.Minute)
	}
	return parent.Add(now.Sub(parent) / 2)
}

// ClearData removes every row from the application tables.
func ClearData(db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE notifications, bookmarks, likes, comments, post_hashtags, posts,
			hashtags, follow_requests, follows, users RESTART IDENTITY CASCADE`).Error
	}

	if err := db.Exec("DELETE FROM post_hashtags").Error; err != nil {
		return err
	}
	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
