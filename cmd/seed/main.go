// Command seed fills the database with demo users, follows, posts and engagement.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"echoes/internal/bootstrap"
	"echoes/internal/config"
	"echoes/internal/middleware"
	"echoes/internal/seed"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Original posts per user")
	followRatio := flag.Float64("follow-ratio", defaults.FollowRatio, "Chance that a user follows another")
	pendingRatio := flag.Float64("pending-ratio", defaults.PendingRatio, "Chance of an unanswered follow request")
	maxDays := flag.Int("max-days", defaults.MaxDays, "Spread post timestamps over this many days")
	clean := flag.Bool("clean", false, "Delete existing data before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing to the database")
	fast := flag.Bool("fast", false, "Hash passwords at minimum bcrypt cost")
	scenarioPath := flag.String("scenario", "", "Replay a YAML scenario instead of generating a mesh")
	flag.Parse()

	opts := seed.Options{
		Users:        *numUsers,
		PostsPerUser: *postsPerUser,
		FollowRatio:  *followRatio,
		PendingRatio: *pendingRatio,
		MaxDays:      *maxDays,
		SkipBcrypt:   *fast,
		DryRun:       *dryRun,
		Clean:        *clean,
	}

	var scenario *seed.Scenario
	if *scenarioPath != "" {
		sc, err := seed.LoadScenarioFile(*scenarioPath)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		scenario = sc
	}

	ctx := context.Background()
	if opts.DryRun {
		return execute(ctx, seed.NewSeeder(nil, opts), scenario)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipGuest: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	return execute(ctx, seed.NewSeeder(rt.DB, opts), scenario)
}

func execute(ctx context.Context, s *seed.Seeder, scenario *seed.Scenario) error {
	if scenario != nil {
		res, err := s.Apply(ctx, scenario)
		if err != nil {
			return err
		}
		middleware.Logger.Info("scenario applied",
			slog.Int("users", len(res.Users)),
			slog.Int("posts", len(res.Posts)),
		)
		return nil
	}

	sum, err := s.Run(ctx)
	if err != nil {
		return err
	}
	middleware.Logger.Info("seed summary",
		slog.Int("users", sum.Users),
		slog.Int("follows", sum.Follows),
		slog.Int("pending", sum.Pending),
		slog.Int("posts", sum.Posts),
		slog.Int("echoes", sum.Echoes),
		slog.Int("replies", sum.Replies),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
		slog.Int("bookmarks", sum.Bookmarks),
		slog.String("password", seed.DefaultPassword),
	)
	return nil
}
