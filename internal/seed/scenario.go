package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"echoes/internal/models"

	"gopkg.in/yaml.v3"
)

// Scenario is a hand-written data set replayed by Seeder.Apply. Users are
// referenced by handle and posts by key.
type Scenario struct {
	Users     []ScenarioUser    `yaml:"users"`
	Follows   []ScenarioFollow  `yaml:"follows"`
	Posts     []ScenarioPost    `yaml:"posts"`
	Likes     []ScenarioEngage  `yaml:"likes"`
	Bookmarks []ScenarioEngage  `yaml:"bookmarks"`
	Comments  []ScenarioComment `yaml:"comments"`
}

type ScenarioUser struct {
	Handle   string `yaml:"handle"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Bio      string `yaml:"bio"`
}

type ScenarioFollow struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	// Pending leaves the request unanswered instead of accepting it.
	Pending bool `yaml:"pending"`
}

type ScenarioPost struct {
	Key     string `yaml:"key"`
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
	Image   string `yaml:"image"`
	EchoOf  string `yaml:"echo_of"`
	ReplyTo string `yaml:"reply_to"`
	// Age and ScheduledIn are Go durations relative to now; at most one is set.
	Age         string `yaml:"age"`
	ScheduledIn string `yaml:"scheduled_in"`
}

type ScenarioEngage struct {
	User string `yaml:"user"`
	Post string `yaml:"post"`
}

type ScenarioComment struct {
	User    string `yaml:"user"`
	Post    string `yaml:"post"`
	Content string `yaml:"content"`
}

// ScenarioResult maps handles and keys to the created rows.
type ScenarioResult struct {
	Users map[string]*models.User
	Posts map[string]*models.Post
}

// LoadScenario decodes a YAML scenario. Unknown fields are rejected.
func LoadScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return &sc, nil
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenarioFile reads a scenario from path.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path) // #nosec G304: operator-supplied seed file
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadScenario(f)
}

// Validate checks that every reference resolves to a declared user or an
// earlier post.
func (sc *Scenario) Validate() error {
	users := make(map[string]bool, len(sc.Users))
	for _, u := range sc.Users {
		if u.Handle == "" {
			return errors.New("scenario user without handle")
		}
		if users[u.Handle] {
			return fmt.Errorf("duplicate user handle %q", u.Handle)
		}
		users[u.Handle] = true
	}
	needUser := func(where, handle string) error {
		if !users[handle] {
			return fmt.Errorf("%s: unknown user %q", where, handle)
		}
		return nil
	}

	for _, f := range sc.Follows {
		if err := needUser("follow", f.From); err != nil {
			return err
		}
		if err := needUser("follow", f.To); err != nil {
			return err
		}
		if f.From == f.To {
			return fmt.Errorf("follow: %q cannot follow themselves", f.From)
		}
	}

	posts := make(map[string]bool, len(sc.Posts))
	for _, p := range sc.Posts {
		if p.Key == "" {
			return errors.New("scenario post without key")
		}
		if posts[p.Key] {
			return fmt.Errorf("duplicate post key %q", p.Key)
		}
		if err := needUser("post "+p.Key, p.Author); err != nil {
			return err
		}
		if p.EchoOf != "" && p.ReplyTo != "" {
			return fmt.Errorf("post %s: echo_of and reply_to are exclusive", p.Key)
		}
		for _, parent := range []string{p.EchoOf, p.ReplyTo} {
			if parent != "" && !posts[parent] {
				return fmt.Errorf("post %s: parent %q must be declared earlier", p.Key, parent)
			}
		}
		if p.Age != "" && p.ScheduledIn != "" {
			return fmt.Errorf("post %s: age and scheduled_in are exclusive", p.Key)
		}
		for _, d := range []string{p.Age, p.ScheduledIn} {
			if d == "" {
				continue
			}
			if _, err := time.ParseDuration(d); err != nil {
				return fmt.Errorf("post %s: %w", p.Key, err)
			}
		}
		if p.EchoOf == "" && strings.TrimSpace(p.Content) == "" && p.Image == "" {
			return fmt.Errorf("post %s: content or image is required", p.Key)
		}
		posts[p.Key] = true
	}

	checkEngage := func(kind string, list []ScenarioEngage) error {
		for _, e := range list {
			if err := needUser(kind, e.User); err != nil {
				return err
			}
			if !posts[e.Post] {
				return fmt.Errorf("%s: unknown post %q", kind, e.Post)
			}
		}
		return nil
	}
	if err := checkEngage("like", sc.Likes); err != nil {
		return err
	}
	if err := checkEngage("bookmark", sc.Bookmarks); err != nil {
		return err
	}
	for _, c := range sc.Comments {
		if err := needUser("comment", c.User); err != nil {
			return err
		}
		if !posts[c.Post] {
			return fmt.Errorf("comment: unknown post %q", c.Post)
		}
	}
	return nil
}

// Apply replays sc in declaration order: users, follows, posts, then engagement.
func (s *Seeder) Apply(ctx context.Context, sc *Scenario) (*ScenarioResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if s.opts.Clean && !s.opts.DryRun {
		if err := ClearData(s.db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	res := &ScenarioResult{
		Users: make(map[string]*models.User, len(sc.Users)),
		Posts: make(map[string]*models.Post, len(sc.Posts)),
	}

	for _, u := range sc.Users {
		user, err := s.factory.CreateUser(ctx, u.Password, func(m *models.User) {
			if u.Name != "" {
				m.Name = u.Name
			}
			m.Email = u.Email
			if m.Email == "" {
				m.Email = u.Handle + "@example.com"
			}
			if u.Bio != "" {
				m.Bio = u.Bio
			}
		})
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", u.Handle, err)
		}
		res.Users[u.Handle] = user
	}

	for _, f := range sc.Follows {
		from, to := res.Users[f.From], res.Users[f.To]
		var err error
		if f.Pending {
			_, err = s.factory.RequestFollow(ctx, from.ID, to.ID)
		} else {
			err = s.factory.Follow(ctx, from.ID, to.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("follow %s->%s: %w", f.From, f.To, err)
		}
	}

	now := time.Now().UTC()
	for _, p := range sc.Posts {
		post := &models.Post{AuthorID: res.Users[p.Author].ID, PublishedAt: now}
		if content := strings.TrimSpace(p.Content); content != "" {
			post.Content = &content
		}
		if p.Image != "" {
			image := p.Image
			post.ImageURL = &image
		}
		if p.EchoOf != "" {
			post.EchoParentID = &res.Posts[p.EchoOf].ID
		}
		if p.ReplyTo != "" {
			post.ReplyToID = &res.Posts[p.ReplyTo].ID
		}
		if p.Age != "" {
			age, _ := time.ParseDuration(p.Age)
			post.PublishedAt = now.Add(-age)
		}
		if p.ScheduledIn != "" {
			in, _ := time.ParseDuration(p.ScheduledIn)
			at := now.Add(in)
			post.PublishedAt = at
			post.ScheduledAt = &at
		}
		if err := s.factory.CreatePost(ctx, post); err != nil {
			return nil, fmt.Errorf("post %s: %w", p.Key, err)
		}
		res.Posts[p.Key] = post
	}

	for _, l := range sc.Likes {
		if _, err := s.factory.Like(ctx, res.Users[l.User].ID, res.Posts[l.Post].ID); err != nil {
			return nil, fmt.Errorf("like %s/%s: %w", l.User, l.Post, err)
		}
	}
	for _, b := range sc.Bookmarks {
		if _, err := s.factory.Bookmark(ctx, res.Users[b.User].ID, res.Posts[b.Post].ID); err != nil {
			return nil, fmt.Errorf("bookmark %s/%s: %w", b.User, b.Post, err)
		}
	}
	for _, c := range sc.Comments {
		if _, err := s.factory.CreateComment(ctx, res.Users[c.User].ID, res.Posts[c.Post].ID, c.Content); err != nil {
			return nil, fmt.Errorf("comment %s/%s: %w", c.User, c.Post, err)
		}
	}
	return res, nil
}
