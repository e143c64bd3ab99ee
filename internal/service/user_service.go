package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"echoes/internal/cache"
	"echoes/internal/models"
	"echoes/internal/repository"
	"echoes/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	MaxBioLength     = 500
	MinNameLength    = 2
	MaxProfilePosts  = 50
	DefaultGuestName = "Guest"
)

// GuestConfig is the shared guest account. It is disabled when Email is empty.
type GuestConfig struct {
	Email    string
	Password string
	Name     string
}

func (g GuestConfig) Enabled() bool {
	return g.Email != "" && g.Password != ""
}

type UserService struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	guest      GuestConfig
	bcryptCost int
	now        func() time.Time
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// Profile is a user together with the posts the viewer may see.
type Profile struct {
	User  models.PublicProfile `json:"user"`
	Posts []*models.Post       `json:"posts"`
}

func NewUserService(userRepo repository.UserRepository, postRepo repository.PostRepository, guest GuestConfig) *UserService {
	return &UserService{
		userRepo:   userRepo,
		postRepo:   postRepo,
		guest:      guest,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return nil, models.NewValidationError("Email, password and name are required")
	}
	if utf8.RuneCountInString(name) < MinNameLength {
		return nil, models.NewValidationError("Name must be at least 2 characters")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		AvatarURL:    GravatarURL(email),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return nil, models.NewConflictError("Email already exists")
		}
		return nil, err
	}
	return user, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

// GuestLogin signs in as the shared guest account, creating it on first use.
func (s *UserService) GuestLogin(ctx context.Context) (*models.User, error) {
	if !s.guest.Enabled() {
		return nil, models.NewUnauthorizedError("Guest login is not available")
	}
	return s.EnsureGuest(ctx)
}

// EnsureGuest returns the guest account, creating it if absent. Two racing
// creators settle on the unique email: the loser re-reads the winner's row.
func (s *UserService) EnsureGuest(ctx context.Context) (*models.User, error) {
	if !s.guest.Enabled() {
		return nil, nil
	}
	email := strings.ToLower(s.guest.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil || user != nil {
		return user, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.guest.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	name := s.guest.Name
	if name == "" {
		name = DefaultGuestName
	}
	user = &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		AvatarURL:    GravatarURL(email),
		IsGuest:      true,
	}
	createErr := s.userRepo.Create(ctx, user)
	if createErr == nil {
		return user, nil
	}
	if !models.IsCode(createErr, models.CodeConflict) {
		return nil, createErr
	}

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewInternalError(fmt.Errorf("guest account vanished after conflict: %w", createErr))
	}
	return user, nil
}

// GetUser reads through the user cache. Cached copies never carry the
// password hash, so callers that verify credentials use the repository.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile returns the user's public profile and their published posts.
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID uint) (*Profile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, userID, repository.ListOptions{
		ViewerID:     viewerID,
		Now:          s.now(),
		Limit:        MaxProfilePosts,
		CommentLimit: CommentPrefixLimit,
	})
	if err != nil {
		return nil, err
	}
	return &Profile{User: user.Profile(), Posts: posts}, nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, avatarURL string) (*models.User, error) {
	avatarURL = strings.TrimSpace(avatarURL)
	if avatarURL == "" {
		return nil, models.NewValidationError("avatarUrl is required")
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, map[string]interface{}{"avatar_url": avatarURL}); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, userID)
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) UpdateBio(ctx context.Context, userID uint, bio string) (*models.User, error) {
	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, models.NewValidationError("Bio too long (max 500 characters)")
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, map[string]interface{}{"bio": bio}); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, userID)
	return s.userRepo.GetByID(ctx, userID)
}

// GravatarURL returns the identicon avatar for email.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}
