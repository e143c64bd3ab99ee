package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echoes/internal/models"
	"echoes/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post, []string) error
	getByIDFn        func(context.Context, uint, repository.ListOptions) (*models.Post, error)
	getUnscopedFn    func(context.Context, uint) (*models.Post, error)
	feedFn           func(context.Context, []uint, repository.ListOptions) ([]*models.Post, error)
	listRepliesFn    func(context.Context, uint, repository.ListOptions) ([]*models.Post, error)
	listByAuthorFn   func(context.Context, uint, repository.ListOptions) ([]*models.Post, error)
	searchFn         func(context.Context, string, repository.ListOptions) ([]*models.Post, error)
	listByHashtagFn  func(context.Context, string, repository.ListOptions) ([]*models.Post, error)
	listBookmarkedFn func(context.Context, uint, repository.ListOptions) ([]*models.Post, error)
	updateContentFn  func(context.Context, uint, *string, []string) error
	softDeleteFn     func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post, tags []string) error {
	return s.createFn(ctx, post, tags)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint, opts repository.ListOptions) (*models.Post, error) {
	return s.getByIDFn(ctx, id, opts)
}
func (s *postRepoStub) GetUnscoped(ctx context.Context, id uint) (*models.Post, error) {
	return s.getUnscopedFn(ctx, id)
}
func (s *postRepoStub) Feed(ctx context.Context, authorIDs []uint, opts repository.ListOptions) ([]*models.Post, error) {
	return s.feedFn(ctx, authorIDs, opts)
}
func (s *postRepoStub) ListReplies(ctx context.Context, parentID uint, opts repository.ListOptions) ([]*models.Post, error) {
	return s.listRepliesFn(ctx, parentID, opts)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint, opts repository.ListOptions) ([]*models.Post, error) {
	return s.listByAuthorFn(ctx, authorID, opts)
}
func (s *postRepoStub) Search(ctx context.Context, query string, opts repository.ListOptions) ([]*models.Post, error) {
	return s.searchFn(ctx, query, opts)
}
func (s *postRepoStub) ListByHashtag(ctx context.Context, tag string, opts repository.ListOptions) ([]*models.Post, error) {
	return s.listByHashtagFn(ctx, tag, opts)
}
func (s *postRepoStub) ListBookmarked(ctx context.Context, userID uint, opts repository.ListOptions) ([]*models.Post, error) {
	return s.listBookmarkedFn(ctx, userID, opts)
}
func (s *postRepoStub) UpdateContent(ctx context.Context, id uint, content *string, tags []string) error {
	return s.updateContentFn(ctx, id, content, tags)
}
func (s *postRepoStub) SoftDelete(ctx context.Context, id uint) error {
	return s.softDeleteFn(ctx, id)
}

// noopPostRepo serves every id as a live post authored by user 1.
func noopPostRepo() *postRepoStub {
	livePost := func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1}, nil
	}
	noList := func() ([]*models.Post, error) { return []*models.Post{}, nil }
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post, _ []string) error {
			p.ID = 100
			return nil
		},
		getByIDFn: func(ctx context.Context, id uint, _ repository.ListOptions) (*models.Post, error) {
			return livePost(ctx, id)
		},
		getUnscopedFn:    livePost,
		feedFn:           func(_ context.Context, _ []uint, _ repository.ListOptions) ([]*models.Post, error) { return noList() },
		listRepliesFn:    func(_ context.Context, _ uint, _ repository.ListOptions) ([]*models.Post, error) { return noList() },
		listByAuthorFn:   func(_ context.Context, _ uint, _ repository.ListOptions) ([]*models.Post, error) { return noList() },
		searchFn:         func(_ context.Context, _ string, _ repository.ListOptions) ([]*models.Post, error) { return noList() },
		listByHashtagFn:  func(_ context.Context, _ string, _ repository.ListOptions) ([]*models.Post, error) { return noList() },
		listBookmarkedFn: func(_ context.Context, _ uint, _ repository.ListOptions) ([]*models.Post, error) { return noList() },
		updateContentFn:  func(_ context.Context, _ uint, _ *string, _ []string) error { return nil },
		softDeleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// engagementRepoStub keeps likes and bookmarks in memory.
type engagementRepoStub struct {
	mu        sync.Mutex
	likes     map[[2]uint]bool
	bookmarks map[[2]uint]bool
	err       error
}

func newEngagementRepo() *engagementRepoStub {
	return &engagementRepoStub{likes: map[[2]uint]bool{}, bookmarks: map[[2]uint]bool{}}
}

func (s *engagementRepoStub) set(m map[[2]uint]bool, userID, postID uint, on bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	key := [2]uint{userID, postID}
	if m[key] == on {
		return false, nil
	}
	if on {
		m[key] = true
	} else {
		delete(m, key)
	}
	return true, nil
}

func (s *engagementRepoStub) has(m map[[2]uint]bool, userID, postID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return m[[2]uint{userID, postID}]
}

func (s *engagementRepoStub) liked(userID, postID uint) bool {
	return s.has(s.likes, userID, postID)
}

func (s *engagementRepoStub) bookmarked(userID, postID uint) bool {
	return s.has(s.bookmarks, userID, postID)
}

func (s *engagementRepoStub) Like(_ context.Context, userID, postID uint) (bool, error) {
	return s.set(s.likes, userID, postID, true)
}
func (s *engagementRepoStub) Unlike(_ context.Context, userID, postID uint) (bool, error) {
	return s.set(s.likes, userID, postID, false)
}
func (s *engagementRepoStub) AddBookmark(_ context.Context, userID, postID uint) (bool, error) {
	return s.set(s.bookmarks, userID, postID, true)
}
func (s *engagementRepoStub) RemoveBookmark(_ context.Context, userID, postID uint) (bool, error) {
	return s.set(s.bookmarks, userID, postID, false)
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByPostFn func(context.Context, uint) ([]models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			c.ID = 7
			return nil
		},
		listByPostFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return []models.Comment{}, nil },
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	upsertRequestFn    func(context.Context, uint, uint) (*models.FollowRequest, error)
	getRequestFn       func(context.Context, uint) (*models.FollowRequest, error)
	acceptFn           func(context.Context, *models.FollowRequest) (bool, error)
	setStatusFn        func(context.Context, uint, models.FollowRequestStatus) error
	followingIDsFn     func(context.Context, uint) ([]uint, error)
	listFollowingFn    func(context.Context, uint) ([]models.User, error)
	listOutgoingFn     func(context.Context, uint, models.FollowRequestStatus) ([]models.FollowRequest, error)
	listIncomingFn     func(context.Context, uint, models.FollowRequestStatus) ([]models.FollowRequest, error)
	pendingTargetIDsFn func(context.Context, uint) ([]uint, error)
}

func (s *followRepoStub) UpsertRequest(ctx context.Context, requesterID, targetID uint) (*models.FollowRequest, error) {
	return s.upsertRequestFn(ctx, requesterID, targetID)
}
func (s *followRepoStub) GetRequest(ctx context.Context, id uint) (*models.FollowRequest, error) {
	return s.getRequestFn(ctx, id)
}
func (s *followRepoStub) Accept(ctx context.Context, req *models.FollowRequest) (bool, error) {
	return s.acceptFn(ctx, req)
}
func (s *followRepoStub) SetStatus(ctx context.Context, id uint, status models.FollowRequestStatus) error {
	return s.setStatusFn(ctx, id, status)
}
func (s *followRepoStub) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.followingIDsFn(ctx, userID)
}
func (s *followRepoStub) ListFollowing(ctx context.Context, userID uint) ([]models.User, error) {
	return s.listFollowingFn(ctx, userID)
}
func (s *followRepoStub) ListOutgoing(ctx context.Context, userID uint, status models.FollowRequestStatus) ([]models.FollowRequest, error) {
	return s.listOutgoingFn(ctx, userID, status)
}
func (s *followRepoStub) ListIncoming(ctx context.Context, userID uint, status models.FollowRequestStatus) ([]models.FollowRequest, error) {
	return s.listIncomingFn(ctx, userID, status)
}
func (s *followRepoStub) PendingTargetIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.pendingTargetIDsFn(ctx, userID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		upsertRequestFn: func(_ context.Context, requesterID, targetID uint) (*models.FollowRequest, error) {
			return &models.FollowRequest{ID: 1, RequesterID: requesterID, TargetID: targetID, Status: models.FollowRequestPending}, nil
		},
		getRequestFn: func(_ context.Context, id uint) (*models.FollowRequest, error) {
			return nil, models.NewNotFoundError("FollowRequest", id)
		},
		acceptFn: func(_ context.Context, req *models.FollowRequest) (bool, error) {
			transitioned := req.Status != models.FollowRequestAccepted
			req.Status = models.FollowRequestAccepted
			return transitioned, nil
		},
		setStatusFn:     func(_ context.Context, _ uint, _ models.FollowRequestStatus) error { return nil },
		followingIDsFn:  func(_ context.Context, _ uint) ([]uint, error) { return []uint{}, nil },
		listFollowingFn: func(_ context.Context, _ uint) ([]models.User, error) { return nil, nil },
		listOutgoingFn: func(_ context.Context, _ uint, _ models.FollowRequestStatus) ([]models.FollowRequest, error) {
			return nil, nil
		},
		listIncomingFn: func(_ context.Context, _ uint, _ models.FollowRequestStatus) ([]models.FollowRequest, error) {
			return nil, nil
		},
		pendingTargetIDsFn: func(_ context.Context, _ uint) ([]uint, error) { return []uint{}, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateProfileFn func(context.Context, uint, map[string]interface{}) error
	listExceptFn    func(context.Context, uint) ([]models.User, error)
	searchFn        func(context.Context, string, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) error {
	return s.updateProfileFn(ctx, id, updates)
}
func (s *userRepoStub) ListExcept(ctx context.Context, viewerID uint) ([]models.User, error) {
	return s.listExceptFn(ctx, viewerID)
}
func (s *userRepoStub) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	return s.searchFn(ctx, query, limit)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "user"}, nil
		},
		getByEmailFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateProfileFn: func(_ context.Context, _ uint, _ map[string]interface{}) error { return nil },
		listExceptFn:    func(_ context.Context, _ uint) ([]models.User, error) { return nil, nil },
		searchFn:        func(_ context.Context, _ string, _ int) ([]models.User, error) { return nil, nil },
	}
}

type hashtagRepoStub struct {
	trendingFn func(context.Context, time.Time, int) ([]models.TrendingHashtag, error)
}

func (s *hashtagRepoStub) Trending(ctx context.Context, now time.Time, limit int) ([]models.TrendingHashtag, error) {
	return s.trendingFn(ctx, now, limit)
}

// notificationRepoStub is a stub for repository.NotificationRepository.
type notificationRepoStub struct {
	mu        sync.Mutex
	created   []models.Notification
	createErr error
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	n.ID = uint(len(s.created) + 1)
	s.created = append(s.created, *n)
	return nil
}
func (s *notificationRepoStub) ListByUser(_ context.Context, userID uint, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.created) - 1; i >= 0 && len(out) < limit; i-- {
		if s.created[i].UserID == userID {
			out = append(out, s.created[i])
		}
	}
	return out, nil
}
func (s *notificationRepoStub) CountUnread(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.created {
		if c.UserID == userID && !c.Read {
			n++
		}
	}
	return n, nil
}
func (s *notificationRepoStub) MarkRead(_ context.Context, userID, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.created {
		if s.created[i].ID == id && s.created[i].UserID == userID {
			s.created[i].Read = true
			return nil
		}
	}
	return models.NewNotFoundError("Notification", id)
}
func (s *notificationRepoStub) MarkAllRead(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.created {
		if s.created[i].UserID == userID && !s.created[i].Read {
			s.created[i].Read = true
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures Notify calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []NotifyInput
}

func (r *recordingNotifier) Notify(_ context.Context, in NotifyInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, in)
}

func (r *recordingNotifier) Calls() []NotifyInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NotifyInput(nil), r.calls...)
}

type publisherStub struct {
	mu       sync.Mutex
	payloads map[uint][]string
	err      error
}

func (p *publisherStub) PublishUser(_ context.Context, userID uint, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.payloads == nil {
		p.payloads = map[uint][]string{}
	}
	p.payloads[userID] = append(p.payloads[userID], payload)
	return nil
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeNotFound)
}

func strPtr(s string) *string { return &s }
