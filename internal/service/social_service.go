package service

import (
	"context"

	"echoes/internal/models"
	"echoes/internal/observability"
	"echoes/internal/repository"
)

// SocialService manages follow requests and the follow graph.
type SocialService struct {
	follows  repository.FollowRepository
	users    repository.UserRepository
	notifier Notifier
}

// UsersOverview is the user directory as seen by one viewer.
type UsersOverview struct {
	Users     []models.PublicProfile `json:"users"`
	Following []uint                 `json:"following"`
	Pending   []uint                 `json:"pending"`
}

func NewSocialService(
	follows repository.FollowRepository,
	users repository.UserRepository,
	notifier Notifier,
) *SocialService {
	return &SocialService{follows: follows, users: users, notifier: notifier}
}

// SendFollowRequest creates or re-opens the request from requester to target.
// Re-sending after a rejection, or after acceptance, resets it to PENDING.
func (s *SocialService) SendFollowRequest(ctx context.Context, requesterID, targetID uint) (*models.FollowRequest, error) {
	if requesterID == targetID {
		return nil, models.NewValidationError("Cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	req, err := s.follows.UpsertRequest(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	observability.EngagementActions.WithLabelValues("follow_request").Inc()
	if s.notifier != nil {
		s.notifier.Notify(ctx, NotifyInput{UserID: targetID, Type: models.NotificationFollowRequest, ActorID: requesterID})
	}
	return req, nil
}

// AcceptFollowRequest creates the follow edge. Only the target may accept;
// anyone else gets NotFound. Accepting twice is a no-op.
func (s *SocialService) AcceptFollowRequest(ctx context.Context, acceptorID, requestID uint) (*models.FollowRequest, error) {
	req, err := s.ownedRequest(ctx, acceptorID, requestID)
	if err != nil {
		return nil, err
	}
	transitioned, err := s.follows.Accept(ctx, req)
	if err != nil {
		return nil, err
	}
	if transitioned {
		observability.EngagementActions.WithLabelValues("follow_accept").Inc()
		if s.notifier != nil {
			s.notifier.Notify(ctx, NotifyInput{UserID: req.RequesterID, Type: models.NotificationFollowAccepted, ActorID: acceptorID})
		}
	}
	return req, nil
}

// RejectFollowRequest marks the request REJECTED. An existing follow edge is
// left in place.
func (s *SocialService) RejectFollowRequest(ctx context.Context, acceptorID, requestID uint) (*models.FollowRequest, error) {
	req, err := s.ownedRequest(ctx, acceptorID, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.follows.SetStatus(ctx, req.ID, models.FollowRequestRejected); err != nil {
		return nil, err
	}
	req.Status = models.FollowRequestRejected
	return req, nil
}

func (s *SocialService) ownedRequest(ctx context.Context, userID, requestID uint) (*models.FollowRequest, error) {
	req, err := s.follows.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TargetID != userID {
		return nil, models.NewNotFoundError("FollowRequest", requestID)
	}
	return req, nil
}

func (s *SocialService) ListFollowing(ctx context.Context, userID uint) ([]models.PublicProfile, error) {
	users, err := s.follows.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profiles(users), nil
}

// ListPendingOutgoing returns pending requests sent by userID with the target's profile.
func (s *SocialService) ListPendingOutgoing(ctx context.Context, userID uint) ([]models.FollowRequest, error) {
	return s.follows.ListOutgoing(ctx, userID, models.FollowRequestPending)
}

// ListPendingIncoming returns pending requests received by userID with the requester's profile.
func (s *SocialService) ListPendingIncoming(ctx context.Context, userID uint) ([]models.FollowRequest, error) {
	return s.follows.ListIncoming(ctx, userID, models.FollowRequestPending)
}

// ListUsers returns every other user plus the ids the viewer follows or has
// asked to follow.
func (s *SocialService) ListUsers(ctx context.Context, viewerID uint) (*UsersOverview, error) {
	users, err := s.users.ListExcept(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	following, err := s.follows.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	pending, err := s.follows.PendingTargetIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return &UsersOverview{Users: profiles(users), Following: following, Pending: pending}, nil
}

func profiles(users []models.User) []models.PublicProfile {
	out := make([]models.PublicProfile, len(users))
	for i := range users {
		out[i] = users[i].Profile()
	}
	return out
}
