package repository

import (
	"context"
	"time"

	"echoes/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores follow requests and the follow edges they produce.
type FollowRepository interface {
	UpsertRequest(ctx context.Context, requesterID, targetID uint) (*models.FollowRequest, error)
	GetRequest(ctx context.Context, id uint) (*models.FollowRequest, error)
	Accept(ctx context.Context, req *models.FollowRequest) (bool, error)
	SetStatus(ctx context.Context, id uint, status models.FollowRequestStatus) error
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	ListFollowing(ctx context.Context, userID uint) ([]models.User, error)
	ListOutgoing(ctx context.Context, userID uint, status models.FollowRequestStatus) ([]models.FollowRequest, error)
	ListIncoming(ctx context.Context, userID uint, status models.FollowRequestStatus) ([]models.FollowRequest, error)
	PendingTargetIDs(ctx context.Context, userID uint) ([]uint, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// UpsertRequest creates the request for the pair or resets an existing one to
// PENDING, whatever its previous status.
func (r *followRepository) UpsertRequest(ctx context.Context, requesterID, targetID uint) (*models.FollowRequest, error) {
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()
	req := &models.FollowRequest{
		RequesterID: requesterID,
		TargetID:    targetID,
		Status:      models.FollowRequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "requester_id"}, {Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     models.FollowRequestPending,
			"updated_at": now,
		}),
	}).Create(req).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var stored models.FollowRequest
	if err := db.Where("requester_id = ? AND target_id = ?", requesterID, targetID).First(&stored).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stored, nil
}

func (r *followRepository) GetRequest(ctx context.Context, id uint) (*models.FollowRequest, error) {
	var req models.FollowRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "FollowRequest", id)
	}
	return &req, nil
}

// Accept marks the request ACCEPTED and creates the follow edge atomically.
// It reports whether this call made the transition; of several concurrent
// accepts exactly one does, and all leave a single edge.
func (r *followRepository) Accept(ctx context.Context, req *models.FollowRequest) (bool, error) {
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FollowRequest{}).
			Where("id = ? AND status <> ?", req.ID, models.FollowRequestAccepted).
			Updates(map[string]interface{}{
				"status":     models.FollowRequestAccepted,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		transitioned = res.RowsAffected > 0
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
			DoNothing: true,
		}).Create(&models.Follow{FollowerID: req.RequesterID, FollowingID: req.TargetID}).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	req.Status = models.FollowRequestAccepted
	return transitioned, nil
}

func (r *followRepository) SetStatus(ctx context.Context, id uint, status models.FollowRequestStatus) error {
	res := r.db.WithContext(ctx).Model(&models.FollowRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("FollowRequest", id)
	}
	return nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("following_id ASC").
		Pluck("following_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// ListFollowing returns the non-deleted users userID follows.
func (r *followRepository) ListFollowing(ctx context.Context, userID uint) ([]models.User, error) {
	users := []models.User{}
	if err := readDB(r.db).WithContext(ctx).
		Joins("JOIN follows f ON f.following_id = users.id").
		Where("f.follower_id = ?", userID).
		Order("f.created_at DESC, users.id DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// ListOutgoing returns requests sent by userID with status, target preloaded.
func (r *followRepository) ListOutgoing(ctx context.Context, userID uint, status models.FollowRequestStatus) ([]models.FollowRequest, error) {
	reqs := []models.FollowRequest{}
	if err := readDB(r.db).WithContext(ctx).
		Preload("Target").
		Where("requester_id = ? AND status = ?", userID, status).
		Order("updated_at DESC, id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// ListIncoming returns requests received by userID with status, requester preloaded.
func (r *followRepository) ListIncoming(ctx context.Context, userID uint, status models.FollowRequestStatus) ([]models.FollowRequest, error) {
	reqs := []models.FollowRequest{}
	if err := readDB(r.db).WithContext(ctx).
		Preload("Requester").
		Where("target_id = ? AND status = ?", userID, status).
		Order("updated_at DESC, id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *followRepository) PendingTargetIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.FollowRequest{}).
		Where("requester_id = ? AND status = ?", userID, models.FollowRequestPending).
		Order("target_id ASC").
		Pluck("target_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
