package models

import "time"

// FollowRequestStatus is the state of a follow request.
type FollowRequestStatus string

const (
	FollowRequestPending  FollowRequestStatus = "PENDING"
	FollowRequestAccepted FollowRequestStatus = "ACCEPTED"
	FollowRequestRejected FollowRequestStatus = "REJECTED"
)

// Follow is an approved directed edge: the follower sees the followed user's posts.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// FollowRequest proposes a Follow edge. One row exists per directed pair;
// resending only mutates Status.
type FollowRequest struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	RequesterID uint                `gorm:"not null;uniqueIndex:idx_follow_requests_pair" json:"requester_id"`
	TargetID    uint                `gorm:"not null;uniqueIndex:idx_follow_requests_pair;index" json:"target_id"`
	Status      FollowRequestStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Requester *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Target    *User `gorm:"foreignKey:TargetID" json:"target,omitempty"`
}

// TableName specifies the table name for GORM
func (FollowRequest) TableName() string {
	return "follow_requests"
}
