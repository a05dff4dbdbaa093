package model

import (
	"time"

	"gorm.io/gorm"
)

type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipAccepted RelationshipStatus = "accepted"
)

// Relationship 用户之间的连接请求，每个无序用户对最多一行
type Relationship struct {
	BaseModel
	UserID        uint               `gorm:"not null;index" json:"userId"`
	RelatedUserID uint               `gorm:"not null;index" json:"relatedUserId"`
	Status        RelationshipStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	ActionUserID  uint               `gorm:"not null" json:"actionUserId"`
	PairLow       uint               `gorm:"not null;uniqueIndex:idx_relationship_pair" json:"-"`
	PairHigh      uint               `gorm:"not null;uniqueIndex:idx_relationship_pair" json:"-"`

	User        User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RelatedUser User `gorm:"foreignKey:RelatedUserID" json:"relatedUser,omitempty"`
}

func (Relationship) TableName() string {
	return "user_relationships"
}

// OrderedPair 返回 (较小ID, 较大ID)
func OrderedPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

func (r *Relationship) BeforeCreate(tx *gorm.DB) error {
	r.PairLow, r.PairHigh = OrderedPair(r.UserID, r.RelatedUserID)
	return nil
}

// Other 返回关系中 userID 以外的一方
func (r *Relationship) Other(userID uint) uint {
	if r.UserID == userID {
		return r.RelatedUserID
	}
	return r.UserID
}

// ConnectionRequest 待处理/已发送请求的展示结构
type ConnectionRequest struct {
	ID        uint               `json:"id"`
	Status    RelationshipStatus `json:"status"`
	User      UserBrief          `json:"user"`
	CreatedAt time.Time          `json:"createdAt"`
}

// UserSearchResult 搜索用户时附带与当前用户的关系状态
type UserSearchResult struct {
	UserBrief
	RelationshipID     uint               `json:"relationshipId,omitempty"`
	RelationshipStatus RelationshipStatus `json:"relationshipStatus,omitempty"`
	Incoming           bool               `json:"incoming,omitempty"`
}
