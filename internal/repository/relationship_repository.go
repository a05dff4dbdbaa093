package repository

import (
	"context"
	"ichat_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type RelationshipRepository struct {
	DB *gorm.DB
}

func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{DB: db}
}

// Create 插入连接请求。同一无序用户对重复插入时返回 gorm.ErrDuplicatedKey
func (r *RelationshipRepository) Create(ctx context.Context, rel *model.Relationship) error {
	return r.DB.WithContext(ctx).Omit("User", "RelatedUser").Create(rel).Error
}

// FindBetween 查找两人之间的关系（不区分方向与状态）
func (r *RelationshipRepository) FindBetween(ctx context.Context, a, b uint) (*model.Relationship, error) {
	low, high := model.OrderedPair(a, b)
	var rel model.Relationship
	err := r.DB.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ?", low, high).
		First(&rel).Error
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// Accept 只有被请求方可以接受处于 pending 的请求，返回受影响行数
func (r *RelationshipRepository) Accept(ctx context.Context, requestID, accepterID uint, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Relationship{}).
		Where("id = ? AND related_user_id = ? AND status = ?", requestID, accepterID, model.RelationshipPending).
		Updates(map[string]interface{}{
			"status":         model.RelationshipAccepted,
			"action_user_id": accepterID,
			"updated_at":     now,
		})
	return res.RowsAffected, res.Error
}

func (r *RelationshipRepository) FindByID(ctx context.Context, id uint) (*model.Relationship, error) {
	var rel model.Relationship
	err := r.DB.WithContext(ctx).First(&rel, id).Error
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// ListPending 收到的待处理请求
func (r *RelationshipRepository) ListPending(ctx context.Context, userID uint) ([]model.Relationship, error) {
	var rels []model.Relationship
	err := r.DB.WithContext(ctx).Preload("User").
		Where("related_user_id = ? AND status = ?", userID, model.RelationshipPending).
		Order("created_at DESC").
		Find(&rels).Error
	return rels, err
}

// ListOutgoing 自己发出、对方尚未处理的请求
func (r *RelationshipRepository) ListOutgoing(ctx context.Context, userID uint) ([]model.Relationship, error) {
	var rels []model.Relationship
	err := r.DB.WithContext(ctx).Preload("RelatedUser").
		Where("user_id = ? AND status = ?", userID, model.RelationshipPending).
		Order("created_at DESC").
		Find(&rels).Error
	return rels, err
}

func (r *RelationshipRepository) acceptedUsers(ctx context.Context, userID uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN user_relationships ur ON ((ur.user_id = users.id AND ur.related_user_id = ?) OR (ur.related_user_id = users.id AND ur.user_id = ?))", userID, userID).
		Where("ur.status = ?", model.RelationshipAccepted).
		Where("users.id <> ?", userID)
}

// ListAcceptedUsers 已接受的连接（对方用户）
func (r *RelationshipRepository) ListAcceptedUsers(ctx context.Context, userID uint) ([]model.User, error) {
	var users []model.User
	err := r.acceptedUsers(ctx, userID).
		Order("users.full_name ASC").
		Find(&users).Error
	return users, err
}

// ListAcceptedUsersNotIn 已接受的连接中尚未加入指定会话的用户
func (r *RelationshipRepository) ListAcceptedUsersNotIn(ctx context.Context, userID, conversationID uint) ([]model.User, error) {
	var users []model.User
	err := r.acceptedUsers(ctx, userID).
		Where("users.id NOT IN (SELECT cp.user_id FROM conversation_participants cp WHERE cp.conversation_id = ?)", conversationID).
		Order("users.full_name ASC").
		Find(&users).Error
	return users, err
}

func (r *RelationshipRepository) IsAccepted(ctx context.Context, a, b uint) (bool, error) {
	low, high := model.OrderedPair(a, b)
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Relationship{}).
		Where("pair_low = ? AND pair_high = ? AND status = ?", low, high, model.RelationshipAccepted).
		Count(&count).Error
	return count > 0, err
}

// FindForUser 当前用户与 others 之间的所有关系，用于搜索结果标注
func (r *RelationshipRepository) FindForUser(ctx context.Context, userID uint, others []uint) ([]model.Relationship, error) {
	if len(others) == 0 {
		return nil, nil
	}
	var rels []model.Relationship
	err := r.DB.WithContext(ctx).
		Where("(user_id = ? AND related_user_id IN ?) OR (related_user_id = ? AND user_id IN ?)", userID, others, userID, others).
		Find(&rels).Error
	return rels, err
}
