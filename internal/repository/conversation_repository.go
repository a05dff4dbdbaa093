package repository

import (
	"context"
	"errors"
	"fmt"
	"ichat_backend/internal/model"
	"ichat_backend/pkg/logger"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	participantCacheTTL = time.Hour
	// 版本号须比成员集合活得久，否则过期归零可能与回填前读到的旧版本相同
	participantVersionTTL = 2 * participantCacheTTL
)

var errParticipantsChanged = errors.New("participants changed during cache fill")

type ConversationRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewConversationRepository(db *gorm.DB, rdb *redis.Client) *ConversationRepository {
	return &ConversationRepository{DB: db, Redis: rdb}
}

func participantKey(convID uint) string {
	return fmt.Sprintf("chat:participants:%d", convID)
}

func participantVersionKey(convID uint) string {
	return fmt.Sprintf("chat:participants:%d:ver", convID)
}

func insertParticipants(tx *gorm.DB, convID uint, userIDs []uint) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]model.Participant, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, model.Participant{ConversationID: convID, UserID: id, JoinedAt: now})
	}
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

// CreateDirect 在一个事务中创建私聊会话及双方成员。
// 并发创建同一对用户时，后到者会得到 gorm.ErrDuplicatedKey
func (r *ConversationRepository) CreateDirect(ctx context.Context, userA, userB uint) (*model.Conversation, error) {
	key := model.DirectKey(userA, userB)
	now := time.Now().UTC()
	conv := &model.Conversation{
		IsGroup:      false,
		DirectKey:    &key,
		LastActivity: now,
		CreatedAt:    now,
	}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conv).Error; err != nil {
			return err
		}
		_, err := insertParticipants(tx, conv.ID, []uint{userA, userB})
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).
		Where("direct_key = ? AND is_group = ?", model.DirectKey(userA, userB), false).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateGroup 群资料、会话、成员三者同事务写入，任一失败整体回滚
func (r *ConversationRepository) CreateGroup(ctx context.Context, group *model.Group, memberIDs []uint) (*model.Conversation, error) {
	now := time.Now().UTC()
	var conv *model.Conversation
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group.CreatedAt = now
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		conv = &model.Conversation{
			IsGroup:      true,
			GroupID:      &group.ID,
			LastActivity: now,
			CreatedAt:    now,
		}
		if err := tx.Omit(clause.Associations).Create(conv).Error; err != nil {
			return err
		}
		_, err := insertParticipants(tx, conv.ID, memberIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	conv.Group = group
	return conv, nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).Preload("Group").First(&conv, id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) FindGroup(ctx context.Context, groupID uint) (*model.Group, error) {
	var group model.Group
	err := r.DB.WithContext(ctx).First(&group, groupID).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByGroupID 群对应的会话
func (r *ConversationRepository) FindByGroupID(ctx context.Context, groupID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).Preload("Group").
		Where("group_id = ? AND is_group = ?", groupID, true).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) GetParticipantIDs(ctx context.Context, convID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Participant{}).
		Where("conversation_id = ?", convID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// GetParticipantIDsCached 成员 ID 集合（带缓存），Redis 故障时退化为查库
func (r *ConversationRepository) GetParticipantIDsCached(ctx context.Context, convID uint) ([]uint, error) {
	if r.Redis == nil {
		return r.GetParticipantIDs(ctx, convID)
	}

	key := participantKey(convID)
	cached, err := r.Redis.SMembers(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		ids := make([]uint, 0, len(cached))
		for _, s := range cached {
			id, perr := strconv.ParseUint(s, 10, 64)
			if perr == nil && id > 0 {
				ids = append(ids, uint(id))
			}
		}
		return ids, nil
	}
	if err != nil {
		logger.Log.Warn("participant cache read failed", zap.Uint("conversationId", convID), zap.Error(err))
		return r.GetParticipantIDs(ctx, convID)
	}

	// 查库前记下版本号，回填时版本已变说明期间有成员变更，放弃回填
	version, verr := r.participantVersion(ctx, r.Redis, convID)
	ids, err := r.GetParticipantIDs(ctx, convID)
	if err == nil && verr == nil && len(ids) > 0 {
		r.fillParticipants(ctx, convID, version, ids)
	}
	return ids, err
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *ConversationRepository) participantVersion(ctx context.Context, c stringGetter, convID uint) (int64, error) {
	v, err := c.Get(ctx, participantVersionKey(convID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (r *ConversationRepository) fillParticipants(ctx context.Context, convID uint, version int64, ids []uint) {
	key := participantKey(convID)
	err := r.Redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.participantVersion(ctx, tx, convID)
		if err != nil {
			return err
		}
		if current != version {
			return errParticipantsChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range ids {
				pipe.SAdd(ctx, key, id)
			}
			pipe.Expire(ctx, key, participantCacheTTL)
			return nil
		})
		return err
	}, participantVersionKey(convID))

	switch {
	case err == nil:
	case errors.Is(err, errParticipantsChanged), errors.Is(err, redis.TxFailedErr):
		logger.Log.Debug("participant cache fill skipped, membership changed", zap.Uint("conversationId", convID))
	default:
		logger.Log.Warn("participant cache fill failed", zap.Uint("conversationId", convID), zap.Error(err))
	}
}

func (r *ConversationRepository) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	ids, err := r.GetParticipantIDsCached(ctx, convID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *ConversationRepository) invalidateParticipants(ctx context.Context, convID uint) {
	if r.Redis == nil {
		return
	}
	verKey := participantVersionKey(convID)
	_, err := r.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, participantVersionTTL)
		pipe.Del(ctx, participantKey(convID))
		return nil
	})
	if err != nil {
		logger.Log.Warn("participant cache invalidate failed", zap.Uint("conversationId", convID), zap.Error(err))
	}
}

// AddParticipants 已存在的成员被忽略，返回实际新增的行数
func (r *ConversationRepository) AddParticipants(ctx context.Context, convID uint, userIDs []uint) (int64, error) {
	added, err := insertParticipants(r.DB.WithContext(ctx), convID, userIDs)
	if err != nil {
		return 0, err
	}
	r.invalidateParticipants(ctx, convID)
	return added, nil
}

func (r *ConversationRepository) RemoveParticipant(ctx context.Context, convID, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Delete(&model.Participant{})
	if res.Error != nil {
		return 0, res.Error
	}
	r.invalidateParticipants(ctx, convID)
	return res.RowsAffected, nil
}

// ListMembers 会话成员资料，按加入时间排序
func (r *ConversationRepository) ListMembers(ctx context.Context, convID uint) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN conversation_participants cp ON cp.user_id = users.id").
		Where("cp.conversation_id = ?", convID).
		Order("cp.joined_at ASC, users.id ASC").
		Find(&users).Error
	return users, err
}

// ListForUser 用户参与的所有会话，附带群资料与成员
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.DB.WithContext(ctx).
		Preload("Group").
		Preload("Participants.User").
		Where("id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)", userID).
		Find(&convs).Error
	return convs, err
}
