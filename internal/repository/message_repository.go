package repository

import (
	"context"
	"ichat_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

// Create 写入消息并刷新会话的 last_activity
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("last_activity", msg.SentAt).Error
	})
}

// ListByConversation 按 (sent_at, id) 升序返回消息；afterID > 0 时只返回更新的消息
func (r *MessageRepository) ListByConversation(ctx context.Context, convID, afterID uint) ([]model.Message, error) {
	var msgs []model.Message
	db := r.DB.WithContext(ctx).Preload("Sender").
		Where("conversation_id = ?", convID)
	if afterID > 0 {
		db = db.Where("id > ?", afterID)
	}
	err := db.Order("sent_at ASC, id ASC").Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*model.Message, error) {
	var msg model.Message
	err := r.DB.WithContext(ctx).First(&msg, id).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteBySender 只删除 senderID 本人发送的消息，返回受影响行数
func (r *MessageRepository) DeleteBySender(ctx context.Context, id, senderID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, senderID).
		Delete(&model.Message{})
	return res.RowsAffected, res.Error
}

// LatestPerConversation 每个会话最新的一条消息（按 sent_at、id 取最大）
func (r *MessageRepository) LatestPerConversation(ctx context.Context, convIDs []uint) (map[uint]model.Message, error) {
	result := make(map[uint]model.Message, len(convIDs))
	if len(convIDs) == 0 {
		return result, nil
	}
	var msgs []model.Message
	err := r.DB.WithContext(ctx).
		Where("m.conversation_id IN ?", convIDs).
		Where(`NOT EXISTS (SELECT 1 FROM messages n WHERE n.conversation_id = m.conversation_id
			AND (n.sent_at > m.sent_at OR (n.sent_at = m.sent_at AND n.id > m.id)))`).
		Table("messages AS m").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		result[m.ConversationID] = m
	}
	return result, nil
}
