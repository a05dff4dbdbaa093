package model

import (
	"fmt"
	"time"
)

// Group 群资料，创建者即永久管理员
type Group struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ImagePath   string    `gorm:"size:255" json:"imagePath"`
	CreatedBy   uint      `gorm:"not null;index" json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Group) TableName() string {
	return "chat_groups"
}

// Conversation 私聊或群聊。私聊通过 DirectKey 唯一索引保证每对用户只有一个会话
type Conversation struct {
	ID           uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	IsGroup      bool          `gorm:"not null;default:false" json:"isGroup"`
	GroupID      *uint         `gorm:"uniqueIndex" json:"groupId,omitempty"`
	Group        *Group        `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	DirectKey    *string       `gorm:"size:41;uniqueIndex" json:"-"`
	LastActivity time.Time     `gorm:"index" json:"lastActivity"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []Participant `gorm:"foreignKey:ConversationID" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// DirectKey 私聊会话的无序用户对键
func DirectKey(a, b uint) string {
	low, high := OrderedPair(a, b)
	return fmt.Sprintf("%d:%d", low, high)
}

// Participant 会话成员，(conversation_id, user_id) 唯一
type Participant struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversationId"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	User           User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (Participant) TableName() string {
	return "conversation_participants"
}

// ConversationSummary 会话列表项
type ConversationSummary struct {
	ID              uint       `json:"id"`
	IsGroup         bool       `json:"isGroup"`
	GroupID         *uint      `json:"groupId,omitempty"`
	OtherUserID     *uint      `json:"otherUserId,omitempty"`
	DisplayName     string     `json:"displayName"`
	ImagePath       string     `json:"imagePath"`
	LastMessage     *string    `json:"lastMessage"`
	LastMessageFile *string    `json:"lastMessageFile,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ConversationInfo 会话详情：群资料、成员、当前用户是否管理员
type ConversationInfo struct {
	ID          uint        `json:"id"`
	IsGroup     bool        `json:"isGroup"`
	GroupID     *uint       `json:"groupId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ImagePath   string      `json:"imagePath"`
	AdminID     *uint       `json:"adminId"`
	IsAdmin     bool        `json:"isAdmin"`
	Members     []UserBrief `json:"members"`
}
