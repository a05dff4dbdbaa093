package model

import (
	"time"
)

// Message 追加写入的消息记录，只能由发送者硬删除
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_conv_sent" json:"conversationId"`
	SenderID       uint      `gorm:"not null;index" json:"senderId"`
	Sender         User      `gorm:"foreignKey:SenderID" json:"-"`
	Content        string    `gorm:"type:text" json:"content"`
	FilePath       string    `gorm:"size:255" json:"filePath,omitempty"`
	FileName       string    `gorm:"size:255" json:"fileName,omitempty"`
	FileType       string    `gorm:"size:100" json:"fileType,omitempty"`
	FileSize       int64     `json:"fileSize,omitempty"`
	SentAt         time.Time `gorm:"not null;index:idx_conv_sent" json:"sentAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) HasFile() bool {
	return m.FilePath != ""
}

// MessageView 带发送者展示信息的消息
type MessageView struct {
	Message
	SenderName  string `json:"senderName"`
	SenderImage string `json:"senderImage"`
	FileURL     string `json:"fileUrl,omitempty"`
}
