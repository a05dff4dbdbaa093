package service

import (
	"bytes"
	"context"
	"errors"
	"ichat_backend/internal/config"
	"ichat_backend/internal/model"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/util"
	"ichat_backend/pkg/logger"
	"ichat_backend/pkg/monitoring"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 内容签名识别需要读取的文件头长度
const sniffLen = 3072

// Upload 客户端上传的附件。Name 只用于展示，不参与类型判断
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadPolicy 可热更新的消息与附件限制
type UploadPolicy struct {
	MaxBytes         int64
	AllowedTypes     []string
	MaxMessageLength int
}

func PolicyFromConfig(cfg config.ChatConfig) UploadPolicy {
	return UploadPolicy{
		MaxBytes:         cfg.MaxUploadBytes(),
		AllowedTypes:     append([]string(nil), cfg.AllowedFileTypes...),
		MaxMessageLength: cfg.MaxMessageLength,
	}
}

type MessageService struct {
	MessageRepo   *repository.MessageRepository
	Conversations *ConversationService
	Storage       StorageProvider

	mu     sync.RWMutex
	policy UploadPolicy
}

func NewMessageService(messageRepo *repository.MessageRepository, conversations *ConversationService, storage StorageProvider, policy UploadPolicy) *MessageService {
	return &MessageService{
		MessageRepo:   messageRepo,
		Conversations: conversations,
		Storage:       storage,
		policy:        policy,
	}
}

// SetPolicy 配置热更新时调用
func (s *MessageService) SetPolicy(policy UploadPolicy) {
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
}

func (s *MessageService) Policy() UploadPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *MessageService) requireParticipant(ctx context.Context, userID, conversationID uint) error {
	if userID == 0 {
		return util.ErrUnauthenticated()
	}
	ok, err := s.Conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrUnauthorized(util.ReasonNotParticipant, "You are not a participant in this conversation")
	}
	return nil
}

// PostMessage 校验顺序：身份、成员、内容、附件。附件保存后的任何失败都会删除已保存的文件
func (s *MessageService) PostMessage(ctx context.Context, userID, conversationID uint, text string, upload *Upload) (*model.Message, error) {
	if err := s.requireParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	policy := s.Policy()
	text = strings.TrimSpace(text)
	if text == "" && upload == nil {
		return nil, util.ErrValidation(util.ReasonEmptyMessage, "Message cannot be empty")
	}
	if policy.MaxMessageLength > 0 && utf8.RuneCountInString(text) > policy.MaxMessageLength {
		return nil, util.ErrValidation(util.ReasonMessageTooLong, "Message is too long")
	}

	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        text,
		SentAt:         time.Now().UTC(),
	}

	kind := "text"
	if upload != nil {
		if err := s.storeAttachment(ctx, policy, upload, msg); err != nil {
			return nil, err
		}
		kind = "file"
	}

	if err := s.MessageRepo.Create(ctx, msg); err != nil {
		if msg.HasFile() {
			s.removeFile(msg.FilePath)
		}
		return nil, util.ErrTransient(err)
	}

	monitoring.MessagesPosted.WithLabelValues(kind).Inc()
	return msg, nil
}

func (s *MessageService) storeAttachment(ctx context.Context, policy UploadPolicy, upload *Upload, msg *model.Message) error {
	if upload.Reader == nil || upload.Size <= 0 {
		monitoring.UploadsRejected.WithLabelValues(util.ReasonInvalidFileType).Inc()
		return util.ErrValidation(util.ReasonInvalidFileType, "Uploaded file is empty")
	}
	if policy.MaxBytes > 0 && upload.Size > policy.MaxBytes {
		monitoring.UploadsRejected.WithLabelValues(util.ReasonFileTooLarge).Inc()
		return util.ErrValidation(util.ReasonFileTooLarge, "File is too large")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return util.ErrStorage(err)
	}
	head = head[:n]

	detected, err := util.ValidateMimeType(bytes.NewReader(head), policy.AllowedTypes)
	if err != nil {
		monitoring.UploadsRejected.WithLabelValues(util.ReasonInvalidFileType).Inc()
		return util.ErrValidation(util.ReasonInvalidFileType, "File type is not allowed")
	}

	objectName := "chat/" + uuid.NewString() + detected.Extension
	body := io.MultiReader(bytes.NewReader(head), upload.Reader)
	if _, err := s.Storage.Upload(ctx, objectName, body, upload.Size, detected.MimeType); err != nil {
		return util.ErrStorage(err)
	}

	msg.FilePath = objectName
	msg.FileName = displayName(upload.Name, detected.Extension)
	msg.FileType = detected.MimeType
	msg.FileSize = upload.Size
	return nil
}

// displayName 去掉客户端路径，只保留文件名用于展示
func displayName(name, ext string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "attachment" + ext
	}
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

func (s *MessageService) removeFile(objectName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Storage.Delete(ctx, objectName); err != nil {
		logger.Log.Warn("failed to remove stored attachment", zap.String("file", objectName), zap.Error(err))
	}
}

// ListMessages 按 (sent_at, id) 升序返回会话消息
func (s *MessageService) ListMessages(ctx context.Context, userID, conversationID, afterID uint) ([]model.MessageView, error) {
	if err := s.requireParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.MessageRepo.ListByConversation(ctx, conversationID, afterID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := model.MessageView{
			Message:     m,
			SenderName:  m.Sender.FullName,
			SenderImage: m.Sender.ImagePath,
		}
		if m.HasFile() {
			v.FileURL = s.Storage.GetURL(m.FilePath)
		}
		views = append(views, v)
	}
	return views, nil
}

// DeleteMessage 只有发送者能删除；他人的消息按不存在处理
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID uint) error {
	if userID == 0 {
		return util.ErrUnauthenticated()
	}
	msg, err := s.MessageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotFound(util.ReasonMessageNotFound, "Message not found or you don't have permission to delete it")
		}
		return util.ErrTransient(err)
	}
	if msg.SenderID != userID {
		return util.ErrNotFound(util.ReasonMessageNotFound, "Message not found or you don't have permission to delete it")
	}

	deleted, err := s.MessageRepo.DeleteBySender(ctx, messageID, userID)
	if err != nil {
		return util.ErrTransient(err)
	}
	if deleted == 0 {
		return util.ErrNotFound(util.ReasonMessageNotFound, "Message not found or you don't have permission to delete it")
	}
	if msg.HasFile() {
		s.removeFile(msg.FilePath)
	}
	return nil
}
