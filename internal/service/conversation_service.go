package service

import (
	"context"
	"errors"
	"ichat_backend/internal/model"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/util"
	"ichat_backend/pkg/monitoring"
	"sort"
	"strings"

	"gorm.io/gorm"
)

type ConversationService struct {
	ConvRepo     *repository.ConversationRepository
	MessageRepo  *repository.MessageRepository
	UserRepo     *repository.UserRepository
	Relationship *RelationshipService
}

func NewConversationService(
	convRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	relationship *RelationshipService,
) *ConversationService {
	return &ConversationService{
		ConvRepo:     convRepo,
		MessageRepo:  messageRepo,
		UserRepo:     userRepo,
		Relationship: relationship,
	}
}

// StartOneToOne 返回两人之间唯一的私聊会话，不存在时创建。与参数顺序无关
func (s *ConversationService) StartOneToOne(ctx context.Context, userA, userB uint) (uint, error) {
	if userA == 0 {
		return 0, util.ErrUnauthenticated()
	}
	if userA == userB {
		return 0, util.ErrValidation(util.ReasonSelfConversation, "You cannot start a conversation with yourself")
	}

	connected, err := s.Relationship.AreConnected(ctx, userA, userB)
	if err != nil {
		return 0, err
	}
	if !connected {
		return 0, util.ErrUnauthorized(util.ReasonNotConnected, "You can only chat with your connections")
	}

	conv, err := s.ConvRepo.FindDirect(ctx, userA, userB)
	if err == nil {
		return conv.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, util.ErrTransient(err)
	}

	conv, err = s.ConvRepo.CreateDirect(ctx, userA, userB)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发创建时唯一索引落败，读取胜出方的会话
		conv, err = s.ConvRepo.FindDirect(ctx, userA, userB)
		if err != nil {
			return 0, util.ErrTransient(err)
		}
		return conv.ID, nil
	}
	if err != nil {
		return 0, util.ErrTransient(err)
	}
	monitoring.ConversationsCreated.WithLabelValues("direct").Inc()
	return conv.ID, nil
}

// CreateGroup 创建群聊，创建者自动成为成员和管理员
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID uint, name, description string, memberIDs []uint) (*model.Conversation, error) {
	if creatorID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.ErrValidation("", "Group name is required")
	}
	members := util.UniqueIDs(memberIDs, creatorID)
	if len(members) == 0 {
		return nil, util.ErrValidation("", "Select at least one member")
	}

	count, err := s.UserRepo.CountExisting(ctx, members)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	if count != int64(len(members)) {
		return nil, util.ErrValidation(util.ReasonUnknownUsers, "Some selected users do not exist")
	}

	group := &model.Group{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   creatorID,
	}
	conv, err := s.ConvRepo.CreateGroup(ctx, group, append([]uint{creatorID}, members...))
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	monitoring.ConversationsCreated.WithLabelValues("group").Inc()
	return conv, nil
}

// ListConversations 有消息的会话按最新消息倒序在前，无消息的会话按创建时间倒序在后
func (s *ConversationService) ListConversations(ctx context.Context, userID uint) ([]model.ConversationSummary, error) {
	if userID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	convs, err := s.ConvRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	latest, err := s.MessageRepo.LatestPerConversation(ctx, ids)
	if err != nil {
		return nil, util.ErrTransient(err)
	}

	type row struct {
		summary model.ConversationSummary
		lastID  uint
	}
	rows := make([]row, 0, len(convs))
	for _, c := range convs {
		sum := model.ConversationSummary{
			ID:        c.ID,
			IsGroup:   c.IsGroup,
			GroupID:   c.GroupID,
			CreatedAt: c.CreatedAt,
		}
		if c.IsGroup && c.Group != nil {
			sum.DisplayName = c.Group.Name
			sum.ImagePath = c.Group.ImagePath
		} else {
			for _, p := range c.Participants {
				if p.UserID != userID {
					other := p.UserID
					sum.OtherUserID = &other
					sum.DisplayName = p.User.FullName
					sum.ImagePath = p.User.ImagePath
					break
				}
			}
		}
		r := row{summary: sum}
		if m, ok := latest[c.ID]; ok {
			content := m.Content
			sentAt := m.SentAt
			r.summary.LastMessage = &content
			r.summary.LastMessageTime = &sentAt
			if m.HasFile() {
				fileName := m.FileName
				r.summary.LastMessageFile = &fileName
			}
			r.lastID = m.ID
		}
		rows = append(rows, r)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		at, bt := a.summary.LastMessageTime, b.summary.LastMessageTime
		switch {
		case at != nil && bt != nil:
			if !at.Equal(*bt) {
				return at.After(*bt)
			}
			return a.lastID > b.lastID
		case at != nil:
			return true
		case bt != nil:
			return false
		}
		if !a.summary.CreatedAt.Equal(b.summary.CreatedAt) {
			return a.summary.CreatedAt.After(b.summary.CreatedAt)
		}
		return a.summary.ID > b.summary.ID
	})

	out := make([]model.ConversationSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary)
	}
	return out, nil
}

// GetConversationInfo 非成员与不存在的会话一律返回 NotFound
func (s *ConversationService) GetConversationInfo(ctx context.Context, userID, conversationID uint) (*model.ConversationInfo, error) {
	if userID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	ok, err := s.ConvRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	if !ok {
		return nil, util.ErrNotFound(util.ReasonConversationNotFound, "Conversation not found")
	}

	conv, err := s.ConvRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound(util.ReasonConversationNotFound, "Conversation not found")
		}
		return nil, util.ErrTransient(err)
	}
	members, err := s.ConvRepo.ListMembers(ctx, conversationID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}

	info := &model.ConversationInfo{
		ID:      conv.ID,
		IsGroup: conv.IsGroup,
		GroupID: conv.GroupID,
		Members: []model.UserBrief{},
	}
	if conv.IsGroup && conv.Group != nil {
		adminID := conv.Group.CreatedBy
		info.Name = conv.Group.Name
		info.Description = conv.Group.Description
		info.ImagePath = conv.Group.ImagePath
		info.AdminID = &adminID
		info.IsAdmin = adminID == userID
		info.Members = briefs(members)
		return info, nil
	}
	for _, m := range members {
		if m.ID != userID {
			info.Name = m.FullName
			info.ImagePath = m.ImagePath
			info.Members = append(info.Members, m.Brief())
		}
	}
	return info, nil
}

// IsParticipant 消息日志的成员校验入口
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	ok, err := s.ConvRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, util.ErrTransient(err)
	}
	return ok, nil
}
