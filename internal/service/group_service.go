package service

import (
	"context"
	"errors"
	"ichat_backend/internal/model"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/util"

	"gorm.io/gorm"
)

// GroupService 群成员管理，只有创建者（管理员）可以增删成员
type GroupService struct {
	ConvRepo     *repository.ConversationRepository
	UserRepo     *repository.UserRepository
	RelationRepo *repository.RelationshipRepository
}

func NewGroupService(convRepo *repository.ConversationRepository, userRepo *repository.UserRepository, relationRepo *repository.RelationshipRepository) *GroupService {
	return &GroupService{
		ConvRepo:     convRepo,
		UserRepo:     userRepo,
		RelationRepo: relationRepo,
	}
}

// groupConversation 校验群与会话匹配且 actingUser 为管理员
func (s *GroupService) groupConversation(ctx context.Context, actingUser, groupID, conversationID uint) (*model.Conversation, error) {
	if actingUser == 0 {
		return nil, util.ErrUnauthenticated()
	}
	conv, err := s.ConvRepo.FindByGroupID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound(util.ReasonGroupNotFound, "Group not found")
		}
		return nil, util.ErrTransient(err)
	}
	if conversationID != 0 && conv.ID != conversationID {
		return nil, util.ErrNotFound(util.ReasonGroupNotFound, "Group not found")
	}
	if conv.Group == nil || conv.Group.CreatedBy != actingUser {
		return nil, util.ErrUnauthorized(util.ReasonNotAdmin, "Only the group admin can manage members")
	}
	return conv, nil
}

// AddMembers 已在群内或重复的 ID 被忽略，返回实际新增人数
func (s *GroupService) AddMembers(ctx context.Context, actingUser, groupID, conversationID uint, newMemberIDs []uint) (int64, error) {
	conv, err := s.groupConversation(ctx, actingUser, groupID, conversationID)
	if err != nil {
		return 0, err
	}
	ids := util.UniqueIDs(newMemberIDs)
	if len(ids) == 0 {
		return 0, util.ErrValidation("", "No members selected")
	}
	count, err := s.UserRepo.CountExisting(ctx, ids)
	if err != nil {
		return 0, util.ErrTransient(err)
	}
	if count != int64(len(ids)) {
		return 0, util.ErrValidation(util.ReasonUnknownUsers, "Some selected users do not exist")
	}

	added, err := s.ConvRepo.AddParticipants(ctx, conv.ID, ids)
	if err != nil {
		return 0, util.ErrTransient(err)
	}
	return added, nil
}

// RemoveMember 管理员不能移除自己，因此创建者始终留在群内
func (s *GroupService) RemoveMember(ctx context.Context, actingUser, groupID, conversationID, memberID uint) error {
	conv, err := s.groupConversation(ctx, actingUser, groupID, conversationID)
	if err != nil {
		return err
	}
	if memberID == actingUser {
		return util.ErrValidation(util.ReasonCannotRemoveSelf, "You cannot remove yourself from the group")
	}
	removed, err := s.ConvRepo.RemoveParticipant(ctx, conv.ID, memberID)
	if err != nil {
		return util.ErrTransient(err)
	}
	if removed == 0 {
		return util.ErrNotFound(util.ReasonNotMember, "User is not a member of this group")
	}
	return nil
}

// ListAddableMembers 管理员的已接受连接中尚未入群的用户
func (s *GroupService) ListAddableMembers(ctx context.Context, actingUser, groupID uint) ([]model.UserBrief, error) {
	conv, err := s.groupConversation(ctx, actingUser, groupID, 0)
	if err != nil {
		return nil, err
	}
	users, err := s.RelationRepo.ListAcceptedUsersNotIn(ctx, actingUser, conv.ID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	return briefs(users), nil
}
