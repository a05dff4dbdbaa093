package service

import (
	"context"
	"errors"
	"ichat_backend/internal/model"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/util"
	"strings"
	"time"

	"gorm.io/gorm"
)

const userSearchLimit = 10

type RelationshipService struct {
	RelationRepo *repository.RelationshipRepository
	UserRepo     *repository.UserRepository
}

func NewRelationshipService(relationRepo *repository.RelationshipRepository, userRepo *repository.UserRepository) *RelationshipService {
	return &RelationshipService{
		RelationRepo: relationRepo,
		UserRepo:     userRepo,
	}
}

// RequestConnection 发起连接请求。同一对用户无论方向、状态只允许存在一条记录
func (s *RelationshipService) RequestConnection(ctx context.Context, requesterID, targetID uint) (*model.Relationship, error) {
	if requesterID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	if requesterID == targetID {
		return nil, util.ErrValidation(util.ReasonSelfConnection, "You cannot connect with yourself")
	}

	if _, err := s.UserRepo.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound(util.ReasonUserNotFound, "User not found")
		}
		return nil, util.ErrTransient(err)
	}

	existing, err := s.RelationRepo.FindBetween(ctx, requesterID, targetID)
	if err == nil && existing != nil {
		return nil, util.ErrConflict(util.ReasonDuplicateRelationship, "Connection already exists or request already sent")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTransient(err)
	}

	rel := &model.Relationship{
		UserID:        requesterID,
		RelatedUserID: targetID,
		Status:        model.RelationshipPending,
		ActionUserID:  requesterID,
	}
	if err := s.RelationRepo.Create(ctx, rel); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrConflict(util.ReasonDuplicateRelationship, "Connection already exists or request already sent")
		}
		return nil, util.ErrTransient(err)
	}
	return rel, nil
}

// AcceptConnection 只有请求的接收方能接受 pending 请求
func (s *RelationshipService) AcceptConnection(ctx context.Context, accepterID, requestID uint) error {
	if accepterID == 0 {
		return util.ErrUnauthenticated()
	}
	affected, err := s.RelationRepo.Accept(ctx, requestID, accepterID, time.Now().UTC())
	if err != nil {
		return util.ErrTransient(err)
	}
	if affected == 0 {
		return util.ErrNotFound(util.ReasonRequestNotPending, "Request not found or already processed")
	}
	return nil
}

func (s *RelationshipService) ListPending(ctx context.Context, userID uint) ([]model.ConnectionRequest, error) {
	if userID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	rels, err := s.RelationRepo.ListPending(ctx, userID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	out := make([]model.ConnectionRequest, 0, len(rels))
	for _, r := range rels {
		out = append(out, model.ConnectionRequest{
			ID:        r.ID,
			Status:    r.Status,
			User:      r.User.Brief(),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *RelationshipService) ListOutgoing(ctx context.Context, userID uint) ([]model.ConnectionRequest, error) {
	if userID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	rels, err := s.RelationRepo.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	out := make([]model.ConnectionRequest, 0, len(rels))
	for _, r := range rels {
		out = append(out, model.ConnectionRequest{
			ID:        r.ID,
			Status:    r.Status,
			User:      r.RelatedUser.Brief(),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// ListAccepted 已建立连接的用户，不区分最初由谁发起
func (s *RelationshipService) ListAccepted(ctx context.Context, userID uint) ([]model.UserBrief, error) {
	if userID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	users, err := s.RelationRepo.ListAcceptedUsers(ctx, userID)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	return briefs(users), nil
}

func (s *RelationshipService) AreConnected(ctx context.Context, a, b uint) (bool, error) {
	ok, err := s.RelationRepo.IsAccepted(ctx, a, b)
	if err != nil {
		return false, util.ErrTransient(err)
	}
	return ok, nil
}

// SearchUsers 按姓名或邮箱搜索，并标注与当前用户的关系
func (s *RelationshipService) SearchUsers(ctx context.Context, userID uint, term string) ([]model.UserSearchResult, error) {
	if userID == 0 {
		return nil, util.ErrUnauthenticated()
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return []model.UserSearchResult{}, nil
	}

	users, err := s.UserRepo.Search(ctx, term, userID, userSearchLimit)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	rels, err := s.RelationRepo.FindForUser(ctx, userID, ids)
	if err != nil {
		return nil, util.ErrTransient(err)
	}
	byOther := make(map[uint]model.Relationship, len(rels))
	for _, r := range rels {
		byOther[r.Other(userID)] = r
	}

	results := make([]model.UserSearchResult, 0, len(users))
	for _, u := range users {
		res := model.UserSearchResult{UserBrief: u.Brief()}
		if r, ok := byOther[u.ID]; ok {
			res.RelationshipID = r.ID
			res.RelationshipStatus = r.Status
			res.Incoming = r.RelatedUserID == userID
		}
		results = append(results, res)
	}
	return results, nil
}

func briefs(users []model.User) []model.UserBrief {
	out := make([]model.UserBrief, 0, len(users))
	for _, u := range users {
		out = append(out, u.Brief())
	}
	return out
}
