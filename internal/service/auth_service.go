package service

import (
	"context"
	"errors"
	"ichat_backend/internal/config"
	"ichat_backend/internal/model"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/util"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService 注册与登录，签发的 JWT 中携带用户 ID
type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FullName = strings.TrimSpace(user.FullName)

	_, err := s.UserRepo.FindByEmail(ctx, user.Email)
	if err == nil {
		return util.ErrConflict(util.ReasonEmailTaken, "Email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrTransient(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return util.ErrTransient(err)
	}
	user.Password = string(hashedPassword)
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return util.ErrConflict(util.ReasonEmailTaken, "Email is already registered")
		}
		return util.ErrTransient(err)
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, util.NewError(util.KindUnauthenticated, util.ReasonInvalidCredentials, "Invalid email or password")
		}
		return "", nil, util.ErrTransient(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.NewError(util.KindUnauthenticated, util.ReasonInvalidCredentials, "Invalid email or password")
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, util.ErrTransient(err)
	}
	return token, user, nil
}
