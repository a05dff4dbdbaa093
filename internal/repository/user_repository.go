package repository

import (
	"context"
	"ichat_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

// CountExisting 统计 ids 中实际存在的用户数
func (r *UserRepository) CountExisting(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// Search 按姓名或邮箱模糊查找，排除当前用户
func (r *UserRepository) Search(ctx context.Context, term string, excludeID uint, limit int) ([]model.User, error) {
	var users []model.User
	searchTerm := "%" + term + "%"
	err := r.DB.WithContext(ctx).
		Where("(full_name LIKE ? OR email LIKE ?)", searchTerm, searchTerm).
		Where("id <> ?", excludeID).
		Order("full_name ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
