package model

// swagger:model User
type User struct {
	BaseModel
	FullName  string `gorm:"size:100;not null" json:"fullName"`
	Email     string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string `gorm:"size:255;not null" json:"-"`
	Phone     string `gorm:"size:20" json:"phone,omitempty"`
	Address   string `gorm:"type:text" json:"address,omitempty"`
	ImagePath string `gorm:"size:255" json:"imagePath"`
}

func (User) TableName() string {
	return "users"
}

// UserBrief 列表展示用的用户信息
type UserBrief struct {
	ID        uint   `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email,omitempty"`
	ImagePath string `json:"imagePath"`
}

func (u User) Brief() UserBrief {
	return UserBrief{ID: u.ID, FullName: u.FullName, Email: u.Email, ImagePath: u.ImagePath}
}
