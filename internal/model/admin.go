package model

import "time"

// Admin 后台唯一角色：管理员账号，密码以 bcrypt 哈希保存。
type Admin struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
}

func (Admin) TableName() string { return "admins" }

// LoginHistory 记录每次成功登录，异步写入。
type LoginHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `gorm:"size:64;not null;index" json:"username"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
}

func (LoginHistory) TableName() string { return "login_histories" }
