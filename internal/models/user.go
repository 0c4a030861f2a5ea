package models

import "time"

type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleCoopAdmin  UserRole = "coop_admin"
	RoleMember     UserRole = "member"
)

type User struct {
	ID            uint `gorm:"primaryKey"`
	CooperativeID *uint
	Cooperative   *Cooperative
	MemberID      *uint // member rolündeki kullanıcının bağlı olduğu üye kaydı
	Member        *Member
	Name          string   `gorm:"size:100;not null"`
	Email         string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash  string   `gorm:"size:255;not null"`
	Role          UserRole `gorm:"size:20;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
