package models

import "time"

type MemberType string

const (
	MemberTypeDriver   MemberType = "driver"   // şoför ortak
	MemberTypeCustomer MemberType = "customer" // yatırımcı müşteri
	MemberTypeStaff    MemberType = "staff"    // personel ortak
	MemberTypeOther    MemberType = "other"
)

// Member: kooperatif üyesi. Kayıtlar hiçbir zaman fiziksel silinmez;
// ayrılan üye is_active=false yapılır ki geçmiş oylama ve dağıtım
// sonuçları yeniden üretilebilir kalsın.
type Member struct {
	ID            uint `gorm:"primaryKey"`
	CooperativeID uint `gorm:"index;not null"`
	Cooperative   Cooperative

	Name  string     `gorm:"size:100;not null"`
	Phone string     `gorm:"size:50"`
	Type  MemberType `gorm:"size:20;not null"`

	// Ortaklık payı (kâr payı tabanı) ve yatırım payı (temettü tabanı)
	OwnershipShares  int `gorm:"not null;default:0"`
	InvestmentShares int `gorm:"not null;default:0"`

	VotingRights bool      `gorm:"not null;default:true"`
	IsActive     bool      `gorm:"not null;default:true;index"`
	JoinedDate   time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
