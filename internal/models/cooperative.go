package models

import "time"

type DistributionPolicy string

const (
	PolicyMemberType DistributionPolicy = "member_type" // şoför/personel kâr payı, müşteri/diğer temettü
	PolicySharesOnly DistributionPolicy = "shares_only" // herkes ortaklık payı üzerinden kâr payı
)

// Cooperative: platformdaki her taşıma kooperatifi (tenant)
type Cooperative struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"size:150;not null;unique"`
	Address string `gorm:"size:255"`
	Phone   string `gorm:"size:50"` // Opsiyonel telefon

	// Dağıtım hesabında kâr payı / temettü ayrımının kuralı
	DistributionPolicy DistributionPolicy `gorm:"size:20;not null;default:member_type"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Users   []User
	Members []Member
}
