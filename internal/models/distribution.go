package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PeriodType string

const (
	PeriodTypeQuarterly PeriodType = "quarterly"
	PeriodTypeAnnual    PeriodType = "annual"
	PeriodTypeSpecial   PeriodType = "special"
)

type PeriodStatus string

const (
	PeriodStatusDraft       PeriodStatus = "draft"
	PeriodStatusCalculated  PeriodStatus = "calculated"
	PeriodStatusApproved    PeriodStatus = "approved"
	PeriodStatusDistributed PeriodStatus = "distributed"
	PeriodStatusCancelled   PeriodStatus = "cancelled"
)

// DistributionPeriod: bir dağıtım dönemi (çeyrek, yıl veya özel).
// Finansal girdiler yönetici tarafından elle girilir; total_profit
// girilmeden hesaplama yapılamaz.
type DistributionPeriod struct {
	ID            uint `gorm:"primaryKey"`
	CooperativeID uint `gorm:"index;not null"`
	Cooperative   Cooperative

	Type        PeriodType `gorm:"size:20;not null"`
	PeriodStart time.Time  `gorm:"not null"`
	PeriodEnd   time.Time  `gorm:"not null"`

	TotalRevenue  decimal.NullDecimal `gorm:"type:decimal(20,4)"`
	TotalExpenses decimal.NullDecimal `gorm:"type:decimal(20,4)"`
	TotalProfit   decimal.NullDecimal `gorm:"type:decimal(20,4)"`

	// Birbirinden bağımsız iki yüzde; toplamlarının 100 olması gerekmez
	ReservePercentage      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	DistributionPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`

	Status PeriodStatus `gorm:"size:20;not null;default:draft;index"`

	// Son hesaplamada üretilen satır sayısı
	DistributionCount int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DistributionPool: dönem kârından dağıtıma ayrılan havuz
func (p *DistributionPeriod) DistributionPool() decimal.Decimal {
	if !p.TotalProfit.Valid {
		return decimal.Zero
	}
	return p.TotalProfit.Decimal.Mul(p.DistributionPercentage).Div(decimal.NewFromInt(100))
}

type DistributionType string

const (
	DistributionTypeProfitShare DistributionType = "profit_share" // ortaklık payı üzerinden
	DistributionTypeDividend    DistributionType = "dividend"     // yatırım payı üzerinden
)

// MemberDistribution: bir dönemde bir üyeye düşen pay. Hesaplama sırasında
// (dönem draft/calculated iken) topluca silinip yeniden yazılır; dönem
// approved olduktan sonra sadece ödeme alanları değişebilir.
type MemberDistribution struct {
	ID            uint `gorm:"primaryKey"`
	CooperativeID uint `gorm:"index;not null"`
	PeriodID      uint `gorm:"index;not null"`
	Period        DistributionPeriod `gorm:"foreignKey:PeriodID"`
	MemberID      uint `gorm:"index;not null"`
	Member        Member

	Type DistributionType `gorm:"size:20;not null"`

	// Hesapta kullanılan pay tabanı ve üyenin yüzdesi
	ShareBasis          int             `gorm:"not null"` // üyenin pay adedi
	OwnershipPercentage decimal.Decimal `gorm:"type:decimal(8,4);not null"`

	Amount decimal.Decimal `gorm:"type:decimal(20,4);not null"` // 2 haneye yuvarlanmış tutar

	Paid             bool       `gorm:"not null;default:false;index"`
	PaymentMethod    string     `gorm:"size:30"`
	PaymentReference string     `gorm:"size:64"`
	PaidDate         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
